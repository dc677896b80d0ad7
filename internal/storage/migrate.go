package storage

import (
	"context"
	"fmt"

	"github.com/kalakari/storefront/internal/domain"
	"github.com/uptrace/bun"
)

type table struct {
	model       any
	foreignKeys []string
}

type index struct {
	model   any
	name    string
	columns []string
	unique  bool
}

var tables = []table{
	{model: (*domain.User)(nil)},
	{model: (*domain.Category)(nil)},
	{model: (*domain.Product)(nil), foreignKeys: []string{
		`("category_id") REFERENCES "categories" ("id") ON DELETE RESTRICT`,
	}},
	{model: (*domain.Order)(nil), foreignKeys: []string{
		`("user_id") REFERENCES "users" ("id") ON DELETE SET NULL`,
	}},
	{model: (*domain.OrderItem)(nil), foreignKeys: []string{
		`("order_id") REFERENCES "orders" ("id") ON DELETE CASCADE`,
		`("product_id") REFERENCES "products" ("id") ON DELETE RESTRICT`,
	}},
	{model: (*domain.Wishlist)(nil), foreignKeys: []string{
		`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
		`("product_id") REFERENCES "products" ("id") ON DELETE CASCADE`,
	}},
}

var indexes = []index{
	{model: (*domain.Product)(nil), name: "products_category_id_idx", columns: []string{"category_id"}},
	{model: (*domain.Product)(nil), name: "products_status_created_at_idx", columns: []string{"status", "created_at"}},
	{model: (*domain.Order)(nil), name: "orders_customer_phone_idx", columns: []string{"customer_phone"}},
	{model: (*domain.Order)(nil), name: "orders_user_id_idx", columns: []string{"user_id"}},
	{model: (*domain.Order)(nil), name: "orders_created_at_idx", columns: []string{"created_at"}},
	{model: (*domain.OrderItem)(nil), name: "order_items_order_id_idx", columns: []string{"order_id"}},
	{model: (*domain.OrderItem)(nil), name: "order_items_product_id_idx", columns: []string{"product_id"}},
}

// Migrate creates every table and index that does not exist yet. It is idempotent.
func Migrate(ctx context.Context, db bun.IDB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("storage: create table %T: %w", t.model, err)
		}
	}
	for _, ix := range indexes {
		q := db.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.columns...).IfNotExists()
		if ix.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("storage: create index %s: %w", ix.name, err)
		}
	}
	return nil
}

// Reset drops every table. Tests use it to start from an empty schema.
func Reset(ctx context.Context, db bun.IDB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i].model).IfExists().Cascade().Exec(ctx); err != nil {
			return fmt.Errorf("storage: drop table %T: %w", tables[i].model, err)
		}
	}
	return Migrate(ctx, db)
}
