package testsupport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/storage"
	"github.com/uptrace/bun"
)

var dbCounter atomic.Int64

// NewDB opens a private in-memory sqlite database with the schema migrated. It is
// closed when the test ends.
func NewDB(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	dsn := fmt.Sprintf("file:storefront-test-%d?mode=memory&cache=shared&_fk=1", dbCounter.Add(1))
	db, err := storage.Open(ctx, storage.Options{Driver: storage.DriverSQLite, DSN: dsn, Logger: DiscardLogger()})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// NewCache returns a cache service with the default namespace TTLs.
func NewCache(t testing.TB) cache.CacheService {
	t.Helper()

	svc, err := cache.NewCacheService(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create cache service: %v", err)
	}
	return svc
}

// DiscardLogger drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Seeder inserts fixture rows directly, bypassing stores and caches.
type Seeder struct {
	t  testing.TB
	db bun.IDB
	// seq orders created_at so "newest first" listings are deterministic.
	seq time.Time
}

func NewSeeder(t testing.TB, db bun.IDB) *Seeder {
	return &Seeder{t: t, db: db, seq: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (s *Seeder) next() time.Time {
	s.seq = s.seq.Add(time.Minute)
	return s.seq
}

// Category inserts an active category named name.
func (s *Seeder) Category(name string) *domain.Category {
	s.t.Helper()

	now := s.next()
	c := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		Slug:      domain.Slugify(name),
		Status:    domain.LifecycleActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.insert(c)
	return c
}

// Product inserts an active product. price is a decimal literal such as "850.00".
func (s *Seeder) Product(category *domain.Category, name, price string, stock int) *domain.Product {
	s.t.Helper()

	now := s.next()
	p := &domain.Product{
		ID:          uuid.New(),
		Name:        name,
		Description: name + " made by hand",
		Price:       domain.MustMoney(price),
		Stock:       stock,
		CategoryID:  category.ID,
		Status:      domain.LifecycleActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.insert(p)
	return p
}

// User inserts an account with a placeholder password hash.
func (s *Seeder) User(email string, role domain.Role) *domain.User {
	s.t.Helper()

	now := s.next()
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "unused",
		Name:         "Test User",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.insert(u)
	return u
}

// Order inserts an order with one line per product at the product's price. Stock is
// left untouched.
func (s *Seeder) Order(phone string, status domain.OrderStatus, at time.Time, lines map[*domain.Product]int) *domain.Order {
	s.t.Helper()

	o := &domain.Order{
		ID:            uuid.New(),
		CustomerName:  "Customer " + phone,
		CustomerPhone: phone,
		Address:       "12 Mall Road",
		City:          "Lahore",
		Status:        status,
		PaymentMethod: domain.PaymentCashOnDelivery,
		CreatedAt:     at.UTC(),
		UpdatedAt:     at.UTC(),
	}
	items := make([]domain.OrderItem, 0, len(lines))
	for p, qty := range lines {
		items = append(items, domain.OrderItem{
			ID:           uuid.New(),
			OrderID:      o.ID,
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     qty,
			CreatedAt:    at.UTC(),
		})
		o.Total = o.Total.Add(p.Price.Mul(qty))
	}
	s.insert(o)
	if len(items) > 0 {
		s.insert(&items)
	}
	o.Items = items
	return o
}

// Deactivate soft deletes a product row.
func (s *Seeder) Deactivate(p *domain.Product) {
	s.t.Helper()

	p.Status = domain.LifecycleInactive
	if _, err := s.db.NewUpdate().Model(p).Column("status").WherePK().Exec(context.Background()); err != nil {
		s.t.Fatalf("failed to deactivate product: %v", err)
	}
}

// Stock reads the current stock of a product from the database.
func (s *Seeder) Stock(id uuid.UUID) int {
	s.t.Helper()

	var stock int
	err := s.db.NewSelect().Model((*domain.Product)(nil)).Column("stock").Where("id = ?", id).Scan(context.Background(), &stock)
	if err != nil {
		s.t.Fatalf("failed to read stock: %v", err)
	}
	return stock
}

// Count returns the number of rows of model.
func (s *Seeder) Count(model any) int {
	s.t.Helper()

	n, err := s.db.NewSelect().Model(model).Count(context.Background())
	if err != nil {
		s.t.Fatalf("failed to count %T: %v", model, err)
	}
	return n
}

func (s *Seeder) insert(model any) {
	s.t.Helper()

	if _, err := s.db.NewInsert().Model(model).Exec(context.Background()); err != nil {
		s.t.Fatalf("failed to insert %T: %v", model, err)
	}
}
