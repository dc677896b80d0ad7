package store

import (
	"testing"
	"time"

	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/storage"
	"github.com/kalakari/storefront/pkg/testsupport"
	"github.com/uptrace/bun"
)

type fixture struct {
	db         *bun.DB
	cache      cache.CacheService
	seed       *testsupport.Seeder
	slugs      *SlugIndex
	products   *ProductStore
	orders     *OrderStore
	analytics  *AnalyticsStore
	categories *CategoryStore
	wishlists  *WishlistStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testsupport.NewDB(t)
	svc := testsupport.NewCache(t)
	logger := testsupport.DiscardLogger()
	slugs := NewSlugIndex(db, svc)

	return &fixture{
		db:         db,
		cache:      svc,
		seed:       testsupport.NewSeeder(t, db),
		slugs:      slugs,
		products:   NewProductStore(db, svc, slugs, logger),
		orders:     NewOrderStore(db, storage.NewTxManager(db), svc, logger),
		analytics:  NewAnalyticsStore(db, svc, logger),
		categories: NewCategoryStore(db, svc, slugs, logger),
		wishlists:  NewWishlistStore(db, svc, logger),
	}
}

func day(d int, hour int) time.Time {
	return time.Date(2024, time.March, d, hour, 0, 0, 0, time.UTC)
}
