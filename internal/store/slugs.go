package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/uptrace/bun"
)

// SlugIndex resolves category slugs to ids. Hits are memoised in process and in the
// categories cache namespace; Forget must be called whenever categories change.
type SlugIndex struct {
	db    bun.IDB
	cache cache.CacheService
	keys  cache.KeySerializer
	memo  *xsync.MapOf[string, uuid.UUID]
}

func NewSlugIndex(db bun.IDB, cacheService cache.CacheService) *SlugIndex {
	return &SlugIndex{
		db:    db,
		cache: cacheService,
		keys:  cache.NewKeySerializer(cache.NamespaceCategories),
		memo:  xsync.NewMapOf[string, uuid.UUID](),
	}
}

// Resolve returns the id of the active category with slug. ok is false when there is
// no such category; misses are not memoised.
func (s *SlugIndex) Resolve(ctx context.Context, slug string) (uuid.UUID, bool, error) {
	if id, ok := s.memo.Load(slug); ok {
		return id, true, nil
	}
	id, err := cache.GetOrFetch(ctx, s.cache, s.keys.SerializeKey("slug-id", slug), func(ctx context.Context) (uuid.UUID, error) {
		var id uuid.UUID
		err := s.db.NewSelect().
			Model((*domain.Category)(nil)).
			Column("id").
			Where("slug = ?", slug).
			Where("status = ?", domain.LifecycleActive).
			Limit(1).
			Scan(ctx, &id)
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, nil
		}
		return id, err
	})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("resolve category %q: %w", slug, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, false, nil
	}
	s.memo.Store(slug, id)
	return id, true, nil
}

// Forget drops every memoised slug.
func (s *SlugIndex) Forget() {
	s.memo.Clear()
}

// Len reports the number of memoised slugs.
func (s *SlugIndex) Len() int {
	return s.memo.Size()
}
