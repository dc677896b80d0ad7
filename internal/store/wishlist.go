package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/storage"
	"github.com/kalakari/storefront/repositorycache"
	"github.com/uptrace/bun"
)

func NewWishlistRepository(db *bun.DB) repository.Repository[*domain.Wishlist] {
	return repository.NewRepository[*domain.Wishlist](db, repository.ModelHandlers[*domain.Wishlist]{
		NewRecord: func() *domain.Wishlist { return &domain.Wishlist{} },
		GetID: func(w *domain.Wishlist) uuid.UUID {
			if w == nil {
				return uuid.Nil
			}
			return w.ID
		},
		SetID:         func(w *domain.Wishlist, id uuid.UUID) { w.ID = id },
		GetIdentifier: func() string { return "id" },
	})
}

// WishlistStore keeps per-user favourites. Reads are tagged with the user so a
// change drops only that user's cached list.
type WishlistStore struct {
	db     *bun.DB
	repo   *repositorycache.CachedRepository[*domain.Wishlist]
	logger *slog.Logger
	now    func() time.Time
}

func NewWishlistStore(db *bun.DB, cacheService cache.CacheService, logger *slog.Logger) *WishlistStore {
	if logger == nil {
		logger = slog.Default()
	}
	repo := repositorycache.New(NewWishlistRepository(db), cacheService,
		repositorycache.WithNamespace(cache.NamespaceWishlists),
		repositorycache.WithLogger(logger),
	)
	return &WishlistStore{
		db:     db,
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func wishlistTag(userID uuid.UUID) string {
	return "wishlist:" + userID.String()
}

// List returns the user's wishlist with products, newest first.
func (s *WishlistStore) List(ctx context.Context, userID uuid.UUID) ([]*domain.Wishlist, error) {
	ctx = repositorycache.WithCacheTags(ctx, wishlistTag(userID))
	records, _, err := s.repo.ListKeyed(ctx, userID.String(), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Relation("Product").
			Where("?TableAlias.user_id = ?", userID).
			Order("w.created_at DESC")
	})
	if err != nil {
		return nil, translate(err, "wishlist", userID, "failed to load wishlist")
	}
	if records == nil {
		records = []*domain.Wishlist{}
	}
	return records, nil
}

// Add puts a product on the wishlist. Adding it twice is a no-op that returns the
// existing entry.
func (s *WishlistStore) Add(ctx context.Context, userID, productID uuid.UUID) (*domain.Wishlist, error) {
	db := storage.Conn(ctx, s.db)
	active, err := db.NewSelect().
		Model((*domain.Product)(nil)).
		Where("p.id = ?", productID).
		Where("p.status = ?", domain.LifecycleActive).
		Exists(ctx)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("check product: %w", err), "failed to update wishlist")
	}
	if !active {
		return nil, domain.NotFound("product", productID)
	}

	entry := &domain.Wishlist{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		CreatedAt: s.now(),
	}
	_, err = db.NewInsert().
		Model(entry).
		On("CONFLICT (user_id, product_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("insert wishlist entry: %w", err), "failed to update wishlist")
	}

	stored := new(domain.Wishlist)
	err = db.NewSelect().
		Model(stored).
		Relation("Product").
		Where("w.user_id = ?", userID).
		Where("w.product_id = ?", productID).
		Scan(ctx)
	if err != nil {
		return nil, translate(err, "wishlist", productID, "failed to update wishlist")
	}
	s.repo.InvalidateTags(ctx, wishlistTag(userID))
	return stored, nil
}

// Remove takes a product off the wishlist. It reports whether an entry existed.
func (s *WishlistStore) Remove(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	exists, err := storage.Conn(ctx, s.db).NewSelect().
		Model((*domain.Wishlist)(nil)).
		Where("w.user_id = ?", userID).
		Where("w.product_id = ?", productID).
		Exists(ctx)
	if err != nil {
		return false, domain.Internal(fmt.Errorf("find wishlist entry: %w", err), "failed to update wishlist")
	}
	if !exists {
		return false, nil
	}
	ctx = repositorycache.WithCacheTags(ctx, wishlistTag(userID))
	err = s.repo.DeleteWhere(ctx, func(q *bun.DeleteQuery) *bun.DeleteQuery {
		return q.Where("user_id = ?", userID).Where("product_id = ?", productID)
	})
	if err != nil {
		return false, domain.Internal(fmt.Errorf("delete wishlist entry: %w", err), "failed to update wishlist")
	}
	return true, nil
}
