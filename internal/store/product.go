package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/storage"
	"github.com/uptrace/bun"
)

// Product listing sort orders.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
	SortStock     = "stock"
)

var productSorts = map[string][]string{
	SortNewest:    {"p.created_at DESC", "p.id ASC"},
	SortPriceAsc:  {"p.price ASC", "p.id ASC"},
	SortPriceDesc: {"p.price DESC", "p.id ASC"},
	SortName:      {"p.name ASC", "p.id ASC"},
	SortStock:     {"p.stock DESC", "p.id ASC"},
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Category        string
	InStock         bool
	Search          string
	SortBy          string
	IncludeInactive bool
	Pagination
}

// Normalize applies defaults. Unknown sort orders fall back to newest first.
func (f ProductFilter) Normalize() ProductFilter {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	f.Search = strings.TrimSpace(f.Search)
	if _, ok := productSorts[f.SortBy]; !ok {
		f.SortBy = SortNewest
	}
	f.Pagination = f.Pagination.Normalize()
	return f
}

type ProductPage = Page[domain.Product]

// ProductStats are catalog counts for the admin dashboard.
type ProductStats struct {
	Total      int `json:"total" bun:"total"`
	Active     int `json:"active" bun:"active"`
	Inactive   int `json:"inactive" bun:"inactive"`
	OutOfStock int `json:"outOfStock" bun:"out_of_stock"`
}

// ProductStore reads and writes products through the products cache namespace.
type ProductStore struct {
	db     *bun.DB
	cache  cache.CacheService
	keys   cache.KeySerializer
	slugs  *SlugIndex
	logger *slog.Logger
	now    func() time.Time
}

func NewProductStore(db *bun.DB, cacheService cache.CacheService, slugs *SlugIndex, logger *slog.Logger) *ProductStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductStore{
		db:     db,
		cache:  cacheService,
		keys:   cache.NewKeySerializer(cache.NamespaceProducts),
		slugs:  slugs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns one page of products. An unknown category slug yields an empty page.
func (s *ProductStore) List(ctx context.Context, filter ProductFilter) (ProductPage, error) {
	filter = filter.Normalize()
	key := s.keys.SerializeKey("list", filter)
	return cache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (ProductPage, error) {
		return s.list(ctx, filter)
	})
}

func (s *ProductStore) list(ctx context.Context, filter ProductFilter) (ProductPage, error) {
	var items []domain.Product
	q := s.db.NewSelect().Model(&items).Relation("Category")

	if filter.Category != "" {
		categoryID, ok, err := s.slugs.Resolve(ctx, filter.Category)
		if err != nil {
			return ProductPage{}, domain.Internal(err, "failed to list products")
		}
		if !ok {
			return newPage[domain.Product](nil, 0, filter.Page, filter.Limit), nil
		}
		q = q.Where("p.category_id = ?", categoryID)
	}
	if !filter.IncludeInactive {
		q = q.Where("p.status = ?", domain.LifecycleActive)
	}
	if filter.InStock {
		q = q.Where("p.stock > 0")
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(p.name) LIKE ?", pattern).WhereOr("LOWER(p.description) LIKE ?", pattern)
		})
	}

	total, err := q.Order(productSorts[filter.SortBy]...).
		Limit(filter.Limit).
		Offset(filter.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return ProductPage{}, domain.Internal(fmt.Errorf("list products: %w", err), "failed to list products")
	}
	return newPage(items, total, filter.Page, filter.Limit), nil
}

// Get returns a product with its category, active or not.
func (s *ProductStore) Get(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return cache.GetOrFetch(ctx, s.cache, s.itemKey(id), func(ctx context.Context) (*domain.Product, error) {
		return s.load(ctx, s.db, id)
	})
}

func (s *ProductStore) load(ctx context.Context, db bun.IDB, id uuid.UUID) (*domain.Product, error) {
	product := new(domain.Product)
	err := db.NewSelect().Model(product).Relation("Category").Where("p.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, translate(err, "product", id, "failed to load product")
	}
	return product, nil
}

// Create inserts a product. The category must exist.
func (s *ProductStore) Create(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	if err := domain.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}
	now := s.now()
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    in.ImageURL,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		Status:      domain.LifecycleActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := storage.Conn(ctx, s.db).NewInsert().Model(product).Exec(ctx); err != nil {
		return nil, domain.Internal(fmt.Errorf("insert product: %w", err), "failed to create product")
	}
	s.Invalidate(ctx)
	return product, nil
}

// CreateMany inserts products in a single statement. Ids, timestamps and status are
// filled in when missing.
func (s *ProductStore) CreateMany(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	now := s.now()
	for _, p := range products {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.Status == "" {
			p.Status = domain.LifecycleActive
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
	}
	if _, err := storage.Conn(ctx, s.db).NewInsert().Model(&products).Exec(ctx); err != nil {
		return domain.Internal(fmt.Errorf("bulk insert products: %w", err), "failed to import products")
	}
	s.Invalidate(ctx)
	return nil
}

// Update applies a partial change. Fields left nil in patch are unchanged.
func (s *ProductStore) Update(ctx context.Context, id uuid.UUID, patch domain.ProductPatch) (*domain.Product, error) {
	if err := domain.FromValidation(patch.Validate()); err != nil {
		return nil, err
	}
	if patch.CategoryID != nil {
		if err := s.requireCategory(ctx, *patch.CategoryID); err != nil {
			return nil, err
		}
	}
	product := &domain.Product{ID: id}
	patch.Apply(product)
	return s.write(ctx, product, patch.Columns()...)
}

// SetStock overwrites the stock level.
func (s *ProductStore) SetStock(ctx context.Context, id uuid.UUID, stock int) (*domain.Product, error) {
	if stock < 0 {
		return nil, domain.Invalid("invalid stock", map[string]string{"stock": "must be no less than 0"})
	}
	return s.write(ctx, &domain.Product{ID: id, Stock: stock}, "stock")
}

// Deactivate soft deletes a product: it disappears from the storefront but order
// history keeps pointing at it.
func (s *ProductStore) Deactivate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.write(ctx, &domain.Product{ID: id, Status: domain.LifecycleInactive}, "status")
}

// Restore reactivates a soft deleted product.
func (s *ProductStore) Restore(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.write(ctx, &domain.Product{ID: id, Status: domain.LifecycleActive}, "status")
}

// write updates only the named columns of product, so a concurrent stock
// decrement is never overwritten with a stale value.
func (s *ProductStore) write(ctx context.Context, product *domain.Product, columns ...string) (*domain.Product, error) {
	db := storage.Conn(ctx, s.db)
	product.UpdatedAt = s.now()
	res, err := db.NewUpdate().
		Model(product).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("update product %s: %w", product.ID, err), "failed to update product")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("update product %s: %w", product.ID, err), "failed to update product")
	}
	if affected == 0 {
		return nil, domain.NotFound("product", product.ID)
	}
	s.Invalidate(ctx)
	return s.load(ctx, db, product.ID)
}

// Stats counts products by status and stock.
func (s *ProductStore) Stats(ctx context.Context) (ProductStats, error) {
	return cache.GetOrFetch(ctx, s.cache, s.keys.SerializeKey("stats"), func(ctx context.Context) (ProductStats, error) {
		var stats ProductStats
		err := s.db.NewSelect().
			Model((*domain.Product)(nil)).
			ColumnExpr("COUNT(*) AS total").
			ColumnExpr("COALESCE(SUM(CASE WHEN p.status = ? THEN 1 ELSE 0 END), 0) AS active", domain.LifecycleActive).
			ColumnExpr("COALESCE(SUM(CASE WHEN p.status = ? THEN 1 ELSE 0 END), 0) AS inactive", domain.LifecycleInactive).
			ColumnExpr("COALESCE(SUM(CASE WHEN p.status = ? AND p.stock = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock", domain.LifecycleActive).
			Scan(ctx, &stats)
		if err != nil {
			return ProductStats{}, domain.Internal(fmt.Errorf("product stats: %w", err), "failed to count products")
		}
		return stats, nil
	})
}

// All returns every product with its category, oldest first. Export uses it.
func (s *ProductStore) All(ctx context.Context) ([]domain.Product, error) {
	var items []domain.Product
	err := s.db.NewSelect().Model(&items).Relation("Category").Order("p.created_at ASC", "p.id ASC").Scan(ctx)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("export products: %w", err), "failed to load products")
	}
	return items, nil
}

// Invalidate drops every product listing and item, the analytics built on them and
// the wishlists that embed them.
func (s *ProductStore) Invalidate(ctx context.Context) {
	err := cache.InvalidateNamespaces(ctx, s.cache, cache.NamespaceProducts, cache.NamespaceAnalytics, cache.NamespaceWishlists)
	if err != nil {
		s.logger.WarnContext(ctx, "product cache invalidation failed", slog.Any("error", err))
	}
}

func (s *ProductStore) itemKey(id uuid.UUID) string {
	return s.keys.SerializeKey("item", id.String())
}

func (s *ProductStore) requireCategory(ctx context.Context, id uuid.UUID) error {
	exists, err := storage.Conn(ctx, s.db).NewSelect().Model((*domain.Category)(nil)).Where("c.id = ?", id).Exists(ctx)
	if err != nil {
		return domain.Internal(fmt.Errorf("check category %s: %w", id, err), "failed to check category")
	}
	if !exists {
		return domain.Invalid("unknown category", map[string]string{"categoryId": "category does not exist"})
	}
	return nil
}
