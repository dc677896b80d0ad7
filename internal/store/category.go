package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/storage"
	"github.com/kalakari/storefront/repositorycache"
	"github.com/uptrace/bun"
)

const maxCategories = 1000

// NewCategoryRepository builds the go-repository-bun repository for categories.
// The slug is the natural identifier.
func NewCategoryRepository(db *bun.DB) repository.Repository[*domain.Category] {
	return repository.NewRepository[*domain.Category](db, repository.ModelHandlers[*domain.Category]{
		NewRecord: func() *domain.Category { return &domain.Category{} },
		GetID: func(c *domain.Category) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID:         func(c *domain.Category, id uuid.UUID) { c.ID = id },
		GetIdentifier: func() string { return "slug" },
	})
}

// CategoryStore manages categories. Product listings embed categories, so writes
// also drop the products and wishlists namespaces.
type CategoryStore struct {
	db     *bun.DB
	repo   *repositorycache.CachedRepository[*domain.Category]
	slugs  *SlugIndex
	logger *slog.Logger
	now    func() time.Time
}

func NewCategoryStore(db *bun.DB, cacheService cache.CacheService, slugs *SlugIndex, logger *slog.Logger) *CategoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	repo := repositorycache.New(NewCategoryRepository(db), cacheService,
		repositorycache.WithNamespace(cache.NamespaceCategories),
		repositorycache.WithRelatedNamespaces(cache.NamespaceProducts, cache.NamespaceWishlists),
		repositorycache.WithLogger(logger),
	)
	return &CategoryStore{
		db:     db,
		repo:   repo,
		slugs:  slugs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func activeCategories(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.status = ?", domain.LifecycleActive)
}

func categoriesByName(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("name ASC").Limit(maxCategories)
}

// List returns categories ordered by name.
func (s *CategoryStore) List(ctx context.Context, activeOnly bool) ([]*domain.Category, error) {
	criteria := []repository.SelectCriteria{categoriesByName}
	scope := "all"
	if activeOnly {
		criteria = append(criteria, activeCategories)
		scope = "active"
	}
	records, _, err := s.repo.ListKeyed(ctx, scope, criteria...)
	if err != nil {
		return nil, translate(err, "category", scope, "failed to list categories")
	}
	if records == nil {
		records = []*domain.Category{}
	}
	return records, nil
}

func (s *CategoryStore) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	record, err := s.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, translate(err, "category", id, "failed to load category")
	}
	return record, nil
}

// BySlug returns the active category with slug.
func (s *CategoryStore) BySlug(ctx context.Context, slug string) (*domain.Category, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	record, err := s.repo.GetByIdentifier(ctx, slug)
	if err != nil {
		return nil, translate(err, "category", slug, "failed to load category")
	}
	if !record.Status.IsActive() {
		return nil, domain.NotFound("category", slug)
	}
	return record, nil
}

// Create inserts a category. An empty slug is derived from the name.
func (s *CategoryStore) Create(ctx context.Context, in domain.CategoryInput) (*domain.Category, error) {
	if err := domain.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	now := s.now()
	record := &domain.Category{
		ID:        uuid.New(),
		CreatedAt: now,
	}
	if err := s.apply(record, in); err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, record.Slug, uuid.Nil); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, s.writeError(err, record.Slug)
	}
	s.slugs.Forget()
	return created, nil
}

// Update replaces the editable fields of a category.
func (s *CategoryStore) Update(ctx context.Context, id uuid.UUID, in domain.CategoryInput) (*domain.Category, error) {
	if err := domain.FromValidation(in.Validate()); err != nil {
		return nil, err
	}
	record, err := s.repo.Base().GetByID(ctx, id.String())
	if err != nil {
		return nil, translate(err, "category", id, "failed to load category")
	}
	if err := s.apply(record, in); err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, record.Slug, id); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, record)
	if err != nil {
		return nil, s.writeError(err, record.Slug)
	}
	s.slugs.Forget()
	return updated, nil
}

// Delete removes a category. It reports false without error while any product,
// active or not, still references it.
func (s *CategoryStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	record, err := s.repo.Base().GetByID(ctx, id.String())
	if err != nil {
		return false, translate(err, "category", id, "failed to load category")
	}
	inUse, err := storage.Conn(ctx, s.db).NewSelect().
		Model((*domain.Product)(nil)).
		Where("p.category_id = ?", id).
		Exists(ctx)
	if err != nil {
		return false, domain.Internal(fmt.Errorf("check category usage: %w", err), "failed to delete category")
	}
	if inUse {
		return false, nil
	}
	if err := s.repo.Delete(ctx, record); err != nil {
		if storage.IsForeignKeyViolation(err) {
			return false, nil
		}
		return false, domain.Internal(fmt.Errorf("delete category %s: %w", id, err), "failed to delete category")
	}
	s.slugs.Forget()
	return true, nil
}

func (s *CategoryStore) apply(record *domain.Category, in domain.CategoryInput) error {
	record.Name = strings.TrimSpace(in.Name)
	record.Slug = strings.TrimSpace(in.Slug)
	if record.Slug == "" {
		record.Slug = domain.Slugify(record.Name)
	}
	if !domain.ValidSlug(record.Slug) {
		return domain.Invalid("invalid category", map[string]string{"slug": "cannot derive a slug from the name"})
	}
	record.Description = in.Description
	record.Icon = in.Icon
	record.Status = domain.LifecycleActive
	if in.Active != nil && !*in.Active {
		record.Status = domain.LifecycleInactive
	}
	record.UpdatedAt = s.now()
	return nil
}

func (s *CategoryStore) ensureSlugFree(ctx context.Context, slug string, self uuid.UUID) error {
	q := storage.Conn(ctx, s.db).NewSelect().Model((*domain.Category)(nil)).Where("c.slug = ?", slug)
	if self != uuid.Nil {
		q = q.Where("c.id <> ?", self)
	}
	taken, err := q.Exists(ctx)
	if err != nil {
		return domain.Internal(fmt.Errorf("check slug %q: %w", slug, err), "failed to save category")
	}
	if taken {
		return domain.ErrSlugTaken
	}
	return nil
}

func (s *CategoryStore) writeError(err error, slug string) error {
	if storage.IsUniqueViolation(err) || domain.HasCategory(err, goerrors.CategoryConflict) {
		return domain.ErrSlugTaken
	}
	return translate(err, "category", slug, "failed to save category")
}
