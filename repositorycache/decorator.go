package repositorycache

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"unicode"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/kalakari/storefront/cache"
	"github.com/uptrace/bun"
)

var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// listResult keeps List records and total together under one cache entry.
type listResult[T any] struct {
	Records []T `json:"records"`
	Total   int `json:"total"`
}

// CachedRepository decorates a go-repository-bun repository with cache-aside reads.
// Every key lives under the repository namespace; a successful write drops the whole
// namespace, the related namespaces and any tag carried by the write context.
type CachedRepository[T any] struct {
	base      repository.Repository[T]
	cache     cache.CacheService
	keys      cache.KeySerializer
	namespace string
	related   []string
	tags      *TagIndex
	logger    *slog.Logger
}

// Option configures a CachedRepository.
type Option func(*settings)

type settings struct {
	namespace string
	related   []string
	tags      *TagIndex
	logger    *slog.Logger
}

// WithNamespace sets the key namespace. It defaults to the snake_case name of T.
func WithNamespace(ns string) Option {
	return func(s *settings) { s.namespace = ns }
}

// WithRelatedNamespaces lists namespaces whose entries embed records of this
// repository and must be dropped alongside it.
func WithRelatedNamespaces(ns ...string) Option {
	return func(s *settings) { s.related = append(s.related, ns...) }
}

// WithTagIndex shares a tag index between repositories.
func WithTagIndex(idx *TagIndex) Option {
	return func(s *settings) { s.tags = idx }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// New wraps base. Keys are built by a serializer scoped to the namespace.
func New[T any](base repository.Repository[T], cacheService cache.CacheService, opts ...Option) *CachedRepository[T] {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.namespace == "" {
		s.namespace = namespaceFor[T]()
	}
	if s.tags == nil {
		s.tags = NewTagIndex()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return &CachedRepository[T]{
		base:      base,
		cache:     cacheService,
		keys:      cache.NewKeySerializer(s.namespace),
		namespace: s.namespace,
		related:   dedupeStrings(s.related),
		tags:      s.tags,
		logger:    s.logger.With("component", "repositorycache", "namespace", s.namespace),
	}
}

// namespaceFor derives a namespace from the element type name, lower-cased and
// stripped of anything that is not a letter or digit.
func namespaceFor[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	ns := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, t.Name())
	if ns == "" {
		return "records"
	}
	return ns
}

// Namespace returns the key namespace of the repository.
func (c *CachedRepository[T]) Namespace() string { return c.namespace }

// Base returns the undecorated repository.
func (c *CachedRepository[T]) Base() repository.Repository[T] { return c.base }

func (c *CachedRepository[T]) key(ctx context.Context, method string, args ...any) string {
	key := c.keys.SerializeKey(method, args...)
	c.tags.Register(key, cacheTagsFromContext(ctx)...)
	return key
}

func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key(ctx, "Get", criteria)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		return c.base.Get(ctx, criteria...)
	})
}

func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key(ctx, "GetByID", id, criteria)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		return c.base.GetByID(ctx, id, criteria...)
	})
}

// List caches records and total as one entry. Criteria are keyed by function
// identity, so callers with dynamic filters should use ListKeyed.
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.list(ctx, c.key(ctx, "List", criteria), criteria)
}

// ListKeyed is List with an explicit key argument describing the criteria.
func (c *CachedRepository[T]) ListKeyed(ctx context.Context, keyArgs any, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.list(ctx, c.key(ctx, "List", keyArgs), criteria)
}

func (c *CachedRepository[T]) list(ctx context.Context, key string, criteria []repository.SelectCriteria) ([]T, int, error) {
	res, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (listResult[T], error) {
		records, total, err := c.base.List(ctx, criteria...)
		return listResult[T]{Records: records, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.Records, res.Total, nil
}

func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	key := c.key(ctx, "Count", criteria)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, criteria...)
	})
}

func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	key := c.key(ctx, "GetByIdentifier", identifier, criteria)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (T, error) {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	})
}

func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return written[T, T](c, ctx)(c.base.Create(ctx, record, criteria...))
}

func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return written[T, T](c, ctx)(c.base.CreateTx(ctx, tx, record, criteria...))
}

func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return written[T, []T](c, ctx)(c.base.CreateMany(ctx, records, criteria...))
}

func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return written[T, []T](c, ctx)(c.base.CreateManyTx(ctx, tx, records, criteria...))
}

func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	return written[T, T](c, ctx)(c.base.GetOrCreate(ctx, record))
}

func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return written[T, T](c, ctx)(c.base.GetOrCreateTx(ctx, tx, record))
}

func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return written[T, T](c, ctx)(c.base.Update(ctx, record, criteria...))
}

func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return written[T, T](c, ctx)(c.base.UpdateTx(ctx, tx, record, criteria...))
}

func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return written[T, []T](c, ctx)(c.base.UpdateMany(ctx, records, criteria...))
}

func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return written[T, []T](c, ctx)(c.base.UpdateManyTx(ctx, tx, records, criteria...))
}

func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return written[T, T](c, ctx)(c.base.Upsert(ctx, record, criteria...))
}

func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return written[T, T](c, ctx)(c.base.UpsertTx(ctx, tx, record, criteria...))
}

func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return written[T, []T](c, ctx)(c.base.UpsertMany(ctx, records, criteria...))
}

func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return written[T, []T](c, ctx)(c.base.UpsertManyTx(ctx, tx, records, criteria...))
}

func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	return c.afterWrite(ctx, c.base.Delete(ctx, record))
}

func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return c.afterWrite(ctx, c.base.DeleteTx(ctx, tx, record))
}

func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return c.afterWrite(ctx, c.base.DeleteMany(ctx, criteria...))
}

func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return c.afterWrite(ctx, c.base.DeleteManyTx(ctx, tx, criteria...))
}

func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return c.afterWrite(ctx, c.base.DeleteWhere(ctx, criteria...))
}

func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return c.afterWrite(ctx, c.base.DeleteWhereTx(ctx, tx, criteria...))
}

func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	return c.afterWrite(ctx, c.base.ForceDelete(ctx, record))
}

func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return c.afterWrite(ctx, c.base.ForceDeleteTx(ctx, tx, record))
}

// Reads inside a transaction never touch the cache.

func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

// Invalidate drops the namespace, the related namespaces and the context tags.
// Stores call it after writing around the repository, e.g. with raw queries.
func (c *CachedRepository[T]) Invalidate(ctx context.Context) {
	namespaces := append([]string{c.namespace}, c.related...)
	if err := cache.InvalidateNamespaces(ctx, c.cache, namespaces...); err != nil {
		c.logger.Warn("namespace invalidation failed", "namespaces", namespaces, "error", err)
	} else {
		c.logger.Debug("namespaces invalidated", "namespaces", namespaces)
	}
	c.InvalidateTags(ctx, cacheTagsFromContext(ctx)...)
}

// InvalidateTags drops only the keys read under the given tags.
func (c *CachedRepository[T]) InvalidateTags(ctx context.Context, tags ...string) {
	if len(tags) == 0 {
		return
	}
	keys := c.tags.Take(tags...)
	if len(keys) == 0 {
		return
	}
	if err := c.cache.InvalidateKeys(ctx, keys); err != nil {
		c.logger.Warn("tag invalidation failed", "tags", tags, "error", err)
		return
	}
	c.logger.Debug("tags invalidated", "tags", tags, "keys", len(keys))
}

func (c *CachedRepository[T]) afterWrite(ctx context.Context, err error) error {
	if err == nil {
		c.Invalidate(ctx)
	}
	return err
}

// written adapts a (value, error) write result so the namespace is dropped on success.
func written[T, R any](c *CachedRepository[T], ctx context.Context) func(R, error) (R, error) {
	return func(result R, err error) (R, error) {
		return result, c.afterWrite(ctx, err)
	}
}
