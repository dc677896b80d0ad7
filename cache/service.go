package cache

import (
	"context"
	"regexp"
	"strings"
)

// Namespaces used by the storefront. Every key starts with one of them followed by
// KeySeparator, which is what namespace TTLs and blanket invalidation key off.
const (
	NamespaceProducts   = "products"
	NamespaceCategories = "categories"
	NamespaceOrders     = "orders"
	NamespaceAnalytics  = "analytics"
	NamespaceUsers      = "users"
	NamespaceWishlists  = "wishlists"
)

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the cache-aside operations used by the stores.
type CacheService interface {
	// GetOrFetch returns the cached value for key, or calls fetchFn on a miss and
	// stores its result under the TTL of the key's namespace. Errors are not cached.
	GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (any, error)) (any, error)
	// Delete removes a single key.
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
	// DeleteByPattern removes every key matching pattern.
	DeleteByPattern(ctx context.Context, pattern *regexp.Regexp) error
	// InvalidateKeys removes the given keys.
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T
	result, err := service.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetchFn(ctx)
	})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		// Value under this key was stored by a different caller type; refetch.
		return fetchFn(ctx)
	}
	return typed, nil
}

// InvalidateNamespaces drops every key that belongs to one of the namespaces.
func InvalidateNamespaces(ctx context.Context, service CacheService, namespaces ...string) error {
	if len(namespaces) == 0 {
		return nil
	}
	return service.DeleteByPattern(ctx, NamespacePattern(namespaces...))
}

// NamespacePattern compiles a pattern matching all keys of the given namespaces,
// e.g. products and orders become ^(products|orders):.
func NamespacePattern(namespaces ...string) *regexp.Regexp {
	quoted := make([]string, len(namespaces))
	for i, ns := range namespaces {
		quoted[i] = regexp.QuoteMeta(ns)
	}
	return regexp.MustCompile("^(" + strings.Join(quoted, "|") + ")" + regexp.QuoteMeta(KeySeparator))
}

// NamespaceOf returns the namespace segment of key, or "" when the key has none.
func NamespaceOf(key string) string {
	ns, _, found := strings.Cut(key, KeySeparator)
	if !found {
		return ""
	}
	return ns
}
