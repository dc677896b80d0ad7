// Package cache provides the process-wide cache-aside layer used by the storefront stores.
//
// # Overview
//
// This package exports two main interfaces and their default implementations:
//
//   - CacheService: read-through GetOrFetch plus invalidation by key, prefix and pattern
//   - KeySerializer: builds namespaced keys from a method name and its arguments
//
// Every key has the form namespace:method:args, for example
//
//	products:item:6f1c...        a single product
//	products:list:h9a3c01f2e     a filtered listing (long argument lists are hashed)
//	analytics:sales:2025-01-01:2026-01-01:month
//
// The namespace selects the TTL (see DefaultConfig) and is the unit of blanket
// invalidation: InvalidateNamespaces(ctx, svc, NamespaceProducts, NamespaceAnalytics)
// deletes every key matching ^(products|analytics):.
//
// # Basic Usage
//
//	keys := cache.NewKeySerializer(cache.NamespaceProducts)
//	product, err := cache.GetOrFetch(ctx, svc, keys.SerializeKey("item", id), func(ctx context.Context) (*domain.Product, error) {
//		return loadProduct(ctx, id)
//	})
//
// Writers invalidate explicitly after a successful commit instead of waiting for TTL
// expiry; the TTL only bounds staleness caused by changes made outside the process.
//
// # Concurrency
//
// The service is shared by every request. Concurrent misses for the same key share one
// fetch; writes are last-writer-wins, which is acceptable because every mutation
// invalidates after it commits.
//
// # See Also
//
// The sturdyc backed implementation lives in internal/cacheinfra. The repositorycache
// package decorates go-repository-bun repositories with the same service.
package cache
