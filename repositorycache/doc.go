// Package repositorycache decorates go-repository-bun repositories with cache-aside
// reads.
//
// # Overview
//
// CachedRepository[T] implements repository.Repository[T]. Reads (Get, GetByID,
// GetByIdentifier, List, Count) go through cache.GetOrFetch; writes and every *Tx
// method go straight to the base repository.
//
//	categories := repositorycache.New[*domain.Category](base, cacheService,
//		repositorycache.WithNamespace(cache.NamespaceCategories),
//		repositorycache.WithRelatedNamespaces(cache.NamespaceProducts),
//	)
//
// # Keys
//
// Keys are namespace:method:args, built by cache.NewKeySerializer. The namespace is
// what the cache service uses to choose the TTL, so it should be one of the cache
// package namespaces. Without WithNamespace it falls back to the snake_case name of T.
//
// SelectCriteria are functions and serialize by identity. Two closures created from
// the same literal share an identity, so filters that capture variables must go
// through ListKeyed with a key argument that describes them.
//
// # Invalidation
//
// A successful write drops the whole namespace plus the related namespaces with a
// single DeleteByPattern call. Records embedded in other namespaces (a category inside
// a product listing) are covered by WithRelatedNamespaces.
//
// For narrower invalidation, reads made with a context from WithCacheTags are
// registered in a TagIndex, and InvalidateTags drops just those keys:
//
//	ctx = repositorycache.WithCacheTags(ctx, "wishlist:"+userID)
//	items, _, _ := wishlists.ListKeyed(ctx, userID, byUser)
//	...
//	wishlists.InvalidateTags(ctx, "wishlist:"+userID)
//
// Errors from the base repository are never cached.
package repositorycache
