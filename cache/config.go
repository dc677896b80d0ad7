package cache

import (
	"time"

	"github.com/kalakari/storefront/internal/cacheinfra"
)

// Config is the cache configuration. NamespaceTTLs gives each storefront namespace
// its own lifetime; keys outside every namespace fall back to TTL.
type Config = cacheinfra.Config

// EarlyRefreshConfig tunes background refreshes of hot keys. Leave it nil unless the
// data tolerates being refreshed past an invalidation.
type EarlyRefreshConfig = cacheinfra.EarlyRefreshConfig

// DefaultConfig returns the storefront defaults: categories live long, everything
// that moves with orders lives a few minutes.
func DefaultConfig() Config {
	cfg := cacheinfra.DefaultConfig()
	cfg.Separator = KeySeparator
	cfg.NamespaceTTLs = map[string]time.Duration{
		NamespaceCategories: time.Hour,
		NamespaceProducts:   5 * time.Minute,
		NamespaceOrders:     2 * time.Minute,
		NamespaceAnalytics:  5 * time.Minute,
		NamespaceUsers:      10 * time.Minute,
		NamespaceWishlists:  5 * time.Minute,
	}
	return cfg
}

// NewCacheService builds the sturdyc backed service. The separator is always the one
// KeySerializer writes, whatever cfg says.
func NewCacheService(cfg Config) (CacheService, error) {
	cfg.Separator = KeySeparator
	return cacheinfra.NewSturdycService(cfg)
}
