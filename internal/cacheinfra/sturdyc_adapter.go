package cacheinfra

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc cache adapter.
type Config struct {
	// Capacity defines the maximum number of entries each namespace client can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 64
	NumShards int

	// TTL is the default time-to-live, used for keys outside any configured namespace.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when a client reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh configures early refresh behavior for cached entries.
	// If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage enables storage for missing record flags.
	MissingRecordStorage bool

	// EvictionInterval sets how often each client sweeps expired entries.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration

	// NamespaceTTLs gives a namespace its own client and TTL.
	NamespaceTTLs map[string]time.Duration

	// Separator splits the namespace from the rest of a key. Default ":".
	Separator string
}

// EarlyRefreshConfig configures early refresh behavior.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a Config with sensible defaults for the storefront.
// Early refresh and missing record storage stay off: a background refresh racing an
// invalidation would put pre-write data back in the cache.
func DefaultConfig() Config {
	return Config{
		Capacity:           5000,
		NumShards:          64,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
		EvictionInterval:   time.Minute,
		Separator:          ":",
	}
}

// ToSturdycOptions converts the Config to sturdyc.Option slice.
// Capacity, NumShards, TTL, and EvictionPercentage are passed directly
// to sturdyc.New() and are not included in the options.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	for ns, ttl := range c.NamespaceTTLs {
		if strings.TrimSpace(ns) == "" {
			return &ConfigError{Field: "NamespaceTTLs", Message: "namespace must not be empty"}
		}
		if ttl <= 0 {
			return &ConfigError{Field: "NamespaceTTLs." + ns, Message: "must be greater than 0"}
		}
	}

	if c.EarlyRefresh != nil {
		if c.EarlyRefresh.MinAsyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.MinAsyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.MaxAsyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.MaxAsyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.SyncRefreshTime < 0 {
			return &ConfigError{Field: "EarlyRefresh.SyncRefreshTime", Message: "must be non-negative"}
		}
		if c.EarlyRefresh.RetryBaseDelay < 0 {
			return &ConfigError{Field: "EarlyRefresh.RetryBaseDelay", Message: "must be non-negative"}
		}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycService routes every key to the sturdyc client of its namespace, so each
// namespace keeps its own TTL and its own eviction sweep.
type SturdycService struct {
	separator  string
	fallback   *sturdyc.Client[any]
	namespaces map[string]*sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds one client per configured namespace plus
// a fallback client using the default TTL.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	separator := cfg.Separator
	if separator == "" {
		separator = ":"
	}

	opts := cfg.ToSturdycOptions()
	svc := &SturdycService{
		separator:  separator,
		fallback:   sturdyc.New[any](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage, opts...),
		namespaces: make(map[string]*sturdyc.Client[any], len(cfg.NamespaceTTLs)),
	}
	for ns, ttl := range cfg.NamespaceTTLs {
		svc.namespaces[ns] = sturdyc.New[any](cfg.Capacity, cfg.NumShards, ttl, cfg.EvictionPercentage, opts...)
	}

	return svc, nil
}

func (s *SturdycService) clientFor(key string) *sturdyc.Client[any] {
	if ns, _, found := strings.Cut(key, s.separator); found {
		if client, ok := s.namespaces[ns]; ok {
			return client
		}
	}
	return s.fallback
}

func (s *SturdycService) clients() []*sturdyc.Client[any] {
	out := make([]*sturdyc.Client[any], 0, len(s.namespaces)+1)
	out = append(out, s.fallback)
	for _, client := range s.namespaces {
		out = append(out, client)
	}
	return out
}

// GetOrFetch implements cache.CacheService.GetOrFetch.
// Concurrent misses on the same key share a single fetchFn call.
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn func(ctx context.Context) (any, error)) (any, error) {
	if fetchFn == nil {
		return nil, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}
	return s.clientFor(key).GetOrFetch(ctx, key, fetchFn)
}

// Get returns the cached value for key without fetching.
func (s *SturdycService) Get(key string) (any, bool) {
	return s.clientFor(key).Get(key)
}

// Delete implements cache.CacheService.Delete.
func (s *SturdycService) Delete(ctx context.Context, key string) error {
	s.clientFor(key).Delete(key)
	return nil
}

// DeleteByPrefix implements cache.CacheService.DeleteByPrefix.
func (s *SturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, client := range s.clients() {
		for _, key := range client.ScanKeys() {
			if strings.HasPrefix(key, prefix) {
				client.Delete(key)
			}
		}
	}
	return nil
}

// DeleteByPattern implements cache.CacheService.DeleteByPattern.
func (s *SturdycService) DeleteByPattern(ctx context.Context, pattern *regexp.Regexp) error {
	if pattern == nil {
		return &ConfigError{Field: "pattern", Message: "cannot be nil"}
	}
	for _, client := range s.clients() {
		for _, key := range client.ScanKeys() {
			if pattern.MatchString(key) {
				client.Delete(key)
			}
		}
	}
	return nil
}

// InvalidateKeys implements cache.CacheService.InvalidateKeys.
func (s *SturdycService) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		s.clientFor(key).Delete(key)
	}
	return nil
}

// Keys lists every cached key in sorted order.
func (s *SturdycService) Keys() []string {
	var keys []string
	for _, client := range s.clients() {
		keys = append(keys, client.ScanKeys()...)
	}
	sort.Strings(keys)
	return keys
}
