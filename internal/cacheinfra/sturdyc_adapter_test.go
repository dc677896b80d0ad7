package cacheinfra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Capacity:           100,
		NumShards:          2,
		TTL:                time.Minute,
		EvictionPercentage: 10,
		NamespaceTTLs: map[string]time.Duration{
			"products":   time.Minute,
			"categories": time.Hour,
		},
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 5000 {
		t.Errorf("expected Capacity to be 5000, got %d", cfg.Capacity)
	}
	if cfg.TTL != 10*time.Minute {
		t.Errorf("expected TTL to be 10 minutes, got %v", cfg.TTL)
	}
	if cfg.MissingRecordStorage {
		t.Error("expected MissingRecordStorage to be disabled")
	}
	if cfg.EarlyRefresh != nil {
		t.Error("expected EarlyRefresh to be disabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		errorMsg string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero capacity", mutate: func(c *Config) { c.Capacity = 0 }, errorMsg: "config error in field Capacity: must be greater than 0"},
		{name: "zero shards", mutate: func(c *Config) { c.NumShards = 0 }, errorMsg: "config error in field NumShards: must be greater than 0"},
		{name: "zero TTL", mutate: func(c *Config) { c.TTL = 0 }, errorMsg: "config error in field TTL: must be greater than 0"},
		{name: "eviction too high", mutate: func(c *Config) { c.EvictionPercentage = 101 }, errorMsg: "config error in field EvictionPercentage: must be between 1 and 100"},
		{
			name:     "namespace TTL zero",
			mutate:   func(c *Config) { c.NamespaceTTLs["orders"] = 0 },
			errorMsg: "config error in field NamespaceTTLs.orders: must be greater than 0",
		},
		{
			name: "negative early refresh",
			mutate: func(c *Config) {
				c.EarlyRefresh = &EarlyRefreshConfig{MinAsyncRefreshTime: -time.Second}
			},
			errorMsg: "config error in field EarlyRefresh.MinAsyncRefreshTime: must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("expected no validation error but got: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.errorMsg {
				t.Errorf("expected error %q, got %v", tt.errorMsg, err)
			}
		})
	}
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	cfg := testConfig()
	if got := len(cfg.ToSturdycOptions()); got != 0 {
		t.Errorf("expected no sturdyc options, got %d", got)
	}

	cfg.MissingRecordStorage = true
	cfg.EvictionInterval = time.Second
	cfg.EarlyRefresh = &EarlyRefreshConfig{
		MinAsyncRefreshTime: time.Second,
		MaxAsyncRefreshTime: 2 * time.Second,
		SyncRefreshTime:     3 * time.Second,
		RetryBaseDelay:      time.Millisecond,
	}
	if got := len(cfg.ToSturdycOptions()); got != 3 {
		t.Errorf("expected 3 sturdyc options, got %d", got)
	}
}

func TestNewSturdycService_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 0

	service, err := NewSturdycService(cfg)
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if service != nil {
		t.Error("expected service to be nil when error occurs")
	}
}

func TestSturdycService_GetOrFetch(t *testing.T) {
	service, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		result, err := service.GetOrFetch(ctx, "products:item:1", fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "value" {
			t.Errorf("expected value, got %v", result)
		}
	}
	if calls != 1 {
		t.Errorf("expected a single fetch, got %d", calls)
	}

	if _, ok := service.Get("products:item:1"); !ok {
		t.Error("expected key to be cached in the products client")
	}
}

func TestSturdycService_ErrorsAreNotCached(t *testing.T) {
	service, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	boom := errors.New("fetch failed")
	_, err = service.GetOrFetch(ctx, "products:item:2", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected %v, got %v", boom, err)
	}

	result, err := service.GetOrFetch(ctx, "products:item:2", func(ctx context.Context) (any, error) {
		return "recovered", nil
	})
	if err != nil || result != "recovered" {
		t.Errorf("expected recovered value, got %v, %v", result, err)
	}
}

func TestSturdycService_NilFetch(t *testing.T) {
	service, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	if _, err := service.GetOrFetch(context.Background(), "k", nil); err == nil {
		t.Error("expected error for nil fetch function")
	}
}

func seed(t *testing.T, service *SturdycService, keys ...string) {
	t.Helper()
	for _, key := range keys {
		value := key
		if _, err := service.GetOrFetch(context.Background(), key, func(ctx context.Context) (any, error) {
			return value, nil
		}); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
}

func TestSturdycService_Invalidation(t *testing.T) {
	ctx := context.Background()
	keys := []string{
		"products:item:1",
		"products:list:h01",
		"categories:slug:pottery",
		"orders:all",
	}

	t.Run("delete single key", func(t *testing.T) {
		service, _ := NewSturdycService(testConfig())
		seed(t, service, keys...)

		if err := service.Delete(ctx, "products:item:1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"categories:slug:pottery", "orders:all", "products:list:h01"}
		if got := service.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("delete by prefix spans clients", func(t *testing.T) {
		service, _ := NewSturdycService(testConfig())
		seed(t, service, keys...)

		if err := service.DeleteByPrefix(ctx, "products:"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"categories:slug:pottery", "orders:all"}
		if got := service.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("delete by pattern", func(t *testing.T) {
		service, _ := NewSturdycService(testConfig())
		seed(t, service, keys...)

		if err := service.DeleteByPattern(ctx, regexp.MustCompile(`^(products|orders):`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"categories:slug:pottery"}
		if got := service.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("nil pattern rejected", func(t *testing.T) {
		service, _ := NewSturdycService(testConfig())
		if err := service.DeleteByPattern(ctx, nil); err == nil {
			t.Error("expected error for nil pattern")
		}
	})

	t.Run("invalidate keys", func(t *testing.T) {
		service, _ := NewSturdycService(testConfig())
		seed(t, service, keys...)

		if err := service.InvalidateKeys(ctx, []string{"orders:all", "categories:slug:pottery", "missing"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"products:item:1", "products:list:h01"}
		if got := service.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, got)
		}
	})
}

func TestSturdycService_NamespaceTTL(t *testing.T) {
	cfg := testConfig()
	cfg.NamespaceTTLs["flash"] = 50 * time.Millisecond
	service, err := NewSturdycService(cfg)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	seed(t, service, "flash:item", "categories:item")
	time.Sleep(120 * time.Millisecond)

	if _, ok := service.Get("flash:item"); ok {
		t.Error("expected flash entry to expire")
	}
	if _, ok := service.Get("categories:item"); !ok {
		t.Error("expected categories entry to survive")
	}
}

func TestSturdycService_ConcurrentAccess(t *testing.T) {
	service, err := NewSturdycService(testConfig())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = service.GetOrFetch(ctx, "products:item:shared", func(ctx context.Context) (any, error) {
				return i, nil
			})
			if i%5 == 0 {
				_ = service.DeleteByPrefix(ctx, "products:")
			}
		}(i)
	}
	wg.Wait()
}
