package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kalakari/storefront/internal/auth"
	"github.com/kalakari/storefront/internal/config"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/events"
	"github.com/kalakari/storefront/internal/store"
	"github.com/kalakari/storefront/pkg/testsupport"
)

var dbSeq atomic.Int64

func testConfig(t testing.TB) config.Config {
	cfg := config.Default()
	cfg.Environment = "test"
	cfg.DBDSN = fmt.Sprintf("file:di-test-%d?mode=memory&cache=shared&_fk=1", dbSeq.Add(1))
	cfg.UploadDir = t.TempDir()
	return cfg
}

func newTestContainer(t testing.TB, cfg config.Config, opts ...Option) *Container {
	t.Helper()
	opts = append([]Option{
		WithLogger(testsupport.DiscardLogger()),
		WithHashParams(auth.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}),
	}, opts...)

	container, err := NewContainer(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { container.Close() })
	return container
}

type countingPublisher struct {
	mu     sync.Mutex
	keys   []string
	closed bool
}

func (p *countingPublisher) Publish(ctx context.Context, key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *countingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

func TestNewContainer(t *testing.T) {
	container := newTestContainer(t, testConfig(t))

	if container.DB() == nil || container.CacheService() == nil || container.App() == nil {
		t.Fatal("NewContainer() left core components nil")
	}
	if _, ok := container.Publisher().(*events.LogPublisher); !ok {
		t.Errorf("expected the log publisher for the default backend, got %T", container.Publisher())
	}
	if container.Media().Dir() != container.Config().UploadDir {
		t.Errorf("media dir = %q, want %q", container.Media().Dir(), container.Config().UploadDir)
	}

	resp, err := container.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestNewContainer_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"invalid cache config", func(c *config.Config) { c.Cache.Capacity = 0 }},
		{"unknown driver", func(c *config.Config) { c.DBDriver = "oracle" }},
		{"unknown events backend", func(c *config.Config) { c.EventsBackend = "carrier-pigeon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			container, err := NewContainer(context.Background(), cfg, WithLogger(testsupport.DiscardLogger()))
			if err == nil {
				container.Close()
				t.Fatal("NewContainer() should fail")
			}
		})
	}
}

func TestEnsureAdmin(t *testing.T) {
	cfg := testConfig(t)
	container := newTestContainer(t, cfg)
	ctx := context.Background()

	if err := container.EnsureAdmin(ctx); err != nil {
		t.Fatalf("EnsureAdmin() without an admin email failed: %v", err)
	}
	if n := testsupport.NewSeeder(t, container.DB()).Count((*domain.User)(nil)); n != 0 {
		t.Fatalf("expected no users, got %d", n)
	}

	cfg.DBDSN = fmt.Sprintf("file:di-test-%d?mode=memory&cache=shared&_fk=1", dbSeq.Add(1))
	cfg.AdminEmail = "Owner@Example.com"
	cfg.AdminPassword = "owner-password"
	container = newTestContainer(t, cfg)

	for range 2 {
		if err := container.EnsureAdmin(ctx); err != nil {
			t.Fatalf("EnsureAdmin() failed: %v", err)
		}
	}
	user, err := container.Users().Authenticate(ctx, domain.LoginInput{Email: "owner@example.com", Password: "owner-password"})
	if err != nil {
		t.Fatalf("admin cannot log in: %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Errorf("role = %q, want admin", user.Role)
	}
}

func TestClose(t *testing.T) {
	publisher := &countingPublisher{}
	container, err := NewContainer(context.Background(), testConfig(t),
		WithLogger(testsupport.DiscardLogger()), WithPublisher(publisher))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	if err := container.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if !publisher.closed {
		t.Error("Close() should close the publisher")
	}
	if err := container.DB().Ping(); err == nil {
		t.Error("Close() should close the database")
	}
}

// TestConcurrentOrders races more buyers than there is stock through the wired
// checkout service: exactly the stock is sold and every sale is published.
func TestConcurrentOrders(t *testing.T) {
	publisher := &countingPublisher{}
	container := newTestContainer(t, testConfig(t), WithPublisher(publisher))
	seed := testsupport.NewSeeder(t, container.DB())
	vase := seed.Product(seed.Category("Pottery"), "Blue Vase", "850.00", 10)

	const buyers = 40
	var (
		wg       sync.WaitGroup
		placed   atomic.Int64
		rejected atomic.Int64
		failures = make(chan error, buyers)
	)
	ctx := context.Background()

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := container.Checkout().PlaceOrder(ctx, domain.PlaceOrderInput{
				CustomerName:  fmt.Sprintf("Buyer %d", i),
				CustomerPhone: fmt.Sprintf("03001234%03d", i),
				Address:       "12 Mall Road",
				City:          "Lahore",
				Items:         []domain.OrderLine{{ProductID: vase.ID, Quantity: 1}},
			}, nil)

			var rejection *domain.OrderRejection
			switch {
			case err == nil:
				placed.Add(1)
			case errors.As(err, &rejection):
				rejected.Add(1)
			default:
				failures <- fmt.Errorf("buyer %d: %w", i, err)
			}
		}(i)
	}
	wg.Wait()
	close(failures)

	for err := range failures {
		t.Error(err)
	}
	if placed.Load() != 10 {
		t.Errorf("placed %d orders, want 10", placed.Load())
	}
	if rejected.Load() != buyers-10 {
		t.Errorf("rejected %d orders, want %d", rejected.Load(), buyers-10)
	}
	if stock := seed.Stock(vase.ID); stock != 0 {
		t.Errorf("stock = %d, want 0", stock)
	}
	if publisher.count() != 10 {
		t.Errorf("published %d events, want 10", publisher.count())
	}

	product, err := container.Products().Get(ctx, vase.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if product.Stock != 0 {
		t.Errorf("cached stock = %d, want 0", product.Stock)
	}
}

func BenchmarkProductListing(b *testing.B) {
	container := newTestContainer(b, testConfig(b))
	seed := testsupport.NewSeeder(b, container.DB())
	pottery := seed.Category("Pottery")
	for i := 0; i < 200; i++ {
		seed.Product(pottery, fmt.Sprintf("Vase %03d", i), "850.00", i%7)
	}
	ctx := context.Background()
	filter := store.ProductFilter{Category: "pottery", InStock: true, SortBy: store.SortPriceAsc}

	b.Run("cached", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := container.Products().List(ctx, filter); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("invalidated", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			container.Products().Invalidate(ctx)
			if _, err := container.Products().List(ctx, filter); err != nil {
				b.Fatal(err)
			}
		}
	})
}
