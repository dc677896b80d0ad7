package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Interval is the bucket width of a sales report.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// ParseInterval accepts day, week or month; empty means day.
func ParseInterval(s string) (Interval, bool) {
	switch Interval(s) {
	case "", IntervalDay:
		return IntervalDay, true
	case IntervalWeek, IntervalMonth:
		return Interval(s), true
	}
	return "", false
}

// Range is a half-open time window [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// DefaultRange is the trailing year ending at the close of the current UTC day.
// Both bounds stay fixed for the whole day so default reports share a cache key.
func DefaultRange(now time.Time) Range {
	end := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return Range{From: end.Add(-domain.DefaultAnalyticsAge), To: end}
}

// Normalize converts both bounds to UTC and swaps them when reversed.
func (r Range) Normalize(now time.Time) Range {
	def := DefaultRange(now)
	if r.From.IsZero() {
		r.From = def.From
	}
	if r.To.IsZero() {
		r.To = def.To
	}
	r.From, r.To = r.From.UTC(), r.To.UTC()
	if r.To.Before(r.From) {
		r.From, r.To = r.To, r.From
	}
	return r
}

type SalesBucket struct {
	Period  string       `json:"period" bun:"period"`
	Orders  int          `json:"orders" bun:"orders"`
	Revenue domain.Money `json:"revenue" bun:"revenue"`
	Items   int          `json:"items" bun:"items"`
}

type RevenueReport struct {
	TotalRevenue      domain.Money               `json:"totalRevenue"`
	Orders            int                        `json:"orders"`
	AverageOrderValue domain.Money               `json:"averageOrderValue"`
	ByStatus          map[domain.OrderStatus]int `json:"byStatus"`
}

type TopProduct struct {
	ProductID   uuid.UUID    `json:"productId" bun:"product_id"`
	ProductName string       `json:"productName" bun:"product_name"`
	UnitsSold   int          `json:"unitsSold" bun:"units_sold"`
	Revenue     domain.Money `json:"revenue" bun:"revenue"`
}

type StockLevel struct {
	ID    uuid.UUID `json:"id" bun:"id"`
	Name  string    `json:"name" bun:"name"`
	Stock int       `json:"stock" bun:"stock"`
}

type InventoryReport struct {
	TotalProducts  int          `json:"totalProducts" bun:"total_products"`
	ActiveProducts int          `json:"activeProducts" bun:"active_products"`
	OutOfStock     int          `json:"outOfStock" bun:"out_of_stock"`
	LowStock       int          `json:"lowStock" bun:"low_stock"`
	TotalUnits     int          `json:"totalUnits" bun:"total_units"`
	StockValue     domain.Money `json:"stockValue" bun:"stock_value"`
	LowStockItems  []StockLevel `json:"lowStockItems" bun:"-"`
}

type CustomerSummary struct {
	Phone  string       `json:"phone" bun:"phone"`
	Name   string       `json:"name" bun:"name"`
	Orders int          `json:"orders" bun:"orders"`
	Spent  domain.Money `json:"spent" bun:"spent"`
}

type CustomerReport struct {
	UniqueCustomers int               `json:"uniqueCustomers" bun:"unique_customers"`
	RepeatCustomers int               `json:"repeatCustomers" bun:"repeat_customers"`
	TopCustomers    []CustomerSummary `json:"topCustomers" bun:"-"`
}

type Dashboard struct {
	Revenue       RevenueReport   `json:"revenue"`
	Inventory     InventoryReport `json:"inventory"`
	PendingOrders int             `json:"pendingOrders"`
	RecentOrders  []domain.Order  `json:"recentOrders"`
	TopProducts   []TopProduct    `json:"topProducts"`
}

const (
	dashboardRecentOrders = 5
	dashboardTopProducts  = 5
	topCustomers          = 10
	lowStockListSize      = 20
)

// AnalyticsStore computes reports over orders and products. Cancelled orders never
// count towards revenue figures. Reports are cached in the analytics namespace.
type AnalyticsStore struct {
	db     *bun.DB
	cache  cache.CacheService
	keys   cache.KeySerializer
	logger *slog.Logger
	now    func() time.Time
}

func NewAnalyticsStore(db *bun.DB, cacheService cache.CacheService, logger *slog.Logger) *AnalyticsStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsStore{
		db:     db,
		cache:  cacheService,
		keys:   cache.NewKeySerializer(cache.NamespaceAnalytics),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *AnalyticsStore) rangeKey(method string, r Range, extra ...any) string {
	args := append([]any{r.From.Format(time.RFC3339), r.To.Format(time.RFC3339)}, extra...)
	return s.keys.SerializeKey(method, args...)
}

// bucketExpr formats created_at into a period label for the dialect in use.
func (s *AnalyticsStore) bucketExpr(interval Interval) string {
	if s.db.Dialect().Name() == dialect.PG {
		switch interval {
		case IntervalWeek:
			return `to_char(date_trunc('week', o.created_at), 'IYYY-"W"IW')`
		case IntervalMonth:
			return `to_char(date_trunc('month', o.created_at), 'YYYY-MM')`
		default:
			return `to_char(date_trunc('day', o.created_at), 'YYYY-MM-DD')`
		}
	}
	switch interval {
	case IntervalWeek:
		return `strftime('%Y-W%W', o.created_at)`
	case IntervalMonth:
		return `strftime('%Y-%m', o.created_at)`
	default:
		return `strftime('%Y-%m-%d', o.created_at)`
	}
}

// Sales groups revenue by period.
func (s *AnalyticsStore) Sales(ctx context.Context, r Range, interval Interval) ([]SalesBucket, error) {
	r = r.Normalize(s.now())
	return cache.GetOrFetch(ctx, s.cache, s.rangeKey("sales", r, string(interval)), func(ctx context.Context) ([]SalesBucket, error) {
		buckets := []SalesBucket{}
		err := s.db.NewSelect().
			TableExpr("orders AS o").
			Join("JOIN order_items AS oi ON oi.order_id = o.id").
			ColumnExpr(s.bucketExpr(interval)+" AS period").
			ColumnExpr("COUNT(DISTINCT o.id) AS orders").
			ColumnExpr("COALESCE(SUM(oi.product_price * oi.quantity), 0) AS revenue").
			ColumnExpr("COALESCE(SUM(oi.quantity), 0) AS items").
			Where("o.status <> ?", domain.OrderCancelled).
			Where("o.created_at >= ?", r.From).
			Where("o.created_at < ?", r.To).
			GroupExpr("period").
			OrderExpr("period ASC").
			Scan(ctx, &buckets)
		if err != nil {
			return nil, domain.Internal(fmt.Errorf("sales report: %w", err), "failed to build sales report")
		}
		return buckets, nil
	})
}

// Revenue totals non-cancelled orders and counts orders by status.
func (s *AnalyticsStore) Revenue(ctx context.Context, r Range) (RevenueReport, error) {
	r = r.Normalize(s.now())
	return cache.GetOrFetch(ctx, s.cache, s.rangeKey("revenue", r), func(ctx context.Context) (RevenueReport, error) {
		var totals struct {
			Revenue domain.Money `bun:"revenue"`
			Orders  int          `bun:"orders"`
		}
		err := s.db.NewSelect().
			TableExpr("orders AS o").
			ColumnExpr("COALESCE(SUM(o.total), 0) AS revenue").
			ColumnExpr("COUNT(*) AS orders").
			Where("o.status <> ?", domain.OrderCancelled).
			Where("o.created_at >= ?", r.From).
			Where("o.created_at < ?", r.To).
			Scan(ctx, &totals)
		if err != nil {
			return RevenueReport{}, domain.Internal(fmt.Errorf("revenue report: %w", err), "failed to build revenue report")
		}

		var counts []struct {
			Status domain.OrderStatus `bun:"status"`
			Count  int                `bun:"count"`
		}
		err = s.db.NewSelect().
			TableExpr("orders AS o").
			ColumnExpr("o.status AS status").
			ColumnExpr("COUNT(*) AS count").
			Where("o.created_at >= ?", r.From).
			Where("o.created_at < ?", r.To).
			GroupExpr("o.status").
			Scan(ctx, &counts)
		if err != nil {
			return RevenueReport{}, domain.Internal(fmt.Errorf("orders by status: %w", err), "failed to build revenue report")
		}

		report := RevenueReport{
			TotalRevenue:      totals.Revenue,
			Orders:            totals.Orders,
			AverageOrderValue: totals.Revenue.Div(totals.Orders),
			ByStatus:          make(map[domain.OrderStatus]int, len(domain.OrderStatuses())),
		}
		for _, status := range domain.OrderStatuses() {
			report.ByStatus[status] = 0
		}
		for _, c := range counts {
			report.ByStatus[c.Status] = c.Count
		}
		return report, nil
	})
}

// TopProducts ranks products by revenue. limit defaults to 10 and is capped at 50.
func (s *AnalyticsStore) TopProducts(ctx context.Context, r Range, limit int) ([]TopProduct, error) {
	r = r.Normalize(s.now())
	if limit <= 0 {
		limit = domain.DefaultTopProducts
	}
	if limit > domain.MaxTopProducts {
		limit = domain.MaxTopProducts
	}
	return cache.GetOrFetch(ctx, s.cache, s.rangeKey("top-products", r, limit), func(ctx context.Context) ([]TopProduct, error) {
		top := []TopProduct{}
		err := s.db.NewSelect().
			TableExpr("order_items AS oi").
			Join("JOIN orders AS o ON o.id = oi.order_id").
			ColumnExpr("oi.product_id AS product_id").
			ColumnExpr("MAX(oi.product_name) AS product_name").
			ColumnExpr("SUM(oi.quantity) AS units_sold").
			ColumnExpr("SUM(oi.product_price * oi.quantity) AS revenue").
			Where("o.status <> ?", domain.OrderCancelled).
			Where("o.created_at >= ?", r.From).
			Where("o.created_at < ?", r.To).
			GroupExpr("oi.product_id").
			OrderExpr("revenue DESC, units_sold DESC").
			Limit(limit).
			Scan(ctx, &top)
		if err != nil {
			return nil, domain.Internal(fmt.Errorf("top products: %w", err), "failed to rank products")
		}
		return top, nil
	})
}

// Inventory summarises stock across the catalog. Only active products count towards
// stock figures.
func (s *AnalyticsStore) Inventory(ctx context.Context) (InventoryReport, error) {
	return cache.GetOrFetch(ctx, s.cache, s.keys.SerializeKey("inventory"), func(ctx context.Context) (InventoryReport, error) {
		var report InventoryReport
		active := domain.LifecycleActive
		err := s.db.NewSelect().
			TableExpr("products AS p").
			ColumnExpr("COUNT(*) AS total_products").
			ColumnExpr("COALESCE(SUM(CASE WHEN p.status = ? THEN 1 ELSE 0 END), 0) AS active_products", active).
			ColumnExpr("COALESCE(SUM(CASE WHEN p.status = ? AND p.stock = 0 THEN 1 ELSE 0 END), 0) AS out_of_stock", active).
			ColumnExpr("COALESCE(SUM(CASE WHEN p.status = ? AND p.stock > 0 AND p.stock <= ? THEN 1 ELSE 0 END), 0) AS low_stock", active, domain.LowStockThreshold).
			ColumnExpr("COALESCE(SUM(CASE WHEN p.status = ? THEN p.stock ELSE 0 END), 0) AS total_units", active).
			ColumnExpr("COALESCE(SUM(CASE WHEN p.status = ? THEN p.price * p.stock ELSE 0 END), 0) AS stock_value", active).
			Scan(ctx, &report)
		if err != nil {
			return InventoryReport{}, domain.Internal(fmt.Errorf("inventory report: %w", err), "failed to build inventory report")
		}

		report.LowStockItems = []StockLevel{}
		err = s.db.NewSelect().
			TableExpr("products AS p").
			ColumnExpr("p.id, p.name, p.stock").
			Where("p.status = ?", active).
			Where("p.stock <= ?", domain.LowStockThreshold).
			OrderExpr("p.stock ASC, p.name ASC").
			Limit(lowStockListSize).
			Scan(ctx, &report.LowStockItems)
		if err != nil {
			return InventoryReport{}, domain.Internal(fmt.Errorf("low stock items: %w", err), "failed to build inventory report")
		}
		return report, nil
	})
}

// Customers groups non-cancelled orders by phone number.
func (s *AnalyticsStore) Customers(ctx context.Context, r Range) (CustomerReport, error) {
	r = r.Normalize(s.now())
	return cache.GetOrFetch(ctx, s.cache, s.rangeKey("customers", r), func(ctx context.Context) (CustomerReport, error) {
		perCustomer := func() *bun.SelectQuery {
			return s.db.NewSelect().
				TableExpr("orders AS o").
				Where("o.status <> ?", domain.OrderCancelled).
				Where("o.created_at >= ?", r.From).
				Where("o.created_at < ?", r.To).
				GroupExpr("o.customer_phone")
		}

		var report CustomerReport
		err := s.db.NewSelect().
			TableExpr("(?) AS t", perCustomer().ColumnExpr("o.customer_phone, COUNT(*) AS n")).
			ColumnExpr("COUNT(*) AS unique_customers").
			ColumnExpr("COALESCE(SUM(CASE WHEN t.n > 1 THEN 1 ELSE 0 END), 0) AS repeat_customers").
			Scan(ctx, &report)
		if err != nil {
			return CustomerReport{}, domain.Internal(fmt.Errorf("customer counts: %w", err), "failed to build customer report")
		}

		report.TopCustomers = []CustomerSummary{}
		err = perCustomer().
			ColumnExpr("o.customer_phone AS phone").
			ColumnExpr("MAX(o.customer_name) AS name").
			ColumnExpr("COUNT(*) AS orders").
			ColumnExpr("SUM(o.total) AS spent").
			OrderExpr("spent DESC, orders DESC").
			Limit(topCustomers).
			Scan(ctx, &report.TopCustomers)
		if err != nil {
			return CustomerReport{}, domain.Internal(fmt.Errorf("top customers: %w", err), "failed to build customer report")
		}
		return report, nil
	})
}

// Dashboard combines the headline reports for the admin landing page.
func (s *AnalyticsStore) Dashboard(ctx context.Context, r Range) (Dashboard, error) {
	r = r.Normalize(s.now())
	return cache.GetOrFetch(ctx, s.cache, s.rangeKey("dashboard", r), func(ctx context.Context) (Dashboard, error) {
		revenue, err := s.Revenue(ctx, r)
		if err != nil {
			return Dashboard{}, err
		}
		inventory, err := s.Inventory(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		top, err := s.TopProducts(ctx, r, dashboardTopProducts)
		if err != nil {
			return Dashboard{}, err
		}

		pending, err := s.db.NewSelect().
			Model((*domain.Order)(nil)).
			Where("o.status = ?", domain.OrderPending).
			Count(ctx)
		if err != nil {
			return Dashboard{}, domain.Internal(fmt.Errorf("pending orders: %w", err), "failed to build dashboard")
		}

		recent := []domain.Order{}
		err = s.db.NewSelect().
			Model(&recent).
			Relation("Items").
			Order("o.created_at DESC", "o.id ASC").
			Limit(dashboardRecentOrders).
			Scan(ctx)
		if err != nil {
			return Dashboard{}, domain.Internal(fmt.Errorf("recent orders: %w", err), "failed to build dashboard")
		}

		return Dashboard{
			Revenue:       revenue,
			Inventory:     inventory,
			PendingOrders: pending,
			RecentOrders:  recent,
			TopProducts:   top,
		}, nil
	})
}
