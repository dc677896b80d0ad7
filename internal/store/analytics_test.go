package store

import (
	"context"
	"testing"
	"time"

	"github.com/kalakari/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type analyticsFixture struct {
	*fixture
	vase, scarf, bowl *domain.Product
	window            Range
}

// newAnalyticsFixture seeds four orders over two days of March 2024:
//
//	Mar 1 10:00  0300  vase x2 + scarf x1   pending    4100.00
//	Mar 1 15:00  0311  scarf x1             delivered  2400.00
//	Mar 2 09:00  0300  vase x1              confirmed   850.00
//	Mar 2 11:00  0322  vase x5              cancelled  4250.00
func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	f := newFixture(t)
	c := f.seed.Category("Pottery")
	a := &analyticsFixture{
		fixture: f,
		vase:    f.seed.Product(c, "Blue Vase", "850.00", 3),
		scarf:   f.seed.Product(c, "Silk Scarf", "2400.00", 0),
		bowl:    f.seed.Product(c, "Clay Bowl", "100.00", 20),
		window:  Range{From: day(1, 0), To: day(3, 0)},
	}
	f.seed.Order("0300", domain.OrderPending, day(1, 10), map[*domain.Product]int{a.vase: 2, a.scarf: 1})
	f.seed.Order("0311", domain.OrderDelivered, day(1, 15), map[*domain.Product]int{a.scarf: 1})
	f.seed.Order("0300", domain.OrderConfirmed, day(2, 9), map[*domain.Product]int{a.vase: 1})
	f.seed.Order("0322", domain.OrderCancelled, day(2, 11), map[*domain.Product]int{a.vase: 5})
	return a
}

func TestSalesByDay(t *testing.T) {
	a := newAnalyticsFixture(t)

	buckets, err := a.analytics.Sales(context.Background(), a.window, IntervalDay)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	assert.Equal(t, "2024-03-01", buckets[0].Period)
	assert.Equal(t, 2, buckets[0].Orders)
	assert.Equal(t, "6500.00", buckets[0].Revenue.String())
	assert.Equal(t, 4, buckets[0].Items)

	assert.Equal(t, "2024-03-02", buckets[1].Period)
	assert.Equal(t, 1, buckets[1].Orders)
	assert.Equal(t, "850.00", buckets[1].Revenue.String())
}

func TestSalesByMonth(t *testing.T) {
	a := newAnalyticsFixture(t)

	buckets, err := a.analytics.Sales(context.Background(), a.window, IntervalMonth)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "2024-03", buckets[0].Period)
	assert.Equal(t, 3, buckets[0].Orders)
	assert.Equal(t, "7350.00", buckets[0].Revenue.String())
}

func TestSalesRangeIsHalfOpen(t *testing.T) {
	a := newAnalyticsFixture(t)

	buckets, err := a.analytics.Sales(context.Background(), Range{From: day(1, 15), To: day(2, 9)}, IntervalDay)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 1, buckets[0].Orders)
	assert.Equal(t, "2400.00", buckets[0].Revenue.String())
}

func TestRevenueExcludesCancelled(t *testing.T) {
	a := newAnalyticsFixture(t)

	report, err := a.analytics.Revenue(context.Background(), a.window)
	require.NoError(t, err)

	assert.Equal(t, "7350.00", report.TotalRevenue.String())
	assert.Equal(t, 3, report.Orders)
	assert.Equal(t, "2450.00", report.AverageOrderValue.String())
	assert.Equal(t, map[domain.OrderStatus]int{
		domain.OrderPending:   1,
		domain.OrderConfirmed: 1,
		domain.OrderDelivered: 1,
		domain.OrderCancelled: 1,
	}, report.ByStatus)
}

func TestRevenueOfEmptyRange(t *testing.T) {
	a := newAnalyticsFixture(t)

	report, err := a.analytics.Revenue(context.Background(), Range{From: day(10, 0), To: day(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, "0.00", report.TotalRevenue.String())
	assert.Equal(t, 0, report.Orders)
	assert.Equal(t, "0.00", report.AverageOrderValue.String())
}

func TestTopProducts(t *testing.T) {
	a := newAnalyticsFixture(t)
	ctx := context.Background()

	top, err := a.analytics.TopProducts(ctx, a.window, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)

	assert.Equal(t, a.scarf.ID, top[0].ProductID)
	assert.Equal(t, 2, top[0].UnitsSold)
	assert.Equal(t, "4800.00", top[0].Revenue.String())
	assert.Equal(t, "Blue Vase", top[1].ProductName)
	assert.Equal(t, 3, top[1].UnitsSold)
	assert.Equal(t, "2550.00", top[1].Revenue.String())

	top, err = a.analytics.TopProducts(ctx, a.window, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestInventory(t *testing.T) {
	a := newAnalyticsFixture(t)
	a.seed.Deactivate(a.bowl)

	report, err := a.analytics.Inventory(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalProducts)
	assert.Equal(t, 2, report.ActiveProducts)
	assert.Equal(t, 1, report.OutOfStock)
	assert.Equal(t, 1, report.LowStock)
	assert.Equal(t, 3, report.TotalUnits)
	assert.Equal(t, "2550.00", report.StockValue.String())
	require.Len(t, report.LowStockItems, 2)
	assert.Equal(t, "Silk Scarf", report.LowStockItems[0].Name)
	assert.Equal(t, "Blue Vase", report.LowStockItems[1].Name)
}

func TestCustomers(t *testing.T) {
	a := newAnalyticsFixture(t)

	report, err := a.analytics.Customers(context.Background(), a.window)
	require.NoError(t, err)

	assert.Equal(t, 2, report.UniqueCustomers)
	assert.Equal(t, 1, report.RepeatCustomers)
	require.Len(t, report.TopCustomers, 2)
	assert.Equal(t, "0300", report.TopCustomers[0].Phone)
	assert.Equal(t, 2, report.TopCustomers[0].Orders)
	assert.Equal(t, "4950.00", report.TopCustomers[0].Spent.String())
	assert.Equal(t, "0311", report.TopCustomers[1].Phone)
}

func TestDashboard(t *testing.T) {
	a := newAnalyticsFixture(t)

	dash, err := a.analytics.Dashboard(context.Background(), a.window)
	require.NoError(t, err)

	assert.Equal(t, "7350.00", dash.Revenue.TotalRevenue.String())
	assert.Equal(t, 1, dash.PendingOrders)
	assert.Len(t, dash.RecentOrders, 4)
	assert.Len(t, dash.TopProducts, 2)
	assert.Equal(t, 3, dash.Inventory.TotalProducts)
}

func TestAnalyticsCacheDroppedByOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 5)
	window := Range{From: time.Now().Add(-time.Hour), To: time.Now().Add(time.Hour)}

	report, err := f.analytics.Revenue(ctx, window)
	require.NoError(t, err)
	require.Equal(t, 0, report.Orders)

	order, err := f.orders.Place(ctx, orderInput(line(vase, 2)))
	require.NoError(t, err)

	report, err = f.analytics.Revenue(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Orders)
	assert.Equal(t, "1700.00", report.TotalRevenue.String())

	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderCancelled)
	require.NoError(t, err)

	report, err = f.analytics.Revenue(ctx, window)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Orders)
}

func TestParseIntervalAndRange(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Interval
		ok   bool
	}{
		{"", IntervalDay, true},
		{"day", IntervalDay, true},
		{"week", IntervalWeek, true},
		{"month", IntervalMonth, true},
		{"year", "", false},
	} {
		got, ok := ParseInterval(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	now := day(15, 12)
	r := Range{}.Normalize(now)
	assert.Equal(t, day(16, 0), r.To)
	assert.Equal(t, day(16, 0).Add(-domain.DefaultAnalyticsAge), r.From)
	assert.Equal(t, r, Range{}.Normalize(now.Add(11*time.Hour+59*time.Minute)))

	swapped := Range{From: day(3, 0), To: day(1, 0)}.Normalize(now)
	assert.Equal(t, day(1, 0), swapped.From)
}

func TestDefaultRangeReportsShareCacheEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 50)
	f.seed.Order("0300", domain.OrderDelivered, day(15, 9), map[*domain.Product]int{vase: 1})

	now := day(15, 12)
	f.analytics.now = func() time.Time { return now }

	first, err := f.analytics.Revenue(ctx, Range{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Orders)

	// Seeded orders bypass invalidation, so a cache hit still reports one order.
	f.seed.Order("0301", domain.OrderDelivered, day(15, 10), map[*domain.Product]int{vase: 1})
	now = now.Add(time.Second)

	second, err := f.analytics.Revenue(ctx, Range{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Orders)
}
