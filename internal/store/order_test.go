package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderInput(lines ...domain.OrderLine) domain.PlaceOrderInput {
	return domain.PlaceOrderInput{
		CustomerName:  "Ayesha Khan",
		CustomerPhone: "0300-123 4567",
		Address:       "12 Mall Road",
		City:          "Lahore",
		Items:         lines,
	}
}

func line(p *domain.Product, qty int) domain.OrderLine {
	return domain.OrderLine{ProductID: p.ID, Quantity: qty}
}

func TestPlaceOrderComputesTotalAndTakesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 5)

	order, err := f.orders.Place(ctx, orderInput(line(vase, 2)))
	require.NoError(t, err)

	assert.Equal(t, "1700.00", order.Total.String())
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, domain.PaymentCashOnDelivery, order.PaymentMethod)
	assert.Equal(t, "03001234567", order.CustomerPhone)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Blue Vase", order.Items[0].ProductName)
	assert.Equal(t, "850.00", order.Items[0].ProductPrice.String())
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, 3, f.seed.Stock(vase.ID))

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "1700.00", stored.Total.String())
	assert.Len(t, stored.Items, 1)
}

func TestPlaceOrderMergesDuplicateLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 5)

	order, err := f.orders.Place(ctx, orderInput(line(vase, 1), line(vase, 2)))
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, "2550.00", order.Total.String())
	assert.Equal(t, 2, f.seed.Stock(vase.ID))
}

func TestPlaceOrderRejectsAndWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.seed.Category("Pottery")
	vase := f.seed.Product(c, "Blue Vase", "850.00", 5)
	bowl := f.seed.Product(c, "Clay Bowl", "120.00", 1)
	retired := f.seed.Product(c, "Old Jug", "50.00", 10)
	f.seed.Deactivate(retired)
	ghost := uuid.New()

	_, err := f.orders.Place(ctx, orderInput(
		line(vase, 2),
		line(bowl, 3),
		line(retired, 1),
		domain.OrderLine{ProductID: ghost, Quantity: 1},
	))
	require.Error(t, err)

	var rejection *domain.OrderRejection
	require.ErrorAs(t, err, &rejection)
	require.Len(t, rejection.Problems, 3)

	byProduct := map[uuid.UUID]domain.LineProblem{}
	for _, p := range rejection.Problems {
		byProduct[p.ProductID] = p
	}
	assert.Equal(t, domain.ReasonInsufficientStock, byProduct[bowl.ID].Reason)
	assert.Equal(t, 3, byProduct[bowl.ID].Requested)
	assert.Equal(t, 1, byProduct[bowl.ID].Available)
	assert.Equal(t, domain.ReasonNotFound, byProduct[retired.ID].Reason)
	assert.Equal(t, domain.ReasonNotFound, byProduct[ghost].Reason)

	assert.Equal(t, 5, f.seed.Stock(vase.ID), "successful lines must be rolled back")
	assert.Equal(t, 1, f.seed.Stock(bowl.ID))
	assert.Equal(t, 0, f.seed.Count((*domain.Order)(nil)))
	assert.Equal(t, 0, f.seed.Count((*domain.OrderItem)(nil)))
}

func TestPlaceOrderNeverOversells(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lamp := f.seed.Product(f.seed.Category("Brass"), "Brass Lamp", "4500.00", 1)

	const buyers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		placed    int
		rejected  int
		unexpects []error
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.Place(ctx, orderInput(line(lamp, 1)))
			mu.Lock()
			defer mu.Unlock()
			var rejection *domain.OrderRejection
			switch {
			case err == nil:
				placed++
			case errors.As(err, &rejection):
				rejected++
			default:
				unexpects = append(unexpects, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, unexpects)
	assert.Equal(t, 1, placed)
	assert.Equal(t, buyers-1, rejected)
	assert.Equal(t, 0, f.seed.Stock(lamp.ID))
	assert.Equal(t, 1, f.seed.Count((*domain.Order)(nil)))
}

func TestPlaceOrderInvalidatesProductCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 5)

	before, err := f.products.Get(ctx, vase.ID)
	require.NoError(t, err)
	require.Equal(t, 5, before.Stock)

	_, err = f.orders.Place(ctx, orderInput(line(vase, 2)))
	require.NoError(t, err)

	after, err := f.products.Get(ctx, vase.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Stock)
}

func TestPlaceOrderRequiresItems(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Place(context.Background(), orderInput())
	assert.True(t, domain.HasCategory(err, goerrors.CategoryValidation))
}

func TestPlaceOrderRejectsNonPositiveQuantities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 5)

	for _, qty := range []int{0, -1} {
		_, err := f.orders.Place(ctx, orderInput(line(vase, qty)))
		assert.Truef(t, domain.HasCategory(err, goerrors.CategoryValidation), "quantity %d", qty)
	}
	_, err := f.orders.Place(ctx, orderInput(line(vase, 2), line(vase, -2)))
	assert.True(t, domain.HasCategory(err, goerrors.CategoryValidation), "merged quantity is zero")

	assert.Equal(t, 5, f.seed.Stock(vase.ID))
	assert.Zero(t, f.seed.Count((*domain.Order)(nil)))
}

func TestOrderKeepsPriceSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 5)

	order, err := f.orders.Place(ctx, orderInput(line(vase, 2)))
	require.NoError(t, err)

	price := domain.MustMoney("900")
	updated, err := f.products.Update(ctx, vase.ID, domain.ProductPatch{Price: &price})
	require.NoError(t, err)
	require.Equal(t, "900.00", updated.Price.String())

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "1700.00", stored.Total.String())
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "850.00", stored.Items[0].ProductPrice.String())

	byPhone, err := f.orders.ByCustomerPhone(ctx, order.CustomerPhone)
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, "1700.00", byPhone[0].Total.String())
	assert.Equal(t, "850.00", byPhone[0].Items[0].ProductPrice.String())
}

func TestOrderLookups(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 50)
	user := f.seed.User("buyer@example.com", domain.RoleCustomer)

	first, err := f.orders.Place(ctx, orderInput(line(vase, 1)))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	in := orderInput(line(vase, 2))
	in.UserID = &user.ID
	second, err := f.orders.Place(ctx, in)
	require.NoError(t, err)

	other := orderInput(line(vase, 1))
	other.CustomerPhone = "+92 321 7654321"
	_, err = f.orders.Place(ctx, other)
	require.NoError(t, err)

	byPhone, err := f.orders.ByCustomerPhone(ctx, "0300 1234567")
	require.NoError(t, err)
	require.Len(t, byPhone, 2)
	assert.Equal(t, second.ID, byPhone[0].ID, "newest first")
	assert.Equal(t, first.ID, byPhone[1].ID)
	assert.Len(t, byPhone[0].Items, 1)

	byUser, err := f.orders.ByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, second.ID, byUser[0].ID)

	none, err := f.orders.ByCustomerPhone(ctx, "0000000")
	require.NoError(t, err)
	assert.Empty(t, none)

	page, err := f.orders.List(ctx, OrderFilter{Pagination: Pagination{Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	_, err = f.orders.Get(ctx, uuid.New())
	assert.True(t, domain.IsNotFound(err))
}

func TestUpdateStatusFollowsTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 5)

	order, err := f.orders.Place(ctx, orderInput(line(vase, 1)))
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderDelivered)
	require.Error(t, err)
	var gerr *goerrors.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", gerr.TextCode)

	change, err := f.orders.UpdateStatus(ctx, order.ID, domain.OrderConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, change.Previous)
	assert.Equal(t, domain.OrderConfirmed, change.Order.Status)

	cached, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, cached.Status)

	confirmed, err := f.orders.List(ctx, OrderFilter{Status: domain.OrderConfirmed})
	require.NoError(t, err)
	assert.Equal(t, 1, confirmed.Total)

	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderCancelled)
	require.ErrorAs(t, err, &gerr, "confirmed orders cannot be cancelled")
	assert.Equal(t, "INVALID_STATUS_TRANSITION", gerr.TextCode)
	assert.Equal(t, 409, gerr.Code)
	assert.Equal(t, 4, f.seed.Stock(vase.ID), "stock stays taken")

	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderDelivered)
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderCancelled)
	assert.Error(t, err, "delivered is terminal")
	assert.Equal(t, 4, f.seed.Stock(vase.ID))

	_, err = f.orders.UpdateStatus(ctx, uuid.New(), domain.OrderConfirmed)
	assert.True(t, domain.IsNotFound(err))
}

func TestCancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	vase := f.seed.Product(f.seed.Category("Pottery"), "Blue Vase", "850.00", 5)

	order, err := f.orders.Place(ctx, orderInput(line(vase, 2)))
	require.NoError(t, err)
	product, err := f.products.Get(ctx, vase.ID)
	require.NoError(t, err)
	require.Equal(t, 3, product.Stock)

	_, err = f.orders.UpdateStatus(ctx, order.ID, domain.OrderCancelled)
	require.NoError(t, err)

	assert.Equal(t, 5, f.seed.Stock(vase.ID))
	product, err = f.products.Get(ctx, vase.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, product.Stock)
}
