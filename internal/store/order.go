package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalakari/storefront/cache"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/storage"
	"github.com/uptrace/bun"
)

// OrderFilter narrows the admin order listing.
type OrderFilter struct {
	Status domain.OrderStatus
	Pagination
}

type OrderPage = Page[domain.Order]

// StatusChange is the result of a status transition.
type StatusChange struct {
	Order    *domain.Order
	Previous domain.OrderStatus
}

// OrderStore places orders and reads them through the orders cache namespace.
type OrderStore struct {
	db     *bun.DB
	tx     *storage.TxManager
	cache  cache.CacheService
	keys   cache.KeySerializer
	logger *slog.Logger
	now    func() time.Time
}

func NewOrderStore(db *bun.DB, tx *storage.TxManager, cacheService cache.CacheService, logger *slog.Logger) *OrderStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderStore{
		db:     db,
		tx:     tx,
		cache:  cacheService,
		keys:   cache.NewKeySerializer(cache.NamespaceOrders),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Place creates a pending cash-on-delivery order. Stock is taken with a conditional
// decrement per product, so concurrent orders can never oversell. When any line
// cannot be served a *domain.OrderRejection lists every problem and nothing is
// written.
func (s *OrderStore) Place(ctx context.Context, in domain.PlaceOrderInput) (*domain.Order, error) {
	lines := in.MergedLines()
	if len(lines) == 0 {
		return nil, domain.Invalid("order has no items", map[string]string{"items": "cannot be blank"})
	}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return nil, domain.Invalid("invalid order quantity", map[string]string{
				fmt.Sprintf("items.%d.quantity", i): "must be greater than 0",
			})
		}
	}

	var order *domain.Order
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		db := storage.Conn(ctx, s.db)

		ids := make([]uuid.UUID, len(lines))
		for i, line := range lines {
			ids[i] = line.ProductID
		}
		var products []domain.Product
		err := db.NewSelect().
			Model(&products).
			Where("p.id IN (?)", bun.In(ids)).
			Where("p.status = ?", domain.LifecycleActive).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("load order products: %w", err)
		}
		byID := make(map[uuid.UUID]*domain.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		now := s.now()
		orderID := uuid.New()
		items := make([]domain.OrderItem, 0, len(lines))
		total := domain.Money{}
		var problems []domain.LineProblem

		for _, line := range lines {
			product, ok := byID[line.ProductID]
			if !ok {
				problems = append(problems, domain.ProductMissing(line.ProductID, line.Quantity))
				continue
			}
			taken, err := s.takeStock(ctx, db, product.ID, line.Quantity, now)
			if err != nil {
				return err
			}
			if !taken {
				problems = append(problems, domain.StockShort(product, line.Quantity, product.Stock))
				continue
			}
			items = append(items, domain.OrderItem{
				ID:           uuid.New(),
				OrderID:      orderID,
				ProductID:    product.ID,
				ProductName:  product.Name,
				ProductPrice: product.Price,
				Quantity:     line.Quantity,
				CreatedAt:    now,
			})
			total = total.Add(product.Price.Mul(line.Quantity))
		}
		if len(problems) > 0 {
			return &domain.OrderRejection{Problems: problems}
		}

		order = &domain.Order{
			ID:            orderID,
			UserID:        in.UserID,
			CustomerName:  in.CustomerName,
			CustomerPhone: domain.NormalizePhone(in.CustomerPhone),
			CustomerEmail: in.CustomerEmail,
			Address:       in.Address,
			City:          in.City,
			PostalCode:    in.PostalCode,
			Notes:         in.Notes,
			Total:         total,
			Status:        domain.OrderPending,
			PaymentMethod: domain.PaymentCashOnDelivery,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err := db.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if _, err := db.NewInsert().Model(&items).Exec(ctx); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		order.Items = items
		return nil
	})
	if err != nil {
		return nil, translate(err, "order", nil, "failed to place order")
	}

	s.invalidate(ctx, cache.NamespaceOrders, cache.NamespaceProducts, cache.NamespaceAnalytics, cache.NamespaceWishlists)
	return order, nil
}

func (s *OrderStore) takeStock(ctx context.Context, db bun.IDB, id uuid.UUID, quantity int, now time.Time) (bool, error) {
	res, err := db.NewUpdate().
		Model((*domain.Product)(nil)).
		Set("stock = stock - ?", quantity).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("stock >= ?", quantity).
		Where("status = ?", domain.LifecycleActive).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("decrement stock of %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock of %s: %w", id, err)
	}
	return affected == 1, nil
}

// List returns orders newest first, optionally by status.
func (s *OrderStore) List(ctx context.Context, filter OrderFilter) (OrderPage, error) {
	filter.Pagination = filter.Pagination.Normalize()
	key := s.keys.SerializeKey("list", string(filter.Status), filter.Page, filter.Limit)
	return cache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (OrderPage, error) {
		var orders []domain.Order
		q := s.db.NewSelect().Model(&orders).Relation("Items")
		if filter.Status != "" {
			q = q.Where("o.status = ?", filter.Status)
		}
		total, err := q.Order("o.created_at DESC", "o.id ASC").
			Limit(filter.Limit).
			Offset(filter.Offset()).
			ScanAndCount(ctx)
		if err != nil {
			return OrderPage{}, domain.Internal(fmt.Errorf("list orders: %w", err), "failed to list orders")
		}
		return newPage(orders, total, filter.Page, filter.Limit), nil
	})
}

// ByCustomerPhone returns the orders placed with phone, newest first.
func (s *OrderStore) ByCustomerPhone(ctx context.Context, phone string) ([]domain.Order, error) {
	phone = domain.NormalizePhone(phone)
	return cache.GetOrFetch(ctx, s.cache, s.keys.SerializeKey("phone", phone), func(ctx context.Context) ([]domain.Order, error) {
		return s.find(ctx, "o.customer_phone = ?", phone)
	})
}

// ByUser returns the orders placed by a signed in user, newest first.
func (s *OrderStore) ByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return cache.GetOrFetch(ctx, s.cache, s.keys.SerializeKey("user", userID.String()), func(ctx context.Context) ([]domain.Order, error) {
		return s.find(ctx, "o.user_id = ?", userID)
	})
}

func (s *OrderStore) find(ctx context.Context, where string, arg any) ([]domain.Order, error) {
	orders := []domain.Order{}
	err := s.db.NewSelect().
		Model(&orders).
		Relation("Items").
		Where(where, arg).
		Order("o.created_at DESC", "o.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("find orders: %w", err), "failed to load orders")
	}
	return orders, nil
}

// Get returns one order with its items.
func (s *OrderStore) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return cache.GetOrFetch(ctx, s.cache, s.keys.SerializeKey("item", id.String()), func(ctx context.Context) (*domain.Order, error) {
		return s.load(ctx, s.db, id)
	})
}

func (s *OrderStore) load(ctx context.Context, db bun.IDB, id uuid.UUID) (*domain.Order, error) {
	order := new(domain.Order)
	err := db.NewSelect().Model(order).Relation("Items").Where("o.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, translate(err, "order", id, "failed to load order")
	}
	return order, nil
}

// UpdateStatus moves an order along the status machine. Cancelling returns the
// ordered quantities to stock in the same transaction.
func (s *OrderStore) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*StatusChange, error) {
	var change *StatusChange
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		db := storage.Conn(ctx, s.db)
		order, err := s.load(ctx, db, id)
		if err != nil {
			return err
		}
		previous := order.Status
		if !previous.CanTransitionTo(next) {
			return domain.InvalidTransition(previous, next)
		}

		now := s.now()
		res, err := db.NewUpdate().
			Model((*domain.Order)(nil)).
			Set("status = ?", next).
			Set("updated_at = ?", now).
			Where("id = ?", id).
			Where("status = ?", previous).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if affected != 1 {
			return domain.InvalidTransition(previous, next)
		}

		if next == domain.OrderCancelled {
			for _, item := range order.Items {
				_, err := db.NewUpdate().
					Model((*domain.Product)(nil)).
					Set("stock = stock + ?", item.Quantity).
					Set("updated_at = ?", now).
					Where("id = ?", item.ProductID).
					Exec(ctx)
				if err != nil {
					return fmt.Errorf("restore stock of %s: %w", item.ProductID, err)
				}
			}
		}

		order.Status = next
		order.UpdatedAt = now
		change = &StatusChange{Order: order, Previous: previous}
		return nil
	})
	if err != nil {
		return nil, translate(err, "order", id, "failed to update order status")
	}

	namespaces := []string{cache.NamespaceOrders, cache.NamespaceAnalytics}
	if next == domain.OrderCancelled {
		namespaces = append(namespaces, cache.NamespaceProducts, cache.NamespaceWishlists)
	}
	s.invalidate(ctx, namespaces...)
	return change, nil
}

func (s *OrderStore) invalidate(ctx context.Context, namespaces ...string) {
	if err := cache.InvalidateNamespaces(ctx, s.cache, namespaces...); err != nil {
		s.logger.WarnContext(ctx, "order cache invalidation failed", slog.Any("error", err))
	}
}
