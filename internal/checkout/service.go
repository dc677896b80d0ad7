// Package checkout validates and places orders and drives their status changes,
// publishing an event for each.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/events"
	"github.com/kalakari/storefront/internal/store"
)

// Orders is the order storage the service drives.
type Orders interface {
	Place(ctx context.Context, in domain.PlaceOrderInput) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*store.StatusChange, error)
}

const publishTimeout = 5 * time.Second

type Service struct {
	orders    Orders
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(orders Orders, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: orders, publisher: publisher, logger: logger.With("component", "checkout")}
}

// PlaceOrder normalises and validates in, then places the order. userID is attached
// when the caller is signed in.
func (s *Service) PlaceOrder(ctx context.Context, in domain.PlaceOrderInput, userID *uuid.UUID) (*domain.Order, error) {
	in.Normalize()
	in.UserID = userID
	if err := domain.FromValidation(in.Validate()); err != nil {
		return nil, err
	}

	order, err := s.orders.Place(ctx, in)
	if err != nil {
		var rejection *domain.OrderRejection
		if errors.As(err, &rejection) {
			s.logger.InfoContext(ctx, "order rejected", slog.Int("problems", len(rejection.Problems)))
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID.String()),
		slog.String("total", order.Total.String()),
		slog.Int("lines", len(order.Items)),
	)
	s.publish(ctx, events.Placed(order))
	return order, nil
}

// ChangeStatus parses status and applies the transition.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	next, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, domain.Invalid("invalid status", map[string]string{"status": "must be one of pending, confirmed, delivered, cancelled"})
	}
	change, err := s.orders.UpdateStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", id.String()),
		slog.String("from", string(change.Previous)),
		slog.String("to", string(next)),
	)
	s.publish(ctx, events.StatusChanged(change.Order, change.Previous))
	return change.Order, nil
}

// publish never fails the request; the order is already committed.
func (s *Service) publish(ctx context.Context, event events.OrderEvent) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, event.Key(), event); err != nil {
		s.logger.ErrorContext(ctx, "event publication failed",
			slog.String("type", event.Type),
			slog.String("order_id", event.OrderID.String()),
			slog.Any("error", err),
		)
	}
}
