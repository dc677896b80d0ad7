// Package events publishes order lifecycle events to Kafka, RabbitMQ or the log.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalakari/storefront/internal/domain"
)

// Publisher is the interface used by services to publish events.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
	Close() error
}

// Event types.
const (
	OrderPlaced        = "order.placed"
	OrderStatusChanged = "order.status_changed"
)

// OrderEvent describes a change to an order. It is keyed by order id so every event
// of one order lands on the same partition.
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        uuid.UUID          `json:"orderId"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previousStatus,omitempty"`
	Total          domain.Money       `json:"total"`
	CustomerPhone  string             `json:"customerPhone"`
	Items          int                `json:"items"`
	At             time.Time          `json:"at"`
}

// RoutingKey is the RabbitMQ routing key of the event.
func (e OrderEvent) RoutingKey() string { return e.Type }

// Key is the partition key.
func (e OrderEvent) Key() string { return e.OrderID.String() }

func orderEvent(kind string, o *domain.Order, at time.Time) OrderEvent {
	items := 0
	for _, item := range o.Items {
		items += item.Quantity
	}
	return OrderEvent{
		Type:          kind,
		OrderID:       o.ID,
		Status:        o.Status,
		Total:         o.Total,
		CustomerPhone: o.CustomerPhone,
		Items:         items,
		At:            at.UTC(),
	}
}

// Placed builds the event for a new order.
func Placed(o *domain.Order) OrderEvent {
	return orderEvent(OrderPlaced, o, o.CreatedAt)
}

// StatusChanged builds the event for a transition from previous.
func StatusChanged(o *domain.Order, previous domain.OrderStatus) OrderEvent {
	e := orderEvent(OrderStatusChanged, o, o.UpdatedAt)
	e.PreviousStatus = previous
	return e
}

// Backends.
const (
	BackendLog      = "log"
	BackendKafka    = "kafka"
	BackendRabbitMQ = "rabbitmq"
)

// Options select and configure a backend.
type Options struct {
	Backend        string
	KafkaBrokers   []string
	KafkaTopic     string
	RabbitURL      string
	RabbitExchange string
}

// New builds the publisher for opts.Backend.
func New(opts Options, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch opts.Backend {
	case "", BackendLog:
		return NewLogPublisher(logger), nil
	case BackendKafka:
		return NewKafkaPublisher(opts.KafkaBrokers, opts.KafkaTopic), nil
	case BackendRabbitMQ:
		return NewRabbitPublisher(opts.RabbitURL, opts.RabbitExchange)
	default:
		return nil, fmt.Errorf("events: unknown backend %q", opts.Backend)
	}
}
