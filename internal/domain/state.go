package domain

import "strings"

// Lifecycle replaces a raw is_active flag; inactive records are soft deleted.
type Lifecycle string

const (
	LifecycleActive   Lifecycle = "active"
	LifecycleInactive Lifecycle = "inactive"
)

func (l Lifecycle) IsActive() bool { return l == LifecycleActive }

// Role of a user account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// OrderStatus is the order state machine:
//
//	pending -> confirmed -> delivered
//	pending -> cancelled
//	confirmed -> cancelled
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderDelivered},
}

// OrderStatuses lists every known status.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{OrderPending, OrderConfirmed, OrderDelivered, OrderCancelled}
}

// ParseOrderStatus accepts a known status in any case.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OrderStatuses() {
		if status == known {
			return status, true
		}
	}
	return "", false
}

// CanTransitionTo reports whether next is a legal move from s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// CountsTowardsRevenue is false for cancelled orders.
func (s OrderStatus) CountsTowardsRevenue() bool {
	return s != OrderCancelled
}
