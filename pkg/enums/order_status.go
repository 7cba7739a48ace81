package enums

import (
	"fmt"
	"strings"
)

// OrderStatus tracks the lifecycle of a back office order.
type OrderStatus string

const (
	OrderStatusInitiated OrderStatus = "initiated"
	OrderStatusPaying    OrderStatus = "paying"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipping  OrderStatus = "shipping"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusExpired   OrderStatus = "expired"
	OrderStatusArchived  OrderStatus = "archived"
)

var orderStatuses = []OrderStatus{
	OrderStatusInitiated,
	OrderStatusPaying,
	OrderStatusPaid,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusExpired,
	OrderStatusArchived,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return isOneOf(s, orderStatuses) }

// IsSettled reports whether an order in this status counts toward income.
func (s OrderStatus) IsSettled() bool {
	return s == OrderStatusPaid || s == OrderStatusShipping || s == OrderStatusDelivered
}

// HoldsReservation reports whether reserved stock is still in the warehouse.
func (s OrderStatus) HoldsReservation() bool {
	return s == OrderStatusInitiated || s == OrderStatusPaying || s == OrderStatusPaid
}

// SettledOrderStatuses lists the statuses attributed to income records.
func SettledOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPaid, OrderStatusShipping, OrderStatusDelivered}
}

// ParseOrderStatus converts raw input into an OrderStatus. Matching is case-insensitive.
func ParseOrderStatus(value string) (OrderStatus, error) {
	status, err := parseOneOf("order status", strings.ToLower(strings.TrimSpace(value)), orderStatuses)
	if err != nil {
		return "", fmt.Errorf("invalid order status %q", value)
	}
	return status, nil
}
