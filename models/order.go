package models

import (
	"strings"
	"time"
)

// OrderStatus defines the set of allowed statuses for an Order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAssigned  OrderStatus = "assigned"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OpenOrderStatuses are the statuses of orders still awaiting delivery.
var OpenOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusAssigned, OrderStatusInTransit}

// Open reports whether an order in status s is still awaiting delivery.
// Delivered and cancelled orders are closed.
func (s OrderStatus) Open() bool {
	for _, open := range OpenOrderStatuses {
		if s == open {
			return true
		}
	}
	return false
}

const addressNotAvailable = "Address not available"

// Address is the canonical delivery address of an order.
type Address struct {
	Street string `json:"address"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// String joins the non-empty parts, e.g. "12 Main St, Springfield, IL, 62704".
func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.State, a.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Order struct {
	ID            string      `json:"id"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email,omitempty"`
	Address       Address     `json:"address"`
	Status        OrderStatus `json:"status"`
	UpdatedAt     time.Time   `json:"updated_at"`

	// LegacyAddress holds the old single-column delivery_address. It is only
	// read while rows are migrated to the discrete address columns.
	LegacyAddress string `json:"-"`
}

// DeliveryAddress returns the canonical address, falling back to the legacy
// column and finally to a placeholder.
func (o *Order) DeliveryAddress() string {
	if s := o.Address.String(); s != "" {
		return s
	}
	if s := strings.TrimSpace(o.LegacyAddress); s != "" {
		return s
	}
	return addressNotAvailable
}

// Number is the short, human-facing order reference used in emails.
func (o *Order) Number() string {
	id := o.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}
