package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusInKitchen OrderStatus = "in-kitchen"
	StatusServed    OrderStatus = "served"
)

// Valid reports whether s is one of the known statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInKitchen, StatusServed:
		return true
	}
	return false
}

// Next returns the status that follows s. Served is terminal and maps to
// itself; unknown statuses return themselves unchanged.
func (s OrderStatus) Next() OrderStatus {
	switch s {
	case StatusPending:
		return StatusInKitchen
	case StatusInKitchen:
		return StatusServed
	default:
		return s
	}
}

// ValidStatusTransition reports whether an order may move from one status to
// another: a single forward step, or served to served.
func ValidStatusTransition(from, to OrderStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return from.Next() == to
}

// OrderLine is a menu item captured by value at checkout time
type OrderLine struct {
	ItemID   string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// LineTotal returns price * quantity
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is the frozen record created at checkout. ID and CreatedAt are
// assigned by the document store.
type Order struct {
	ID          string          `json:"id,omitempty"`
	TableNumber string          `json:"table_number"`
	Items       []OrderLine     `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

// ItemCount returns the sum of line quantities
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Items {
		n += l.Quantity
	}
	return n
}

// OrderRecord is the document body persisted for an order. Identity and
// timestamps live on the document, not in the body.
type OrderRecord struct {
	TableNumber string          `json:"table_number"`
	Items       []OrderLine     `json:"items"`
	Total       decimal.Decimal `json:"total"`
	Status      OrderStatus     `json:"status"`
}

// Record returns the persisted body of o
func (o *Order) Record() OrderRecord {
	return OrderRecord{
		TableNumber: o.TableNumber,
		Items:       o.Items,
		Total:       o.Total,
		Status:      o.Status,
	}
}

// OrderStatusHistory represents an entry in the order status log
type OrderStatusHistory struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changed_by"`
	ChangedAt time.Time   `json:"timestamp"`
}

// OrderTrackingResponse represents the response for order tracking
type OrderTrackingResponse struct {
	OrderID       string          `json:"order_id"`
	TableNumber   string          `json:"table_number"`
	CurrentStatus OrderStatus     `json:"current_status"`
	Total         decimal.Decimal `json:"total"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
