package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types carried on the orders exchange
const (
	EventOrderPlaced   = "order.placed"
	EventStatusChanged = "order.status_changed"
)

// OrderEvent is published whenever an order is created or changes status
type OrderEvent struct {
	Type        string          `json:"type"`
	OrderID     string          `json:"order_id"`
	TableNumber string          `json:"table_number"`
	OldStatus   OrderStatus     `json:"old_status,omitempty"`
	NewStatus   OrderStatus     `json:"new_status"`
	ChangedBy   string          `json:"changed_by"`
	Total       decimal.Decimal `json:"total"`
	ItemCount   int             `json:"item_count"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewOrderPlacedEvent creates the event for a freshly submitted order
func NewOrderPlacedEvent(order *Order, changedBy string) *OrderEvent {
	return &OrderEvent{
		Type:        EventOrderPlaced,
		OrderID:     order.ID,
		TableNumber: order.TableNumber,
		NewStatus:   order.Status,
		ChangedBy:   changedBy,
		Total:       order.Total,
		ItemCount:   order.ItemCount(),
		Timestamp:   time.Now().UTC(),
	}
}

// NewStatusChangedEvent creates the event for a status advance
func NewStatusChangedEvent(order *Order, oldStatus OrderStatus, changedBy string) *OrderEvent {
	return &OrderEvent{
		Type:        EventStatusChanged,
		OrderID:     order.ID,
		TableNumber: order.TableNumber,
		OldStatus:   oldStatus,
		NewStatus:   order.Status,
		ChangedBy:   changedBy,
		Total:       order.Total,
		ItemCount:   order.ItemCount(),
		Timestamp:   time.Now().UTC(),
	}
}

// RoutingKey returns the topic routing key for an event,
// e.g. "order.placed.pending" or "order.status_changed.served"
func (e *OrderEvent) RoutingKey() string {
	return fmt.Sprintf("%s.%s", e.Type, e.NewStatus)
}
