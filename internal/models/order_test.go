package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStatusNext(t *testing.T) {
	tests := []struct {
		from, want OrderStatus
	}{
		{StatusPending, StatusInKitchen},
		{StatusInKitchen, StatusServed},
		{StatusServed, StatusServed},
		{"cancelled", "cancelled"},
	}
	for _, tt := range tests {
		if got := tt.from.Next(); got != tt.want {
			t.Errorf("%q.Next() = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestValidStatusTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusInKitchen, true},
		{StatusPending, StatusServed, false},
		{StatusPending, StatusPending, false},
		{StatusInKitchen, StatusServed, true},
		{StatusInKitchen, StatusPending, false},
		{StatusServed, StatusServed, true},
		{StatusServed, StatusInKitchen, false},
		{StatusServed, StatusPending, false},
		{"", StatusPending, false},
		{StatusPending, "", false},
	}
	for _, tt := range tests {
		if got := ValidStatusTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidStatusTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrderItemCountAndLineTotal(t *testing.T) {
	o := &Order{Items: []OrderLine{
		{ItemID: "a", Price: decimal.NewFromInt(50), Quantity: 2},
		{ItemID: "b", Price: decimal.NewFromInt(120), Quantity: 1},
	}}
	if got := o.ItemCount(); got != 3 {
		t.Errorf("ItemCount() = %d, want 3", got)
	}
	if got := o.Items[0].LineTotal(); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("LineTotal() = %s, want 100", got)
	}
}

func TestOrderEventRoutingKey(t *testing.T) {
	o := &Order{ID: "o1", TableNumber: "5", Status: StatusServed}
	e := NewStatusChangedEvent(o, StatusInKitchen, "chef")
	if got, want := e.RoutingKey(), "order.status_changed.served"; got != want {
		t.Errorf("RoutingKey() = %s, want %s", got, want)
	}
	placed := NewOrderPlacedEvent(&Order{ID: "o2", Status: StatusPending}, "ordering")
	if got, want := placed.RoutingKey(), "order.placed.pending"; got != want {
		t.Errorf("RoutingKey() = %s, want %s", got, want)
	}
}
