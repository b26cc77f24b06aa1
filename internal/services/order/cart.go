package order

import (
	"github.com/shopspring/decimal"

	"smartdine/internal/models"
)

// CartEntry is one menu item and how many of it the guest wants.
// Quantity is always at least 1.
type CartEntry struct {
	Item     models.MenuItem
	Quantity int
}

// Cart is the draft order of a single session. It is not safe for
// concurrent use; the owning Session serialises access.
type Cart struct {
	entries []CartEntry
}

// NewCart returns an empty cart
func NewCart() *Cart {
	return &Cart{}
}

// AddItem adds one of item. VIP-only items are refused for non-VIP
// requesters and the cart is left unchanged.
func (c *Cart) AddItem(item models.MenuItem, requesterVIP bool) error {
	if item.VIPOnly && !requesterVIP {
		return ErrPermissionDenied
	}
	if i := c.find(item.ID); i >= 0 {
		c.entries[i].Quantity++
		c.entries[i].Item = item
		return nil
	}
	c.entries = append(c.entries, CartEntry{Item: item, Quantity: 1})
	return nil
}

// RemoveItem takes one of itemID out of the cart. Absent ids are ignored.
func (c *Cart) RemoveItem(itemID string) {
	i := c.find(itemID)
	if i < 0 {
		return
	}
	if c.entries[i].Quantity > 1 {
		c.entries[i].Quantity--
		return
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.entries = nil
}

// Total is the exact sum of price * quantity over all entries
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.entries {
		total = total.Add(e.Item.Price.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	return total
}

// ItemCount is the sum of all quantities
func (c *Cart) ItemCount() int {
	n := 0
	for _, e := range c.entries {
		n += e.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no entries
func (c *Cart) IsEmpty() bool {
	return len(c.entries) == 0
}

// Entries returns a copy of the entries in insertion order
func (c *Cart) Entries() []CartEntry {
	out := make([]CartEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Quantity returns how many of itemID are in the cart
func (c *Cart) Quantity(itemID string) int {
	if i := c.find(itemID); i >= 0 {
		return c.entries[i].Quantity
	}
	return 0
}

// Reprice refreshes item attributes from the latest catalog snapshot.
// Items missing from the snapshot keep their last known attributes.
func (c *Cart) Reprice(lookup func(id string) (models.MenuItem, bool)) {
	for i := range c.entries {
		if item, ok := lookup(c.entries[i].Item.ID); ok {
			c.entries[i].Item = item
		}
	}
}

// Lines captures the entries by value for an order record
func (c *Cart) Lines() []models.OrderLine {
	lines := make([]models.OrderLine, 0, len(c.entries))
	for _, e := range c.entries {
		lines = append(lines, models.OrderLine{
			ItemID:   e.Item.ID,
			Name:     e.Item.Name,
			Price:    e.Item.Price,
			Quantity: e.Quantity,
		})
	}
	return lines
}

func (c *Cart) find(itemID string) int {
	for i, e := range c.entries {
		if e.Item.ID == itemID {
			return i
		}
	}
	return -1
}
