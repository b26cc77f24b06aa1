package models

import "github.com/shopspring/decimal"

// Collection names in the document store
const (
	MenuItemsCollection = "menuItems"
	OrdersCollection    = "orders"
)

// CategoryAll selects every category when filtering the menu
const CategoryAll = "All"

// MenuItem is a catalog entry. ID is the document id assigned by the store.
type MenuItem struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Available bool            `json:"is_available"`
	VIPOnly   bool            `json:"is_vip_only"`
}
