// Package catalog keeps a read-only, live mirror of the menuItems collection.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"smartdine/internal/docstore"
	"smartdine/internal/logger"
	"smartdine/internal/models"
)

// Defaults applied to incomplete menu records
const (
	DefaultName     = "Untitled"
	DefaultCategory = "Other"
)

// ErrNotStarted is returned by Run before Start
var ErrNotStarted = errors.New("catalog not started")

// Catalog mirrors menu items from the document store
type Catalog struct {
	store  docstore.Store
	logger *logger.Logger

	mu    sync.RWMutex
	items map[string]models.MenuItem
	sub   *docstore.Subscription

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a catalog reading from store
func New(store docstore.Store, log *logger.Logger) *Catalog {
	return &Catalog{
		store:  store,
		logger: log,
		items:  make(map[string]models.MenuItem),
		ready:  make(chan struct{}),
	}
}

// Start opens the live subscription
func (c *Catalog) Start(ctx context.Context) error {
	sub, err := c.store.Subscribe(ctx, models.MenuItemsCollection, docstore.Query{})
	if err != nil {
		return fmt.Errorf("subscribe to menu: %w", err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	c.logger.Info("catalog_started", "Subscribed to menu items", "", nil)
	return nil
}

// Run applies snapshots until the subscription ends or ctx is done
func (c *Catalog) Run(ctx context.Context) error {
	c.mu.RLock()
	sub := c.sub
	c.mu.RUnlock()
	if sub == nil {
		return ErrNotStarted
	}

	for {
		select {
		case <-ctx.Done():
			sub.Stop()
			return nil
		case docs, ok := <-sub.Updates():
			if !ok {
				if err := sub.Err(); err != nil {
					c.logger.Error("catalog_subscription_ended", "Menu subscription ended", "", err, nil)
					return fmt.Errorf("menu subscription: %w", err)
				}
				return nil
			}
			c.apply(docs)
		}
	}
}

// Stop cancels the subscription
func (c *Catalog) Stop() {
	c.mu.RLock()
	sub := c.sub
	c.mu.RUnlock()
	if sub != nil {
		sub.Stop()
	}
}

// Ready is closed once the first snapshot has been applied
func (c *Catalog) Ready() <-chan struct{} {
	return c.ready
}

// Lookup returns the latest known version of an item
func (c *Catalog) Lookup(id string) (models.MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// List returns the items in category, or all items for "" and "All", sorted
// by category then name.
func (c *Catalog) List(category string) []models.MenuItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.MenuItem, 0, len(c.items))
	for _, item := range c.items {
		if category == "" || category == models.CategoryAll || item.Category == category {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Categories returns the distinct categories, sorted
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, item := range c.items {
		seen[item.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) apply(docs []docstore.Document) {
	items := make(map[string]models.MenuItem, len(docs))
	for _, doc := range docs {
		item, err := DecodeMenuItem(doc)
		if err != nil {
			c.logger.Warn("menu_item_skipped", "Skipping invalid menu item", "", map[string]interface{}{
				"item_id": doc.ID,
				"reason":  err.Error(),
			})
			continue
		}
		items[item.ID] = item
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()

	c.readyOnce.Do(func() { close(c.ready) })
	c.logger.Debug("catalog_updated", "Applied menu snapshot", "", map[string]interface{}{
		"items": len(items),
	})
}

type menuRecord struct {
	Name      *string         `json:"name"`
	Price     json.RawMessage `json:"price"`
	Category  *string         `json:"category"`
	Available *bool           `json:"is_available"`
	VIPOnly   bool            `json:"is_vip_only"`
}

// DecodeMenuItem builds a MenuItem from a stored document, filling defaults
// for missing fields. A negative price is an error.
func DecodeMenuItem(doc docstore.Document) (models.MenuItem, error) {
	var rec menuRecord
	if err := json.Unmarshal(doc.Data, &rec); err != nil {
		return models.MenuItem{}, fmt.Errorf("decode menu item: %w", err)
	}

	item := models.MenuItem{
		ID:        doc.ID,
		Name:      DefaultName,
		Price:     decimal.Zero,
		Category:  DefaultCategory,
		Available: true,
		VIPOnly:   rec.VIPOnly,
	}
	if rec.Name != nil && *rec.Name != "" {
		item.Name = *rec.Name
	}
	if rec.Category != nil && *rec.Category != "" {
		item.Category = *rec.Category
	}
	if rec.Available != nil {
		item.Available = *rec.Available
	}
	if len(rec.Price) > 0 {
		var price decimal.Decimal
		if err := price.UnmarshalJSON(rec.Price); err == nil {
			item.Price = price
		}
	}
	if item.Price.IsNegative() {
		return models.MenuItem{}, fmt.Errorf("negative price %s", item.Price)
	}
	return item, nil
}
