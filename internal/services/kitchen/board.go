// Package kitchen serves the staff-facing order queue: a live mirror of the
// orders collection, newest first, and the status advance action.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"smartdine/internal/docstore"
	"smartdine/internal/logger"
	"smartdine/internal/models"
	"smartdine/internal/services/order"
)

// ErrNotStarted is returned by Run before Start
var ErrNotStarted = errors.New("kitchen board not started")

// Board mirrors the orders collection ordered by creation time, newest first
type Board struct {
	store  docstore.Store
	logger *logger.Logger

	mu     sync.RWMutex
	orders []models.Order
	sub    *docstore.Subscription

	ready     chan struct{}
	readyOnce sync.Once
}

// NewBoard creates a board reading from store
func NewBoard(store docstore.Store, log *logger.Logger) *Board {
	return &Board{
		store:  store,
		logger: log,
		ready:  make(chan struct{}),
	}
}

// Start opens the live subscription
func (b *Board) Start(ctx context.Context) error {
	sub, err := b.store.Subscribe(ctx, models.OrdersCollection, docstore.Query{
		OrderBy:    docstore.FieldCreatedAt,
		Descending: true,
	})
	if err != nil {
		return fmt.Errorf("subscribe to orders: %w", err)
	}
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	b.logger.Info("board_started", "Subscribed to orders", "", nil)
	return nil
}

// Run applies snapshots until the subscription ends or ctx is done
func (b *Board) Run(ctx context.Context) error {
	b.mu.RLock()
	sub := b.sub
	b.mu.RUnlock()
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
					b.logger.Error("board_subscription_ended", "Orders subscription ended", "", err, nil)
					return fmt.Errorf("orders subscription: %w", err)
				}
				return nil
			}
			b.apply(docs)
		}
	}
}

// Stop cancels the subscription
func (b *Board) Stop() {
	b.mu.RLock()
	sub := b.sub
	b.mu.RUnlock()
	if sub != nil {
		sub.Stop()
	}
}

// Ready is closed once the first snapshot has been applied
func (b *Board) Ready() <-chan struct{} {
	return b.ready
}

// Orders returns the board, newest first, optionally filtered by status.
// An empty status returns every order.
func (b *Board) Orders(status models.OrderStatus) []models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.Order, 0, len(b.orders))
	for _, o := range b.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// Counts returns the number of orders in each status
func (b *Board) Counts() map[models.OrderStatus]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := map[models.OrderStatus]int{
		models.StatusPending:   0,
		models.StatusInKitchen: 0,
		models.StatusServed:    0,
	}
	for _, o := range b.orders {
		counts[o.Status]++
	}
	return counts
}

func (b *Board) apply(docs []docstore.Document) {
	orders := make([]models.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := order.DecodeOrder(doc)
		if err != nil {
			b.logger.Warn("order_skipped", "Skipping undecodable order", "", map[string]interface{}{
				"order_id": doc.ID,
				"reason":   err.Error(),
			})
			continue
		}
		orders = append(orders, *o)
	}

	b.mu.Lock()
	b.orders = orders
	b.mu.Unlock()

	b.readyOnce.Do(func() { close(b.ready) })
}
