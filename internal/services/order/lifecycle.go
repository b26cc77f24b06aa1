package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartdine/internal/docstore"
	"smartdine/internal/logger"
	"smartdine/internal/metrics"
	"smartdine/internal/models"
)

const eventPublishTimeout = 5 * time.Second

// EventPublisher receives order lifecycle events. Publishing is best-effort:
// a failure is logged and never fails the operation that produced the event.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

// Options tune checkout
type Options struct {
	// RequireTable makes Submit fail with ErrTableUnbound instead of
	// recording UnknownTable.
	RequireTable  bool
	UnknownTable  string
	SubmitTimeout time.Duration
}

// Lifecycle turns carts into order records and advances their status
type Lifecycle struct {
	store   docstore.Store
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *logger.Logger
	opts    Options
}

// NewLifecycle creates a Lifecycle. events may be nil.
func NewLifecycle(store docstore.Store, events EventPublisher, m *metrics.Metrics, log *logger.Logger, opts Options) *Lifecycle {
	if opts.UnknownTable == "" {
		opts.UnknownTable = "UNKNOWN"
	}
	return &Lifecycle{
		store:   store,
		events:  events,
		metrics: m,
		logger:  log,
		opts:    opts,
	}
}

// Submit writes the cart as a new pending order for the bound table and
// clears the cart once the store acknowledges the write. On any failure the
// cart is left untouched and no retry is attempted.
func (l *Lifecycle) Submit(ctx context.Context, cart *Cart, table *TableBinding, requestID string) (*models.Order, error) {
	if cart.IsEmpty() {
		l.reject(ErrEmptyCart)
		return nil, ErrEmptyCart
	}

	tableNumber, bound := table.CurrentTable()
	if !bound {
		if l.opts.RequireTable {
			l.reject(ErrTableUnbound)
			return nil, ErrTableUnbound
		}
		tableNumber = l.opts.UnknownTable
		l.logger.Warn("table_unbound", "Submitting order without a bound table", requestID, map[string]interface{}{
			"table_number": tableNumber,
		})
	}

	order := &models.Order{
		TableNumber: tableNumber,
		Items:       cart.Lines(),
		Total:       cart.Total(),
		Status:      models.StatusPending,
	}

	if l.opts.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.opts.SubmitTimeout)
		defer cancel()
	}

	doc, err := l.store.AddDocument(ctx, models.OrdersCollection, order.Record())
	if err != nil {
		l.metrics.SubmitFailures.Inc()
		l.reject(ErrSubmissionFailed)
		l.logger.Error("order_submit_failed", "Failed to write order", requestID, err, map[string]interface{}{
			"table_number": tableNumber,
			"total":        order.Total.String(),
		})
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	order.ID = doc.ID
	order.CreatedAt = doc.CreatedAt
	order.UpdatedAt = doc.UpdatedAt
	cart.Clear()

	l.metrics.OrdersSubmitted.Inc()
	l.logger.Info("order_submitted", "Order placed", requestID, map[string]interface{}{
		"order_id":     order.ID,
		"table_number": order.TableNumber,
		"total":        order.Total.String(),
		"item_count":   order.ItemCount(),
	})

	l.publish(ctx, models.NewOrderPlacedEvent(order, "guest"), requestID)
	return order, nil
}

// Advance moves an order one step along pending -> in-kitchen -> served.
// The next status is computed from the stored record at call time, so a
// stale view can never move an order backwards. Served orders are returned
// unchanged without a write.
func (l *Lifecycle) Advance(ctx context.Context, orderID, changedBy, requestID string) (*models.Order, error) {
	order, err := l.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.Valid() {
		l.logger.Warn("order_status_unknown", "Refusing to advance order with unknown status", requestID, map[string]interface{}{
			"order_id": orderID,
			"status":   string(order.Status),
		})
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, order.Status)
	}
	if order.Status == models.StatusServed {
		return order, nil
	}

	old := order.Status
	next := old.Next()
	err = l.store.UpdateDocument(ctx, models.OrdersCollection, orderID, map[string]any{"status": next})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, orderID)
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	order.Status = next
	order.UpdatedAt = time.Now().UTC()

	l.metrics.StatusAdvances.WithLabelValues(string(next)).Inc()
	l.logger.Info("order_status_advanced", fmt.Sprintf("Order moved from %s to %s", old, next), requestID, map[string]interface{}{
		"order_id":   orderID,
		"old_status": string(old),
		"new_status": string(next),
		"changed_by": changedBy,
	})

	l.publish(ctx, models.NewStatusChangedEvent(order, old, changedBy), requestID)
	return order, nil
}

// Get reads one order from the store
func (l *Lifecycle) Get(ctx context.Context, orderID string) (*models.Order, error) {
	doc, err := l.store.GetDocument(ctx, models.OrdersCollection, orderID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidOrder, orderID)
		}
		return nil, fmt.Errorf("read order: %w", err)
	}
	order, err := DecodeOrder(*doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOrder, err)
	}
	return order, nil
}

func (l *Lifecycle) reject(err error) {
	l.metrics.CartRejections.WithLabelValues(Reason(err)).Inc()
}

func (l *Lifecycle) publish(ctx context.Context, event *models.OrderEvent, requestID string) {
	if l.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	if err := l.events.PublishOrderEvent(ctx, event); err != nil {
		l.logger.Error("order_event_publish_failed", "Failed to publish order event", requestID, err, map[string]interface{}{
			"order_id":    event.OrderID,
			"routing_key": event.RoutingKey(),
		})
	}
}

// DecodeOrder builds an Order from a stored document
func DecodeOrder(doc docstore.Document) (*models.Order, error) {
	var rec models.OrderRecord
	if err := doc.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", doc.ID, err)
	}
	return &models.Order{
		ID:          doc.ID,
		TableNumber: rec.TableNumber,
		Items:       rec.Items,
		Total:       rec.Total,
		Status:      rec.Status,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}
