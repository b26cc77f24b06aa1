package tracking

import (
	"context"
	"errors"

	"smartdine/internal/models"
)

// ErrOrderNotFound is returned when no event has been recorded for an order
var ErrOrderNotFound = errors.New("order not found")

// HistoryRepo stores the order status log
type HistoryRepo interface {
	Append(ctx context.Context, event *models.OrderEvent) error
	GetCurrent(ctx context.Context, orderID string) (*models.OrderTrackingResponse, error)
	ListOrderHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error)
}
