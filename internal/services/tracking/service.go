// Package tracking records order lifecycle events from the message bus into
// a status log and serves per-order status and history.
package tracking

import (
	"context"
	"errors"
	"fmt"

	"smartdine/internal/logger"
	"smartdine/internal/messaging"
	"smartdine/internal/models"
)

// Service provides tracking functionality
type Service struct {
	repo   HistoryRepo
	logger *logger.Logger
}

// NewService creates a new tracking service
func NewService(repo HistoryRepo, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

// HandleMessage is the messaging.MessageHandler for the order events queue.
// Undecodable or incomplete events are reported as messaging.ErrMalformed so
// they are dead-lettered rather than redelivered.
func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	var event models.OrderEvent
	if err := messaging.ParseMessage(body, &event); err != nil {
		return err
	}
	if event.OrderID == "" {
		return fmt.Errorf("%w: missing order_id", messaging.ErrMalformed)
	}
	if !event.NewStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", messaging.ErrMalformed, event.NewStatus)
	}

	if err := s.repo.Append(ctx, &event); err != nil {
		return fmt.Errorf("record event for order %s: %w", event.OrderID, err)
	}

	s.logger.Debug("order_event_recorded", "Recorded order event", "", map[string]interface{}{
		"order_id":    event.OrderID,
		"routing_key": event.RoutingKey(),
		"changed_by":  event.ChangedBy,
	})
	return nil
}

// GetOrderStatus returns the latest recorded status of an order
func (s *Service) GetOrderStatus(ctx context.Context, orderID, requestID string) (*models.OrderTrackingResponse, error) {
	resp, err := s.repo.GetCurrent(ctx, orderID)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			s.logger.Error("db_query_failed", "Failed to query order status", requestID, err, map[string]interface{}{
				"order_id": orderID,
			})
		}
		return nil, err
	}
	return resp, nil
}

// GetOrderHistory returns the status log of an order, oldest first
func (s *Service) GetOrderHistory(ctx context.Context, orderID, requestID string) ([]models.OrderStatusHistory, error) {
	history, err := s.repo.ListOrderHistory(ctx, orderID)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			s.logger.Error("db_query_failed", "Failed to query order history", requestID, err, map[string]interface{}{
				"order_id": orderID,
			})
		}
		return nil, err
	}
	return history, nil
}
