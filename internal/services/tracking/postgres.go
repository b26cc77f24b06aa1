package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"smartdine/internal/database"
	"smartdine/internal/models"
)

// PostgresRepo keeps the status log in the order_status_log table
type PostgresRepo struct {
	db *database.DB
}

// NewPostgresRepo creates a repo over db
func NewPostgresRepo(db *database.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Append records one event
func (r *PostgresRepo) Append(ctx context.Context, event *models.OrderEvent) error {
	_, err := r.db.Exec(ctx, database.InsertStatusLogSQL,
		event.OrderID,
		event.TableNumber,
		event.Type,
		string(event.OldStatus),
		string(event.NewStatus),
		event.ChangedBy,
		event.Total.String(),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert status log: %w", err)
	}
	return nil
}

// GetCurrent returns the latest recorded status of an order
func (r *PostgresRepo) GetCurrent(ctx context.Context, orderID string) (*models.OrderTrackingResponse, error) {
	var (
		resp  models.OrderTrackingResponse
		total string
	)
	err := r.db.QueryRow(ctx, database.GetLatestStatusSQL, orderID).Scan(
		&resp.OrderID,
		&resp.TableNumber,
		&resp.CurrentStatus,
		&total,
		&resp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("query latest status: %w", err)
	}

	resp.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	return &resp, nil
}

// ListOrderHistory returns every recorded status of an order, oldest first
func (r *PostgresRepo) ListOrderHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	rows, err := r.db.Query(ctx, database.GetStatusHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var history []models.OrderStatusHistory
	for rows.Next() {
		var entry models.OrderStatusHistory
		if err := rows.Scan(&entry.Status, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	if len(history) == 0 {
		return nil, ErrOrderNotFound
	}
	return history, nil
}
