package kitchen

import (
	"context"
	"net/http"
	"time"

	"smartdine/internal/httpx"
	"smartdine/internal/logger"
	"smartdine/internal/metrics"
	"smartdine/internal/models"
	"smartdine/internal/services/order"
)

// StaffHeader names the staff member advancing an order
const StaffHeader = "X-Staff-Name"

const defaultStaff = "kitchen"

// Advancer moves an order to its next status
type Advancer interface {
	Advance(ctx context.Context, orderID, changedBy, requestID string) (*models.Order, error)
}

// Handler serves the kitchen API
type Handler struct {
	board    *Board
	advancer Advancer
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewHandler creates a new kitchen handler
func NewHandler(board *Board, advancer Advancer, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		board:    board,
		advancer: advancer,
		metrics:  m,
		logger:   log,
	}
}

// SetupRoutes registers every route on a new mux wrapped in request logging
func (h *Handler) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /kitchen/orders", h.ListOrders)
	mux.HandleFunc("POST /kitchen/orders/{id}/advance", h.AdvanceOrder)
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.Handle("GET /metrics", h.metrics.Handler())

	return httpx.WithLogging(h.logger, mux)
}

// ListOrders handles GET /kitchen/orders?status=
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	requestID := httpx.RequestID(r)
	status := models.OrderStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "status must be one of pending, in-kitchen, served", "validation_failed", requestID)
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"orders": h.board.Orders(status),
		"counts": h.board.Counts(),
	})
}

// AdvanceOrder handles POST /kitchen/orders/{id}/advance
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	requestID := httpx.RequestID(r)
	orderID := r.PathValue("id")

	staff := r.Header.Get(StaffHeader)
	if staff == "" {
		staff = defaultStaff
	}

	updated, err := h.advancer.Advance(r.Context(), orderID, staff, requestID)
	if err != nil {
		status := order.StatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("order_advance_failed", "Failed to advance order", requestID, err, map[string]interface{}{
				"order_id": orderID,
			})
		}
		httpx.WriteError(w, status, order.Message(err), order.Reason(err), requestID)
		return
	}
	h.writeJSON(w, r, http.StatusOK, updated)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthy := false
	select {
	case <-h.board.Ready():
		healthy = true
	default:
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "kitchen-service",
		"healthy":   healthy,
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	h.writeJSON(w, r, status, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := httpx.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", httpx.RequestID(r), err, nil)
	}
}
