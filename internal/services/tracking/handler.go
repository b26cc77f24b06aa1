package tracking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"smartdine/internal/httpx"
	"smartdine/internal/logger"
)

// Pinger reports whether the backing database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles HTTP requests for the tracking service
type Handler struct {
	service *Service
	db      Pinger
	logger  *logger.Logger
}

// NewHandler creates a new tracking handler. db may be nil.
func NewHandler(service *Service, db Pinger, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		db:      db,
		logger:  log,
	}
}

// SetupRoutes registers every route on a new mux wrapped in request logging
func (h *Handler) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /orders/{id}/status", h.GetOrderStatus)
	mux.HandleFunc("GET /orders/{id}/history", h.GetOrderHistory)
	mux.HandleFunc("GET /health", h.HealthCheck)

	return httpx.WithLogging(h.logger, mux)
}

// GetOrderStatus handles GET /orders/{id}/status
func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	requestID := httpx.RequestID(r)

	status, err := h.service.GetOrderStatus(r.Context(), r.PathValue("id"), requestID)
	if err != nil {
		h.writeLookupError(w, err, requestID)
		return
	}
	h.writeJSON(w, r, http.StatusOK, status)
}

// GetOrderHistory handles GET /orders/{id}/history
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	requestID := httpx.RequestID(r)

	history, err := h.service.GetOrderHistory(r.Context(), r.PathValue("id"), requestID)
	if err != nil {
		h.writeLookupError(w, err, requestID)
		return
	}
	h.writeJSON(w, r, http.StatusOK, history)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthy := true
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		healthy = h.db.Ping(ctx) == nil
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "tracking-service",
		"healthy":   healthy,
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	h.writeJSON(w, r, status, response)
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error, requestID string) {
	if errors.Is(err, ErrOrderNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "Order not found", "order_not_found", requestID)
		return
	}
	httpx.WriteError(w, http.StatusInternalServerError, "Internal server error", "internal", requestID)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := httpx.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", httpx.RequestID(r), err, nil)
	}
}
