package order

import (
	"errors"
	"net/http"
	"time"

	"smartdine/internal/httpx"
	"smartdine/internal/logger"
	"smartdine/internal/metrics"
	"smartdine/internal/models"
)

// MenuBrowser is the read side of the catalog exposed over HTTP
type MenuBrowser interface {
	List(category string) []models.MenuItem
	Categories() []string
	Ready() <-chan struct{}
}

// Handler serves the guest-facing ordering API
type Handler struct {
	sessions  *Sessions
	lifecycle *Lifecycle
	menu      MenuBrowser
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewHandler creates a new ordering handler
func NewHandler(sessions *Sessions, lifecycle *Lifecycle, menu MenuBrowser, m *metrics.Metrics, log *logger.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		lifecycle: lifecycle,
		menu:      menu,
		metrics:   m,
		logger:    log,
	}
}

// SetupRoutes registers every route on a new mux wrapped in request logging
func (h *Handler) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /menu", h.ListMenu)
	mux.HandleFunc("GET /menu/categories", h.ListCategories)

	mux.HandleFunc("POST /sessions", h.CreateSession)
	mux.HandleFunc("GET /sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /sessions/{id}", h.EndSession)
	mux.HandleFunc("PUT /sessions/{id}/table", h.SetTable)
	mux.HandleFunc("POST /sessions/{id}/cart/items", h.AddItem)
	mux.HandleFunc("DELETE /sessions/{id}/cart/items/{itemID}", h.RemoveItem)
	mux.HandleFunc("DELETE /sessions/{id}/cart", h.ClearCart)
	mux.HandleFunc("POST /sessions/{id}/checkout", h.Checkout)

	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.Handle("GET /metrics", h.metrics.Handler())

	return httpx.WithLogging(h.logger, mux)
}

// ListMenu handles GET /menu?category=
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"category": category,
		"items":    h.menu.List(category),
	})
}

// ListCategories handles GET /menu/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := append([]string{models.CategoryAll}, h.menu.Categories()...)
	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	requestID := httpx.RequestID(r)

	var req CreateSessionRequest
	if err := httpx.DecodeJSON(r, &req, true); err != nil {
		h.badRequest(w, err, requestID)
		return
	}

	s := h.sessions.Start(req.VIP)
	h.logger.Info("session_started", "Guest session opened", requestID, map[string]interface{}{
		"session_id": s.ID,
		"vip":        s.VIP,
	})
	h.writeJSON(w, r, http.StatusCreated, s.View())
}

// GetSession handles GET /sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.View())
}

// EndSession handles DELETE /sessions/{id}
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.sessions.End(id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.logger.Info("session_ended", "Guest session closed", httpx.RequestID(r), map[string]interface{}{
		"session_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

// SetTable handles PUT /sessions/{id}/table
func (h *Handler) SetTable(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetTableRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		h.badRequest(w, err, httpx.RequestID(r))
		return
	}
	if err := req.Validate(); err != nil {
		h.badRequest(w, err, httpx.RequestID(r))
		return
	}

	if err := s.SetTable(req.Code); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.View())
}

// AddItem handles POST /sessions/{id}/cart/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		h.badRequest(w, err, httpx.RequestID(r))
		return
	}
	if err := req.Validate(); err != nil {
		h.badRequest(w, err, httpx.RequestID(r))
		return
	}

	if err := s.AddItem(req.ItemID); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, s.View())
}

// RemoveItem handles DELETE /sessions/{id}/cart/items/{itemID}
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.RemoveItem(r.PathValue("itemID"))
	h.writeJSON(w, r, http.StatusOK, s.View())
}

// ClearCart handles DELETE /sessions/{id}/cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearCart()
	h.writeJSON(w, r, http.StatusOK, s.View())
}

// Checkout handles POST /sessions/{id}/checkout
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	order, err := s.Checkout(r.Context(), h.lifecycle, httpx.RequestID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, order)
}

// HealthCheck handles GET /health. The service is healthy once the menu
// has been loaded.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	healthy := false
	select {
	case <-h.menu.Ready():
		healthy = true
	default:
	}

	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "ordering-service",
		"healthy":   healthy,
		"sessions":  h.sessions.Len(),
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
		response["status"] = "unhealthy"
	}
	h.writeJSON(w, r, status, response)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.sessions.Get(r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return nil, false
	}
	return s, true
}

// StatusCode maps an ordering error to an HTTP status
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTableCode):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyCart):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrSubmissionFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidOrder),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrUnknownItem):
		return http.StatusNotFound
	case errors.Is(err, ErrItemUnavailable), errors.Is(err, ErrTableUnbound):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Message returns the guest-facing text for an ordering error
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "This item is only available to VIP guests."
	case errors.Is(err, ErrInvalidTableCode):
		return "That table code was not recognised. Scan the code on your table or enter its number."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty. Add something from the menu first."
	case errors.Is(err, ErrSubmissionFailed):
		return "We could not place your order. Your cart has been kept, please try again."
	case errors.Is(err, ErrInvalidOrder):
		return "Order not found."
	case errors.Is(err, ErrTableUnbound):
		return "Please scan or enter your table number before ordering."
	case errors.Is(err, ErrUnknownItem):
		return "That item is not on the menu."
	case errors.Is(err, ErrItemUnavailable):
		return "That item is currently unavailable."
	case errors.Is(err, ErrSessionNotFound):
		return "Session not found."
	}
	return "Internal server error"
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := httpx.RequestID(r)
	status := StatusCode(err)
	reason := Reason(err)

	switch reason {
	case "permission_denied", "invalid_table_code", "unknown_item", "item_unavailable":
		h.metrics.CartRejections.WithLabelValues(reason).Inc()
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request_failed", "Ordering request failed", requestID, err, map[string]interface{}{
			"path": r.URL.Path,
		})
	} else {
		h.logger.Debug("request_rejected", err.Error(), requestID, map[string]interface{}{
			"path":   r.URL.Path,
			"reason": reason,
		})
	}
	httpx.WriteError(w, status, Message(err), reason, requestID)
}

func (h *Handler) badRequest(w http.ResponseWriter, err error, requestID string) {
	h.logger.Debug("validation_failed", "Request validation failed", requestID, map[string]interface{}{
		"reason": err.Error(),
	})
	status := http.StatusBadRequest
	if errors.Is(err, httpx.ErrUnsupportedMediaType) {
		status = http.StatusUnsupportedMediaType
	}
	httpx.WriteError(w, status, err.Error(), "validation_failed", requestID)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	if err := httpx.WriteJSON(w, status, v); err != nil {
		h.logger.Error("response_encoding_failed", "Failed to encode response", httpx.RequestID(r), err, nil)
	}
}
