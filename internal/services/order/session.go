package order

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smartdine/internal/metrics"
	"smartdine/internal/models"
)

// Menu resolves item ids against the latest catalog snapshot
type Menu interface {
	Lookup(id string) (models.MenuItem, bool)
}

// Session is one guest's ordering context. It owns a cart and a table
// binding and serialises every operation on them.
type Session struct {
	ID        string
	VIP       bool
	CreatedAt time.Time

	mu    sync.Mutex
	menu  Menu
	cart  *Cart
	table TableBinding

	// unix nanoseconds of the last registry lookup
	lastSeen atomic.Int64
}

// CartView is a priced snapshot of a session
type CartView struct {
	SessionID  string             `json:"session_id"`
	VIP        bool               `json:"vip"`
	Table      string             `json:"table_number,omitempty"`
	TableBound bool               `json:"table_bound"`
	Items      []models.OrderLine `json:"items"`
	Total      decimal.Decimal    `json:"total"`
	ItemCount  int                `json:"item_count"`
}

// NewSession creates a session with an empty cart and no table
func NewSession(vip bool, menu Menu) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		VIP:       vip,
		CreatedAt: time.Now().UTC(),
		menu:      menu,
		cart:      NewCart(),
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// IdleSince reports when the session was last looked up
func (s *Session) IdleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// AddItem resolves itemID in the menu and adds one to the cart
func (s *Session) AddItem(itemID string) error {
	item, ok := s.menu.Lookup(itemID)
	if !ok {
		return ErrUnknownItem
	}
	if !item.Available {
		return ErrItemUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.AddItem(item, s.VIP)
}

// RemoveItem takes one of itemID out of the cart
func (s *Session) RemoveItem(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.RemoveItem(itemID)
}

// ClearCart empties the cart
func (s *Session) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
}

// SetTable binds the session to the table in raw
func (s *Session) SetTable(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.SetTable(raw)
}

// Reset empties the cart and unbinds the table
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
	s.table.Reset()
}

// View reprices the cart against the menu and returns a snapshot
func (s *Session) View() CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.Reprice(s.menu.Lookup)
	table, bound := s.table.CurrentTable()
	return CartView{
		SessionID:  s.ID,
		VIP:        s.VIP,
		Table:      table,
		TableBound: bound,
		Items:      s.cart.Lines(),
		Total:      s.cart.Total(),
		ItemCount:  s.cart.ItemCount(),
	}
}

// Checkout submits the cart through lc. The session stays locked for the
// duration of the write so no mutation can interleave with it.
func (s *Session) Checkout(ctx context.Context, lc *Lifecycle, requestID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lc.Submit(ctx, s.cart, &s.table, requestID)
}

// Sessions is the registry that owns every open session
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	menu     Menu
	metrics  *metrics.Metrics
}

// NewSessions creates an empty registry
func NewSessions(menu Menu, m *metrics.Metrics) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		menu:     menu,
		metrics:  m,
	}
}

// Start opens a new session
func (r *Sessions) Start(vip bool) *Session {
	s := NewSession(vip, r.menu)

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.ActiveSessions.Set(float64(n))
	return s
}

// Get returns an open session
func (r *Sessions) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// End discards a session and its cart
func (r *Sessions) End(id string) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Len returns the number of open sessions
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep ends every session not looked up within idle and returns how many
// were removed.
func (r *Sessions) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if s.IdleSince().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if removed > 0 {
		r.metrics.ActiveSessions.Set(float64(n))
	}
	return removed
}

// Expire sweeps idle sessions until ctx is done. A non-positive idle
// disables expiry.
func (r *Sessions) Expire(ctx context.Context, idle time.Duration) error {
	if idle <= 0 {
		<-ctx.Done()
		return nil
	}
	interval := idle / 2
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}
