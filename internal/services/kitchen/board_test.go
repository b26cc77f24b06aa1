package kitchen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartdine/internal/docstore/memstore"
	"smartdine/internal/httpx"
	"smartdine/internal/logger"
	"smartdine/internal/metrics"
	"smartdine/internal/models"
	"smartdine/internal/services/order"
)

func tickingClock() func() time.Time {
	t := time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func addOrder(t *testing.T, store *memstore.Store, table string, status models.OrderStatus) string {
	t.Helper()
	doc, err := store.AddDocument(context.Background(), models.OrdersCollection, models.OrderRecord{
		TableNumber: table,
		Items:       []models.OrderLine{{ItemID: "a", Name: "A", Price: decimal.NewFromInt(5), Quantity: 1}},
		Total:       decimal.NewFromInt(5),
		Status:      status,
	})
	require.NoError(t, err)
	return doc.ID
}

func startBoard(t *testing.T, store *memstore.Store) *Board {
	t.Helper()
	b := NewBoard(store, logger.Nop())
	require.NoError(t, b.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-b.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("board never became ready")
	}
	return b
}

func TestBoardNewestFirst(t *testing.T) {
	store := memstore.New()
	store.SetClock(tickingClock())
	first := addOrder(t, store, "1", models.StatusPending)
	second := addOrder(t, store, "2", models.StatusInKitchen)

	b := startBoard(t, store)

	orders := b.Orders("")
	require.Len(t, orders, 2)
	assert.Equal(t, second, orders[0].ID)
	assert.Equal(t, first, orders[1].ID)

	pending := b.Orders(models.StatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, first, pending[0].ID)

	assert.Equal(t, 1, b.Counts()[models.StatusInKitchen])

	third := addOrder(t, store, "3", models.StatusPending)
	assert.Eventually(t, func() bool {
		orders := b.Orders("")
		return len(orders) == 3 && orders[0].ID == third
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBoardRunBeforeStart(t *testing.T) {
	b := NewBoard(memstore.New(), logger.Nop())
	assert.ErrorIs(t, b.Run(context.Background()), ErrNotStarted)
}

func TestBoardStop(t *testing.T) {
	store := memstore.New()
	b := NewBoard(store, logger.Nop())
	require.NoError(t, b.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()
	<-b.Ready()

	b.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestKitchenHandler(t *testing.T) {
	store := memstore.New()
	store.SetClock(tickingClock())
	id := addOrder(t, store, "7", models.StatusPending)

	m := metrics.New()
	lc := order.NewLifecycle(store, nil, m, logger.Nop(), order.Options{})
	b := startBoard(t, store)
	srv := httptest.NewServer(NewHandler(b, lc, m, logger.Nop()).SetupRoutes())
	defer srv.Close()

	advance := func(orderID string) (int, map[string]interface{}) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/kitchen/orders/"+orderID+"/advance", nil)
		require.NoError(t, err)
		req.Header.Set(StaffHeader, "Aida")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	for _, want := range []string{"in-kitchen", "served", "served"} {
		status, body := advance(id)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, want, body["status"])
	}

	status, body := advance("missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "invalid_order", body["code"])

	assert.Eventually(t, func() bool {
		served := b.Orders(models.StatusServed)
		return len(served) == 1 && served[0].ID == id
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/kitchen/orders?status=served")
	require.NoError(t, err)
	defer resp.Body.Close()
	var list struct {
		Orders []models.Order `json:"orders"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Orders, 1)
	assert.Equal(t, "7", list.Orders[0].TableNumber)

	bad, err := http.Get(srv.URL + "/kitchen/orders?status=cooking")
	require.NoError(t, err)
	defer bad.Body.Close()
	var errResp httpx.ErrorResponse
	require.NoError(t, json.NewDecoder(bad.Body).Decode(&errResp))
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, "validation_failed", errResp.Code)
}
