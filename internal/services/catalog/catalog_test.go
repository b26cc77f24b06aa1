package catalog

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartdine/internal/docstore"
	"smartdine/internal/docstore/memstore"
	"smartdine/internal/logger"
	"smartdine/internal/models"
)

func startCatalog(t *testing.T, store docstore.Store) *Catalog {
	t.Helper()
	c := New(store, logger.Nop())
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("catalog never became ready")
	}
	return c
}

func TestDecodeMenuItem(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    models.MenuItem
		wantErr bool
	}{
		{
			name: "complete record",
			body: `{"name":"Latte","price":"4.50","category":"Coffee","is_available":true,"is_vip_only":true}`,
			want: models.MenuItem{ID: "m1", Name: "Latte", Price: decimal.RequireFromString("4.50"), Category: "Coffee", Available: true, VIPOnly: true},
		},
		{
			name: "numeric price",
			body: `{"name":"Tea","price":2.5,"category":"Tea"}`,
			want: models.MenuItem{ID: "m1", Name: "Tea", Price: decimal.RequireFromString("2.5"), Category: "Tea", Available: true},
		},
		{
			name: "defaults for missing fields",
			body: `{}`,
			want: models.MenuItem{ID: "m1", Name: DefaultName, Price: decimal.Zero, Category: DefaultCategory, Available: true},
		},
		{
			name: "non-numeric price becomes zero",
			body: `{"name":"Mystery","price":"free"}`,
			want: models.MenuItem{ID: "m1", Name: "Mystery", Price: decimal.Zero, Category: DefaultCategory, Available: true},
		},
		{
			name: "explicitly unavailable",
			body: `{"name":"Soup","is_available":false}`,
			want: models.MenuItem{ID: "m1", Name: "Soup", Price: decimal.Zero, Category: DefaultCategory, Available: false},
		},
		{
			name:    "negative price rejected",
			body:    `{"name":"Refund","price":"-1"}`,
			wantErr: true,
		},
		{
			name:    "not an object",
			body:    `[1,2]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMenuItem(docstore.Document{ID: "m1", Data: json.RawMessage(tt.body)})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.ID, got.ID)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.True(t, tt.want.Price.Equal(got.Price), "price %s != %s", got.Price, tt.want.Price)
			assert.Equal(t, tt.want.Category, got.Category)
			assert.Equal(t, tt.want.Available, got.Available)
			assert.Equal(t, tt.want.VIPOnly, got.VIPOnly)
		})
	}
}

func TestCatalogMirrorsStore(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	latte, err := store.AddDocument(ctx, models.MenuItemsCollection, map[string]any{"name": "Latte", "price": "4.50", "category": "Coffee"})
	require.NoError(t, err)
	_, err = store.AddDocument(ctx, models.MenuItemsCollection, map[string]any{"name": "Cake", "price": "5", "category": "Desserts"})
	require.NoError(t, err)
	_, err = store.AddDocument(ctx, models.MenuItemsCollection, map[string]any{"name": "Bad", "price": "-3"})
	require.NoError(t, err)

	c := startCatalog(t, store)

	item, ok := c.Lookup(latte.ID)
	require.True(t, ok)
	assert.Equal(t, "Latte", item.Name)

	assert.Len(t, c.List(""), 2, "negative price record is skipped")
	assert.Len(t, c.List(models.CategoryAll), 2)
	coffee := c.List("Coffee")
	require.Len(t, coffee, 1)
	assert.Equal(t, latte.ID, coffee[0].ID)
	assert.Equal(t, []string{"Coffee", "Desserts"}, c.Categories())

	// admin edits flow through
	require.NoError(t, store.UpdateDocument(ctx, models.MenuItemsCollection, latte.ID, map[string]any{"is_available": false}))
	assert.Eventually(t, func() bool {
		item, ok := c.Lookup(latte.ID)
		return ok && !item.Available
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunBeforeStart(t *testing.T) {
	c := New(memstore.New(), logger.Nop())
	assert.ErrorIs(t, c.Run(context.Background()), ErrNotStarted)
}

func TestRunEndsWhenStoreCloses(t *testing.T) {
	store := memstore.New()
	c := New(store, logger.Nop())
	require.NoError(t, c.Start(context.Background()))

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	<-c.Ready()

	require.NoError(t, store.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, docstore.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
items:
  - name: Espresso
    price: "2.80"
    category: Coffee
  - name: Wagyu
    price: "48"
    category: Mains
    vip_only: true
    available: false
`), 0o644))

	items, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, items, 2)

	store := memstore.New()
	ids, err := Seed(context.Background(), store, items)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	doc, err := store.GetDocument(context.Background(), models.MenuItemsCollection, ids[1])
	require.NoError(t, err)
	item, err := DecodeMenuItem(*doc)
	require.NoError(t, err)
	assert.Equal(t, "Wagyu", item.Name)
	assert.True(t, item.VIPOnly)
	assert.False(t, item.Available)
	assert.True(t, decimal.NewFromInt(48).Equal(item.Price))
}

func TestLoadSeedFileRejectsBadPrice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - name: X\n    price: abc\n"), 0o644))

	_, err := LoadSeedFile(path)
	assert.Error(t, err)
}
