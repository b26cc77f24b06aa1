package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartdine/internal/docstore"
)

type item struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

func tickingClock() func() time.Time {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func nextSnapshot(t *testing.T, sub *docstore.Subscription) []docstore.Document {
	t.Helper()
	select {
	case docs, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return docs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestAddGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SetClock(tickingClock())

	doc, err := s.AddDocument(ctx, "orders", item{Name: "Latte", Status: "pending"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	require.NoError(t, s.UpdateDocument(ctx, "orders", doc.ID, map[string]any{"status": "served"}))

	got, err := s.GetDocument(ctx, "orders", doc.ID)
	require.NoError(t, err)
	var body item
	require.NoError(t, got.Decode(&body))
	assert.Equal(t, item{Name: "Latte", Status: "served"}, body)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetDocument(ctx, "orders", "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	err = s.UpdateDocument(ctx, "orders", "missing", map[string]any{"status": "served"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	assert.ErrorIs(t, s.DeleteDocument(ctx, "orders", "missing"), docstore.ErrNotFound)
}

func TestAddRejectsNonObject(t *testing.T) {
	_, err := New().AddDocument(context.Background(), "orders", []string{"x"})
	assert.Error(t, err)
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SetClock(tickingClock())

	first, err := s.AddDocument(ctx, "orders", item{Name: "A", Status: "pending"})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, "orders", docstore.Query{OrderBy: docstore.FieldCreatedAt, Descending: true})
	require.NoError(t, err)
	defer sub.Stop()

	initial := nextSnapshot(t, sub)
	require.Len(t, initial, 1)
	assert.Equal(t, first.ID, initial[0].ID)

	second, err := s.AddDocument(ctx, "orders", item{Name: "B", Status: "pending"})
	require.NoError(t, err)

	updated := nextSnapshot(t, sub)
	require.Len(t, updated, 2)
	assert.Equal(t, second.ID, updated[0].ID, "newest first")

	// other collections do not wake this subscription
	_, err = s.AddDocument(ctx, "menuItems", item{Name: "Tea"})
	require.NoError(t, err)
	select {
	case docs := <-sub.Updates():
		t.Fatalf("unexpected snapshot %v", docs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeFilter(t *testing.T) {
	ctx := context.Background()
	s := New()

	sub, err := s.Subscribe(ctx, "orders", docstore.Query{Where: []docstore.Condition{{Field: "status", Value: "pending"}}})
	require.NoError(t, err)
	defer sub.Stop()
	assert.Empty(t, nextSnapshot(t, sub))

	doc, err := s.AddDocument(ctx, "orders", item{Name: "A", Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, nextSnapshot(t, sub), 1)

	require.NoError(t, s.UpdateDocument(ctx, "orders", doc.ID, map[string]any{"status": "served"}))
	assert.Empty(t, nextSnapshot(t, sub))
}

func TestStopAndClose(t *testing.T) {
	ctx := context.Background()
	s := New()

	sub, err := s.Subscribe(ctx, "orders", docstore.Query{})
	require.NoError(t, err)
	nextSnapshot(t, sub)
	sub.Stop()
	assert.NoError(t, sub.Err())

	other, err := s.Subscribe(ctx, "orders", docstore.Query{})
	require.NoError(t, err)
	nextSnapshot(t, other)

	require.NoError(t, s.Close())
	<-other.Done()
	assert.ErrorIs(t, other.Err(), docstore.ErrClosed)

	_, err = s.AddDocument(ctx, "orders", item{Name: "late"})
	assert.ErrorIs(t, err, docstore.ErrClosed)
	_, err = s.Subscribe(ctx, "orders", docstore.Query{})
	assert.ErrorIs(t, err, docstore.ErrClosed)
}
