package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartdine/internal/database"
	"smartdine/internal/docstore"
	"smartdine/internal/logger"
)

// Integration tests run against a live database named by
// SMARTDINE_TEST_DATABASE_URL; each test uses its own collection.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("SMARTDINE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SMARTDINE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, url, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.RunMigrations(ctx))

	return NewStore(db, logger.Nop())
}

func collectionName(t *testing.T) string {
	return "test_" + t.Name() + "_" + time.Now().Format("150405.000000000")
}

type order struct {
	Table  string `json:"table_number"`
	Status string `json:"status"`
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	coll := collectionName(t)

	doc, err := s.AddDocument(ctx, coll, order{Table: "3", Status: "pending"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateDocument(ctx, coll, doc.ID, map[string]any{"status": "in-kitchen"}))

	got, err := s.GetDocument(ctx, coll, doc.ID)
	require.NoError(t, err)
	var body order
	require.NoError(t, got.Decode(&body))
	assert.Equal(t, order{Table: "3", Status: "in-kitchen"}, body)

	_, err = s.GetDocument(ctx, coll, "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.ErrorIs(t, s.UpdateDocument(ctx, coll, "missing", map[string]any{"status": "x"}), docstore.ErrNotFound)
}

func TestStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	coll := collectionName(t)

	sub, err := s.Subscribe(ctx, coll, docstore.Query{OrderBy: docstore.FieldCreatedAt, Descending: true})
	require.NoError(t, err)
	defer sub.Stop()

	next := func() []docstore.Document {
		select {
		case docs, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed: %v", sub.Err())
			return docs
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}

	assert.Empty(t, next())

	_, err = s.AddDocument(ctx, coll, order{Table: "1", Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, next(), 1)
}
