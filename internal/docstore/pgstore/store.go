// Package pgstore is a docstore.Store over a PostgreSQL jsonb table. Every
// write issues a NOTIFY on the collection name; subscriptions LISTEN on a
// dedicated connection and re-read the collection when woken.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"smartdine/internal/database"
	"smartdine/internal/docstore"
	"smartdine/internal/logger"
)

// Store implements docstore.Store on the documents table
type Store struct {
	db     *database.DB
	logger *logger.Logger
}

// NewStore creates a Store over an open database
func NewStore(db *database.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log}
}

// AddDocument inserts v and notifies listeners in one transaction
func (s *Store) AddDocument(ctx context.Context, collection string, v any) (*docstore.Document, error) {
	data, err := docstore.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	id := uuid.NewString()
	if _, err := tx.Exec(ctx, database.InsertDocumentSQL, collection, id, string(data), now); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	if _, err := tx.Exec(ctx, database.NotifyChangeSQL, database.ChangesChannel, collection); err != nil {
		return nil, fmt.Errorf("notify change: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit document: %w", err)
	}

	return &docstore.Document{ID: id, Data: data, CreatedAt: now, UpdatedAt: now}, nil
}

// UpdateDocument merges fields with the jsonb concatenation operator
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, database.MergeDocumentSQL, collection, id, string(patch))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	if _, err := tx.Exec(ctx, database.NotifyChangeSQL, database.ChangesChannel, collection); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}
	return tx.Commit(ctx)
}

// GetDocument reads one row
func (s *Store) GetDocument(ctx context.Context, collection, id string) (*docstore.Document, error) {
	doc, err := scanDocument(s.db.QueryRow(ctx, database.GetDocumentSQL, collection, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Subscribe holds a pooled connection in LISTEN until the subscription ends
func (s *Store) Subscribe(ctx context.Context, collection string, q docstore.Query) (*docstore.Subscription, error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+database.ChangesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}

	sub, subCtx := docstore.NewSubscription(ctx)
	requestID := logger.GenerateRequestID()

	go func() {
		defer func() {
			// UNLISTEN on a fresh context; subCtx is already done here
			unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if _, err := conn.Exec(unlistenCtx, "UNLISTEN "+database.ChangesChannel); err != nil {
				conn.Conn().Close(unlistenCtx)
			}
			cancel()
			conn.Release()
		}()

		for {
			docs, err := s.list(subCtx, collection)
			if err != nil {
				sub.Finish(err)
				return
			}
			sub.Publish(q.Apply(docs))

			if err := waitForCollection(subCtx, conn.Conn(), collection); err != nil {
				if subCtx.Err() == nil {
					s.logger.Error("subscription_failed", "Listen connection failed", requestID, err,
						map[string]interface{}{"collection": collection})
				}
				sub.Finish(err)
				return
			}
		}
	}()
	return sub, nil
}

// Close is a no-op; the pool is owned by the caller
func (s *Store) Close() error {
	return nil
}

func (s *Store) list(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := s.db.Query(ctx, database.ListDocumentsSQL, collection)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// waitForCollection blocks until a notification for collection arrives
func waitForCollection(ctx context.Context, conn *pgx.Conn, collection string) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Channel == database.ChangesChannel && n.Payload == collection {
			return nil
		}
	}
}

func scanDocument(row pgx.Row) (*docstore.Document, error) {
	var (
		doc  docstore.Document
		data []byte
	)
	if err := row.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.Data = data
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return &doc, nil
}
