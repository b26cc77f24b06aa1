// Package memstore is an in-process docstore.Store used for local runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartdine/internal/docstore"
)

type watcher struct {
	collection string
	notify     chan struct{}
}

// Store keeps collections in memory and fans out change notifications to
// live subscriptions.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Document
	watchers    map[*watcher]struct{}
	closed      bool
	now         func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]docstore.Document),
		watchers:    make(map[*watcher]struct{}),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddDocument stores v under a new id
func (s *Store) AddDocument(ctx context.Context, collection string, v any) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := docstore.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrClosed
	}
	now := s.now()
	doc := docstore.Document{
		ID:        uuid.NewString(),
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.collection(collection)[doc.ID] = doc
	s.notifyLocked(collection)
	s.mu.Unlock()

	return &doc, nil
}

// UpdateDocument merges fields into an existing document
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}

	docs := s.collection(collection)
	doc, ok := docs[id]
	if !ok {
		return docstore.ErrNotFound
	}
	merged, err := docstore.Merge(doc.Data, fields)
	if err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	doc.Data = merged
	doc.UpdatedAt = s.now()
	docs[id] = doc
	s.notifyLocked(collection)
	return nil
}

// GetDocument returns one document
func (s *Store) GetDocument(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &doc, nil
}

// DeleteDocument removes a document. It is not part of docstore.Store; the
// ordering core never deletes.
func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collection(collection)
	if _, ok := docs[id]; !ok {
		return docstore.ErrNotFound
	}
	delete(docs, id)
	s.notifyLocked(collection)
	return nil
}

// Subscribe delivers the matching snapshot now and after each change
func (s *Store) Subscribe(ctx context.Context, collection string, q docstore.Query) (*docstore.Subscription, error) {
	w := &watcher{collection: collection, notify: make(chan struct{}, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrClosed
	}
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	sub, subCtx := docstore.NewSubscription(ctx)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.watchers, w)
			s.mu.Unlock()
		}()

		for {
			sub.Publish(q.Apply(s.snapshot(collection)))
			select {
			case <-subCtx.Done():
				sub.Finish(subCtx.Err())
				return
			case _, ok := <-w.notify:
				if !ok {
					sub.Finish(docstore.ErrClosed)
					return
				}
			}
		}
	}()
	return sub, nil
}

// Close ends every live subscription
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for w := range s.watchers {
		close(w.notify)
	}
	s.watchers = make(map[*watcher]struct{})
	return nil
}

func (s *Store) snapshot(collection string) []docstore.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]docstore.Document, 0, len(s.collections[collection]))
	for _, d := range s.collections[collection] {
		docs = append(docs, d)
	}
	return docs
}

func (s *Store) collection(name string) map[string]docstore.Document {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]docstore.Document)
		s.collections[name] = docs
	}
	return docs
}

func (s *Store) notifyLocked(collection string) {
	for w := range s.watchers {
		if w.collection != collection {
			continue
		}
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}
