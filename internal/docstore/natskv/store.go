// Package natskv provides a docstore.Store backed by NATS JetStream KV.
// Each collection is one bucket; live subscriptions use KV watchers.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"smartdine/internal/docstore"
)

// BucketPrefix is prepended to the upper-cased collection name
const BucketPrefix = "SMARTDINE_"

const maxUpdateAttempts = 5

// envelope is the value stored under each key
type envelope struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store implements docstore.Store on JetStream KV buckets
type Store struct {
	js jetstream.JetStream

	mu      sync.Mutex
	buckets map[string]jetstream.KeyValue
}

// NewStore creates a Store using the given JetStream context
func NewStore(js jetstream.JetStream) *Store {
	return &Store{
		js:      js,
		buckets: make(map[string]jetstream.KeyValue),
	}
}

// BucketName returns the KV bucket that holds a collection
func BucketName(collection string) string {
	return BucketPrefix + strings.ToUpper(collection)
}

func (s *Store) bucket(ctx context.Context, collection string) (jetstream.KeyValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if kv, ok := s.buckets[collection]; ok {
		return kv, nil
	}
	name := BucketName(collection)
	kv, err := s.js.KeyValue(ctx, name)
	if err != nil {
		// Bucket doesn't exist, create it
		kv, err = s.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      name,
			Description: fmt.Sprintf("SmartDine %s collection", collection),
			History:     5,
		})
		if err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	s.buckets[collection] = kv
	return kv, nil
}

// AddDocument creates a new key holding v
func (s *Store) AddDocument(ctx context.Context, collection string, v any) (*docstore.Document, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}
	data, err := docstore.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	now := time.Now().UTC()
	env := envelope{Data: data, CreatedAt: now, UpdatedAt: now}
	value, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	id := uuid.NewString()
	if _, err := kv.Create(ctx, id, value); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	return &docstore.Document{ID: id, Data: data, CreatedAt: now, UpdatedAt: now}, nil
}

// GetDocument reads one key
func (s *Store) GetDocument(ctx context.Context, collection, id string) (*docstore.Document, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}
	entry, err := kv.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return decodeEntry(entry)
}

// UpdateDocument merges fields into the stored body. The write is
// revision-checked against the read so concurrent merges never drop fields;
// a lost race is retried a bounded number of times.
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		entry, err := kv.Get(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return docstore.ErrNotFound
			}
			return fmt.Errorf("get document: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(entry.Value(), &env); err != nil {
			return fmt.Errorf("unmarshal document: %w", err)
		}
		merged, err := docstore.Merge(env.Data, fields)
		if err != nil {
			return fmt.Errorf("merge document: %w", err)
		}
		env.Data = merged
		env.UpdatedAt = time.Now().UTC()

		value, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		if _, err := kv.Update(ctx, id, value, entry.Revision()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("update document after %d attempts: %w", maxUpdateAttempts, lastErr)
}

// Subscribe watches the whole bucket and publishes the matching snapshot
// once the initial replay is complete and after every change.
func (s *Store) Subscribe(ctx context.Context, collection string, q docstore.Query) (*docstore.Subscription, error) {
	kv, err := s.bucket(ctx, collection)
	if err != nil {
		return nil, err
	}

	sub, subCtx := docstore.NewSubscription(ctx)
	watcher, err := kv.WatchAll(subCtx)
	if err != nil {
		sub.Finish(nil)
		return nil, fmt.Errorf("watch bucket: %w", err)
	}

	go func() {
		defer watcher.Stop()

		docs := make(map[string]docstore.Document)
		initialized := false
		for {
			select {
			case <-subCtx.Done():
				sub.Finish(subCtx.Err())
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					if subCtx.Err() != nil {
						sub.Finish(subCtx.Err())
					} else {
						sub.Finish(errors.New("kv watcher closed"))
					}
					return
				}
				// nil entry signals end of initial values replay
				if entry == nil {
					initialized = true
				} else if entry.Operation() == jetstream.KeyValuePut {
					doc, err := decodeEntry(entry)
					if err != nil {
						continue
					}
					docs[doc.ID] = *doc
				} else {
					delete(docs, entry.Key())
				}

				if initialized {
					sub.Publish(q.Apply(values(docs)))
				}
			}
		}
	}()
	return sub, nil
}

// Close is a no-op; the NATS connection is owned by the caller
func (s *Store) Close() error {
	return nil
}

func decodeEntry(entry jetstream.KeyValueEntry) (*docstore.Document, error) {
	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &docstore.Document{
		ID:        entry.Key(),
		Data:      env.Data,
		CreatedAt: env.CreatedAt,
		UpdatedAt: env.UpdatedAt,
	}, nil
}

func values(docs map[string]docstore.Document) []docstore.Document {
	out := make([]docstore.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d)
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}
