// Package docstore defines the document-oriented store the ordering core
// talks to: live collection subscriptions plus add, update and get of single
// documents. Backends live in the memstore, natskv and pgstore packages.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Common store errors.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("document store closed")
)

// Document is one record in a collection. Data holds the JSON object body;
// ID and timestamps are assigned by the store.
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the document body into v
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Store is the external document store.
type Store interface {
	// Subscribe opens a live view of a collection. The subscription delivers
	// the full matching document set on start and after every change.
	Subscribe(ctx context.Context, collection string, q Query) (*Subscription, error)
	// AddDocument stores v as a new document and returns it with its
	// assigned id and creation time.
	AddDocument(ctx context.Context, collection string, v any) (*Document, error)
	// UpdateDocument merges fields into the top level of an existing
	// document. Returns ErrNotFound when id does not resolve.
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error
	// GetDocument returns a single document or ErrNotFound.
	GetDocument(ctx context.Context, collection, id string) (*Document, error)
	Close() error
}

// Merge applies fields over the top-level keys of a JSON object body
func Merge(data json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	body := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		body[k] = raw
	}
	return json.Marshal(body)
}

// Encode marshals v and checks that it is a JSON object
func Encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.New("document body must be a JSON object")
	}
	return data, nil
}
