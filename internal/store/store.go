// Package store defines the narrow document-store contract the protocol is
// built on: collection queries, live snapshot subscriptions, atomic
// multi-document batches, pre-allocated ids and conditional updates. Concrete
// backends live in subpackages.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// ServerTimestamp is a sentinel value usable inside writes; backends replace it
// with their commit-time timestamp.
var ServerTimestamp = serverTimestamp{}

type serverTimestamp struct{}

// Filter is a single equality constraint on a collection query.
type Filter struct {
	Field string
	Op    string
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Op: "==", Value: value}
}

// Document is one stored document snapshot.
type Document struct {
	ID     string
	Path   string
	decode func(v any) error
}

// NewDocument wraps a backend-specific decoder.
func NewDocument(id, path string, decode func(v any) error) Document {
	return Document{ID: id, Path: path, decode: decode}
}

// JSONDocument builds a Document whose DataTo round-trips through JSON. Used
// by the in-memory backend and by tests.
func JSONDocument(id, path string, data any) Document {
	raw, err := json.Marshal(data)
	return Document{ID: id, Path: path, decode: func(v any) error {
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, v)
	}}
}

// DataTo decodes the document's fields into v.
func (d Document) DataTo(v any) error {
	if d.decode == nil {
		return fmt.Errorf("document %s: no data", d.Path)
	}
	return d.decode(v)
}

// Snapshot is one delivery of a live subscription: either the full current
// result set or a terminal error.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription is a live collection query. Snapshots delivers the initial
// result set and every subsequent change; the channel closes after Close or
// after a Snapshot carrying a terminal Err.
type Subscription interface {
	Snapshots() <-chan Snapshot
	Close()
}

// Batch accumulates writes committed atomically: either every op is applied or
// none is. Merge upserts only the provided fields, so re-running a batch keyed
// on pre-allocated ids converges instead of duplicating.
type Batch interface {
	Set(path string, data any) Batch
	Merge(path string, data any) Batch
	Delete(path string) Batch
	Commit(ctx context.Context) error
}

// Store is the reactive document database the lifecycle protocol runs against.
type Store interface {
	// GetOne fetches a single document; errs.ErrNotFound if absent.
	GetOne(ctx context.Context, path string) (Document, error)

	// Query runs a one-shot equality-filtered collection query.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Subscribe opens a live query delivering full snapshots on every change.
	Subscribe(ctx context.Context, collection string, filters ...Filter) (Subscription, error)

	// GenerateID allocates a document id usable before the first write.
	GenerateID(collection string) string

	// Batch starts an atomic multi-document write.
	Batch() Batch

	// UpdateIf applies updates to a document only while field still equals
	// expect; errs.ErrStateConflict otherwise, errs.ErrNotFound if the
	// document is gone.
	UpdateIf(ctx context.Context, path, field string, expect any, updates map[string]any) error
}
