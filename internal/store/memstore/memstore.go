// Package memstore is an in-memory document store with the same semantics as
// the production backend: atomic batches, equality queries, live snapshot
// subscriptions and conditional updates. It backs tests and local development.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/store"
)

// Store holds documents keyed by full path. All mutations are serialized by a
// single mutex, so a committed batch is indivisible to readers.
type Store struct {
	mu   sync.Mutex
	docs map[string]map[string]any
	subs map[*subscription]struct{}
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		docs: make(map[string]map[string]any),
		subs: make(map[*subscription]struct{}),
	}
}

// GetOne fetches a single document by path.
func (s *Store) GetOne(_ context.Context, path string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[path]
	if !ok {
		return store.Document{}, fmt.Errorf("get %s: %w", path, errs.ErrNotFound)
	}
	return store.JSONDocument(docID(path), path, data), nil
}

// Query runs a one-shot equality-filtered collection scan.
func (s *Store) Query(_ context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(collection, filters), nil
}

// Subscribe opens a live query. The initial result set is delivered before any
// subsequent change; snapshots are delivered in commit order.
func (s *Store) Subscribe(ctx context.Context, collection string, filters ...store.Filter) (store.Subscription, error) {
	sub := &subscription{
		collection: collection,
		filters:    filters,
		out:        make(chan store.Snapshot),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.enqueue(store.Snapshot{Docs: s.queryLocked(collection, filters)})
	s.mu.Unlock()

	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		case <-sub.done:
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		}
	}()
	return sub, nil
}

// GenerateID allocates a fresh document id; usable before the first write.
func (s *Store) GenerateID(string) string {
	return uuid.Must(uuid.NewV4()).String()
}

// Batch starts an atomic write.
func (s *Store) Batch() store.Batch {
	return &batch{store: s}
}

// UpdateIf applies updates only while field still equals expect.
func (s *Store) UpdateIf(_ context.Context, path, field string, expect any, updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.docs[path]
	if !ok {
		return fmt.Errorf("update %s: %w", path, errs.ErrNotFound)
	}
	if !reflect.DeepEqual(data[field], normalize(expect)) {
		return fmt.Errorf("update %s: %s=%v: %w", path, field, data[field], errs.ErrStateConflict)
	}
	for k, v := range normalizeDoc(updates) {
		data[k] = v
	}
	s.notifyLocked()
	return nil
}

// Len reports the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queryLocked(collection, nil))
}

func (s *Store) queryLocked(collection string, filters []store.Filter) []store.Document {
	var out []store.Document
	prefix := collection + "/"
	for path, data := range s.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		if !matches(data, filters) {
			continue
		}
		out = append(out, store.JSONDocument(docID(path), path, data))
	}
	return out
}

// notifyLocked pushes a fresh snapshot to every subscriber whose query may
// have changed. Called with s.mu held, so snapshots reflect whole commits.
func (s *Store) notifyLocked() {
	for sub := range s.subs {
		sub.enqueue(store.Snapshot{Docs: s.queryLocked(sub.collection, sub.filters)})
	}
}

func matches(data map[string]any, filters []store.Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(data[f.Field], normalize(f.Value)) {
			return false
		}
	}
	return true
}

func docID(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

// normalize round-trips a value through JSON so stored fields and filter
// values compare with the same dynamic types.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// normalizeDoc converts a write payload (struct or map) into stored form,
// resolving server-timestamp sentinels first.
func normalizeDoc(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		resolved := make(map[string]any, len(m))
		for k, v := range m {
			if v == store.ServerTimestamp {
				v = time.Now().UTC()
			}
			resolved[k] = v
		}
		data = resolved
	}
	out, _ := normalize(data).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// batch collects ops and applies them under the store mutex in one step.
type batch struct {
	store *Store
	ops   []func(docs map[string]map[string]any)
}

func (b *batch) Set(path string, data any) store.Batch {
	b.ops = append(b.ops, func(docs map[string]map[string]any) {
		docs[path] = normalizeDoc(data)
	})
	return b
}

func (b *batch) Merge(path string, data any) store.Batch {
	b.ops = append(b.ops, func(docs map[string]map[string]any) {
		existing, ok := docs[path]
		if !ok {
			existing = make(map[string]any)
			docs[path] = existing
		}
		for k, v := range normalizeDoc(data) {
			existing[k] = v
		}
	})
	return b
}

func (b *batch) Delete(path string) store.Batch {
	b.ops = append(b.ops, func(docs map[string]map[string]any) {
		delete(docs, path)
	})
	return b
}

func (b *batch) Commit(context.Context) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		op(b.store.docs)
	}
	b.store.notifyLocked()
	return nil
}

// subscription queues snapshots under its own lock and forwards them from a
// dedicated goroutine, so commits never block on slow consumers and delivery
// order matches commit order.
type subscription struct {
	collection string
	filters    []store.Filter

	mu      sync.Mutex
	pending []store.Snapshot
	closed  bool

	out  chan store.Snapshot
	wake chan struct{}
	done chan struct{}
}

func (s *subscription) Snapshots() <-chan store.Snapshot { return s.out }

func (s *subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}

func (s *subscription) enqueue(snap store.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, snap)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		queue := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, snap := range queue {
			select {
			case s.out <- snap:
			case <-s.done:
				return
			}
		}

		select {
		case <-s.wake:
		case <-s.done:
			return
		}
	}
}
