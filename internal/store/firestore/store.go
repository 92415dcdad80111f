// Package firestore adapts Cloud Firestore to the store contract. Batches and
// conditional updates run inside transactions so they are atomic; live queries
// map directly onto Firestore snapshot listeners.
package firestore

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/store"
)

// Store wraps a Firestore client.
type Store struct {
	client *fs.Client
}

var _ store.Store = (*Store)(nil)

// New wraps an already-dialed client; the caller owns its lifetime.
func New(client *fs.Client) *Store {
	return &Store{client: client}
}

// GetOne fetches a single document.
func (s *Store) GetOne(ctx context.Context, path string) (store.Document, error) {
	snap, err := s.client.Doc(path).Get(ctx)
	if err != nil {
		return store.Document{}, mapErr("get "+path, err)
	}
	return wrap(snap), nil
}

// Query runs a one-shot equality-filtered collection query.
func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	snaps, err := s.buildQuery(collection, filters).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapErr("query "+collection, err)
	}
	docs := make([]store.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, wrap(snap))
	}
	return docs, nil
}

// Subscribe opens a snapshot listener on the filtered collection.
func (s *Store) Subscribe(ctx context.Context, collection string, filters ...store.Filter) (store.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		iter:   s.buildQuery(collection, filters).Snapshots(subCtx),
		out:    make(chan store.Snapshot),
		cancel: cancel,
	}
	go sub.pump(subCtx, collection)
	return sub, nil
}

// GenerateID allocates a Firestore auto-id without writing.
func (s *Store) GenerateID(collection string) string {
	return s.client.Collection(collection).NewDoc().ID
}

// Batch starts an atomic write, committed as a single transaction.
func (s *Store) Batch() store.Batch {
	return &batch{store: s}
}

// UpdateIf transitions a document only while the guarded field holds the
// expected value. The read-check-write runs in one transaction, so concurrent
// accepts of the same offer serialize and the loser gets ErrStateConflict.
func (s *Store) UpdateIf(ctx context.Context, path, field string, expect any, updates map[string]any) error {
	ref := s.client.Doc(path)
	err := s.client.RunTransaction(ctx, func(_ context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		got, err := snap.DataAt(field)
		if err != nil || !reflect.DeepEqual(got, expect) {
			return fmt.Errorf("%s=%v: %w", field, got, errs.ErrStateConflict)
		}
		return tx.Set(ref, mergeValue(updates), fs.MergeAll)
	})
	if err != nil {
		return mapErr("update "+path, err)
	}
	return nil
}

func (s *Store) buildQuery(collection string, filters []store.Filter) fs.Query {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	return q
}

func wrap(snap *fs.DocumentSnapshot) store.Document {
	return store.NewDocument(snap.Ref.ID, snap.Ref.Path, snap.DataTo)
}

func mapErr(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%s: %v: %w", op, err, errs.ErrStoreUnavailable)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// resolveSentinels swaps the portable server-timestamp sentinel for the
// Firestore-native one in top-level map values.
func resolveSentinels(data any) any {
	m, ok := data.(map[string]any)
	if !ok {
		return data
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == store.ServerTimestamp {
			v = fs.ServerTimestamp
		}
		out[k] = v
	}
	return out
}

// mergeValue shapes a merge payload for MergeAll, which the client only
// accepts with map data at the top level. Struct payloads are flattened one
// level by their firestore tags; field values are left to the client's codec.
func mergeValue(data any) any {
	data = resolveSentinels(data)
	if _, ok := data.(map[string]any); ok {
		return data
	}
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return data
	}
	t := v.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("firestore"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fv := v.Field(i)
		if strings.Contains(opts, "omitempty") && fv.IsZero() {
			continue
		}
		out[name] = fv.Interface()
	}
	return out
}

type writeOp struct {
	kind string // "set", "merge", "delete"
	path string
	data any
}

type batch struct {
	store *Store
	ops   []writeOp
}

func (b *batch) Set(path string, data any) store.Batch {
	b.ops = append(b.ops, writeOp{kind: "set", path: path, data: data})
	return b
}

func (b *batch) Merge(path string, data any) store.Batch {
	b.ops = append(b.ops, writeOp{kind: "merge", path: path, data: data})
	return b
}

func (b *batch) Delete(path string) store.Batch {
	b.ops = append(b.ops, writeOp{kind: "delete", path: path})
	return b
}

func (b *batch) Commit(ctx context.Context) error {
	err := b.store.client.RunTransaction(ctx, func(_ context.Context, tx *fs.Transaction) error {
		for _, op := range b.ops {
			ref := b.store.client.Doc(op.path)
			var err error
			switch op.kind {
			case "set":
				err = tx.Set(ref, resolveSentinels(op.data))
			case "merge":
				err = tx.Set(ref, mergeValue(op.data), fs.MergeAll)
			case "delete":
				err = tx.Delete(ref)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mapErr("batch commit", err)
	}
	return nil
}

type subscription struct {
	iter   *fs.QuerySnapshotIterator
	out    chan store.Snapshot
	cancel context.CancelFunc
	once   sync.Once
}

func (s *subscription) Snapshots() <-chan store.Snapshot { return s.out }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		s.iter.Stop()
	})
}

func (s *subscription) pump(ctx context.Context, collection string) {
	defer close(s.out)
	for {
		qsnap, err := s.iter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case s.out <- store.Snapshot{Err: mapErr("subscribe "+collection, err)}:
			case <-ctx.Done():
			}
			return
		}
		snaps, err := qsnap.Documents.GetAll()
		if err != nil {
			select {
			case s.out <- store.Snapshot{Err: mapErr("subscribe "+collection, err)}:
			case <-ctx.Done():
			}
			return
		}
		docs := make([]store.Document, 0, len(snaps))
		for _, snap := range snaps {
			docs = append(docs, wrap(snap))
		}
		select {
		case s.out <- store.Snapshot{Docs: docs}:
		case <-ctx.Done():
			return
		}
	}
}
