package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/store"
)

type testDoc struct {
	UserID string `json:"userId"`
	State  string `json:"state"`
}

func TestBatchIsAtomicToQueries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	b := s.Batch()
	b.Set("offers/a", testDoc{UserID: "u1", State: "Pendiente"})
	b.Set("offers/b", testDoc{UserID: "u1", State: "Pendiente"})
	b.Delete("offers/missing")
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	docs, err := s.Query(ctx, "offers", store.Where("userId", "u1"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 docs, got %d", len(docs))
	}
}

func TestQueryIgnoresSubcollections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	b := s.Batch()
	b.Set("inbox/ph1/requests/r1", map[string]any{"requestId": "r1"})
	b.Set("inbox/ph2/requests/r1", map[string]any{"requestId": "r1"})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	docs, err := s.Query(ctx, "inbox/ph1/requests")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "r1" {
		t.Fatalf("inbox query: %+v", docs)
	}
	if docs, _ := s.Query(ctx, "inbox"); len(docs) != 0 {
		t.Fatalf("parent collection must not see nested docs, got %d", len(docs))
	}
}

func TestGetOneNotFound(t *testing.T) {
	t.Parallel()
	s := New()
	if _, err := s.GetOne(context.Background(), "users/none"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMergeUpsertsAndConverges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	b := s.Batch()
	b.Merge("users/u1", map[string]any{"direccion": "Calle 1"})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	b = s.Batch()
	b.Merge("users/u1", map[string]any{"telefono": "123"})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	doc, err := s.GetOne(ctx, "users/u1")
	if err != nil {
		t.Fatalf("GetOne: %v", err)
	}
	var u struct {
		Direccion string `json:"direccion"`
		Telefono  string `json:"telefono"`
	}
	if err := doc.DataTo(&u); err != nil {
		t.Fatalf("DataTo: %v", err)
	}
	if u.Direccion != "Calle 1" || u.Telefono != "123" {
		t.Fatalf("merge result: %+v", u)
	}
}

func TestServerTimestampSentinel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	b := s.Batch()
	b.Merge("users/u1", map[string]any{"createdAt": store.ServerTimestamp})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	doc, _ := s.GetOne(ctx, "users/u1")
	var u struct {
		CreatedAt time.Time `json:"createdAt"`
	}
	if err := doc.DataTo(&u); err != nil {
		t.Fatalf("DataTo: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Fatalf("sentinel not resolved to a timestamp")
	}
}

func TestUpdateIf(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	b := s.Batch()
	b.Set("offers/a", testDoc{UserID: "u1", State: "Pendiente"})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := s.UpdateIf(ctx, "offers/a", "state", "Pendiente", map[string]any{"state": "Aceptada"}); err != nil {
		t.Fatalf("UpdateIf: %v", err)
	}
	// Second conditional update must lose: the guard no longer holds.
	err := s.UpdateIf(ctx, "offers/a", "state", "Pendiente", map[string]any{"state": "Aceptada"})
	if !errors.Is(err, errs.ErrStateConflict) {
		t.Fatalf("want ErrStateConflict, got %v", err)
	}
	if err := s.UpdateIf(ctx, "offers/gone", "state", "Pendiente", nil); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSubscribeDeliversInitialAndUpdates(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New()

	sub, err := s.Subscribe(ctx, "offers", store.Where("userId", "u1"))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	snap := waitSnapshot(t, sub)
	if len(snap.Docs) != 0 {
		t.Fatalf("initial snapshot should be empty, got %d", len(snap.Docs))
	}

	b := s.Batch()
	b.Set("offers/a", testDoc{UserID: "u1", State: "Pendiente"})
	b.Set("offers/x", testDoc{UserID: "other", State: "Pendiente"})
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap = waitSnapshot(t, sub)
	if len(snap.Docs) != 1 || snap.Docs[0].ID != "a" {
		t.Fatalf("filtered snapshot: %+v", snap.Docs)
	}
}

func waitSnapshot(t *testing.T, sub store.Subscription) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Snapshots():
		if !ok {
			t.Fatalf("subscription closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return store.Snapshot{}
	}
}
