package firestore

import (
	"testing"
	"time"

	fs "cloud.google.com/go/firestore"

	"github.com/TomasGamarra/RappiFarma/internal/model"
	"github.com/TomasGamarra/RappiFarma/internal/store"
)

// MergeAll sets only accept map data at the top level, so struct payloads
// handed to Batch.Merge must arrive flattened; otherwise every fan-out commit
// fails client-side before reaching the backend.
func TestMergeValueFlattensStructs(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	pointer := model.InboxPointer{
		RequestID: "r1",
		CreatedAt: createdAt,
		Thumb:     "https://cdn.example/x.jpg",
		UserName:  "Ana Gómez",
		Direccion: "Calle 1",
		UserID:    "u1",
	}

	got, ok := mergeValue(pointer).(map[string]any)
	if !ok {
		t.Fatalf("mergeValue(struct) = %T, want map", mergeValue(pointer))
	}
	want := map[string]any{
		"requestId": "r1",
		"createdAt": createdAt,
		"thumb":     "https://cdn.example/x.jpg",
		"userName":  "Ana Gómez",
		"direccion": "Calle 1",
		"userId":    "u1",
	}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %q = %v, want %v", k, got[k], v)
		}
	}
}

func TestMergeValueHonorsTags(t *testing.T) {
	t.Parallel()

	offer := model.Offer{ID: "o1", UserID: "u1", State: model.OfferStatePendiente}
	got, ok := mergeValue(&offer).(map[string]any)
	if !ok {
		t.Fatalf("mergeValue(*struct) is not a map")
	}
	if _, present := got["id"]; present {
		t.Fatalf("skipped field must not be written: %v", got)
	}
	if _, present := got["envioState"]; present {
		t.Fatalf("omitempty zero field must not be written: %v", got)
	}
	if got["state"] != model.OfferStatePendiente || got["userId"] != "u1" {
		t.Fatalf("fields: %v", got)
	}
}

func TestMergeValueResolvesSentinelInMaps(t *testing.T) {
	t.Parallel()

	got, ok := mergeValue(map[string]any{
		"createdAt": store.ServerTimestamp,
		"role":      model.RoleUsuario,
	}).(map[string]any)
	if !ok {
		t.Fatalf("mergeValue(map) is not a map")
	}
	if got["createdAt"] != fs.ServerTimestamp {
		t.Fatalf("sentinel not resolved: %v", got["createdAt"])
	}
	if got["role"] != model.RoleUsuario {
		t.Fatalf("fields: %v", got)
	}
}
