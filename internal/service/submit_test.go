package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/model"
	"github.com/TomasGamarra/RappiFarma/internal/store"
	"github.com/TomasGamarra/RappiFarma/internal/store/memstore"
)

type fakeUploader struct {
	failOn string
	calls  int
}

func (f *fakeUploader) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	f.calls++
	if name == f.failOn {
		return "", fmt.Errorf("upload %s: boom: %w", name, errs.ErrUploadFailed)
	}
	_, _ = io.Copy(io.Discard, r)
	return "https://cdn.example/" + name, nil
}

func seedUser(t *testing.T, st *memstore.Store, id string, u model.User) {
	t.Helper()
	u.ID = ""
	if err := st.Batch().Set(store.UserPath(id), u).Commit(context.Background()); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func seedMarketplace(t *testing.T, st *memstore.Store) {
	t.Helper()
	seedUser(t, st, "u1", model.User{Role: model.RoleUsuario, Nombre: "Ana", Apellido: "Gómez", Direccion: "Calle 1"})
	seedUser(t, st, "ph1", model.User{Role: model.RoleFarmacia, Nombre: "Farmacia Central"})
	seedUser(t, st, "ph2", model.User{Role: model.RoleFarmacia, Nombre: "Farmacia Norte"})
}

func img(name string) Image {
	return Image{Name: name, Data: strings.NewReader("jpegbytes")}
}

func TestSubmitFansOutToEveryPharmacy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()
	seedMarketplace(t, st)
	svc := NewSubmissionService(st, &fakeUploader{}, nil)

	res, err := svc.Submit(ctx, "u1", []Image{img("receta.jpg")}, "urgente", 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.RequestID == "" || len(res.Images) != 1 {
		t.Fatalf("result: %+v", res)
	}

	reqDoc, err := st.GetOne(ctx, store.RequestPath(res.RequestID))
	if err != nil {
		t.Fatalf("request doc: %v", err)
	}
	var req model.Request
	if err := reqDoc.DataTo(&req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.State != model.RequestStateOpen || req.UserID != "u1" {
		t.Fatalf("request: %+v", req)
	}
	if req.Direccion != "Calle 1" {
		t.Fatalf("address not snapshotted: %q", req.Direccion)
	}
	if req.Images[0] != "https://cdn.example/receta.jpg" {
		t.Fatalf("images: %v", req.Images)
	}
	if got := req.ExpiresAt.Sub(req.CreatedAt); got != DefaultWindow {
		t.Fatalf("expiry window = %v, want %v", got, DefaultWindow)
	}

	// One pointer per pharmacy that existed at submission time, never a subset.
	var pointers []model.InboxPointer
	for _, ph := range []string{"ph1", "ph2"} {
		doc, err := st.GetOne(ctx, store.InboxPointerPath(ph, res.RequestID))
		if err != nil {
			t.Fatalf("pointer for %s: %v", ph, err)
		}
		var p model.InboxPointer
		if err := doc.DataTo(&p); err != nil {
			t.Fatalf("decode pointer: %v", err)
		}
		pointers = append(pointers, p)
	}
	for _, p := range pointers {
		if p.RequestID != res.RequestID || p.UserID != "u1" || p.Direccion != "Calle 1" {
			t.Fatalf("pointer: %+v", p)
		}
		if p.Thumb != req.Images[0] {
			t.Fatalf("thumb = %q", p.Thumb)
		}
		if p.UserName != "Ana Gómez" {
			t.Fatalf("userName = %q", p.UserName)
		}
	}
	if !pointers[0].CreatedAt.Equal(pointers[1].CreatedAt) || !pointers[0].CreatedAt.Equal(req.CreatedAt) {
		t.Fatalf("createdAt not shared: %v %v %v", pointers[0].CreatedAt, pointers[1].CreatedAt, req.CreatedAt)
	}
}

func TestSubmitPreconditions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("not authenticated", func(t *testing.T) {
		svc := NewSubmissionService(memstore.New(), &fakeUploader{}, nil)
		if _, err := svc.Submit(ctx, "", []Image{img("a.jpg")}, "", 0); !errors.Is(err, errs.ErrNotAuthenticated) {
			t.Fatalf("want ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("no images", func(t *testing.T) {
		svc := NewSubmissionService(memstore.New(), &fakeUploader{}, nil)
		if _, err := svc.Submit(ctx, "u1", nil, "", 0); err == nil {
			t.Fatalf("want validation error")
		}
	})

	t.Run("profile not found", func(t *testing.T) {
		st := memstore.New()
		svc := NewSubmissionService(st, &fakeUploader{}, nil)
		if _, err := svc.Submit(ctx, "ghost", []Image{img("a.jpg")}, "", 0); !errors.Is(err, errs.ErrProfileNotFound) {
			t.Fatalf("want ErrProfileNotFound, got %v", err)
		}
	})

	t.Run("missing address", func(t *testing.T) {
		st := memstore.New()
		seedUser(t, st, "u1", model.User{Role: model.RoleUsuario, Nombre: "Ana"})
		svc := NewSubmissionService(st, &fakeUploader{}, nil)
		if _, err := svc.Submit(ctx, "u1", []Image{img("a.jpg")}, "", 0); !errors.Is(err, errs.ErrMissingAddress) {
			t.Fatalf("want ErrMissingAddress, got %v", err)
		}
	})

	t.Run("no pharmacies", func(t *testing.T) {
		st := memstore.New()
		seedUser(t, st, "u1", model.User{Role: model.RoleUsuario, Direccion: "Calle 1"})
		svc := NewSubmissionService(st, &fakeUploader{}, nil)
		_, err := svc.Submit(ctx, "u1", []Image{img("a.jpg")}, "", 0)
		if !errors.Is(err, errs.ErrNoPharmaciesAvailable) {
			t.Fatalf("want ErrNoPharmaciesAvailable, got %v", err)
		}
		if st.Len(store.RequestsCollection) != 0 {
			t.Fatalf("no request may be written on precondition failure")
		}
	})
}

func TestSubmitUploadFailureAbortsBeforeAnyWrite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()
	seedMarketplace(t, st)
	svc := NewSubmissionService(st, &fakeUploader{failOn: "b.jpg"}, nil)

	_, err := svc.Submit(ctx, "u1", []Image{img("a.jpg"), img("b.jpg")}, "", 0)
	if !errors.Is(err, errs.ErrUploadFailed) {
		t.Fatalf("want ErrUploadFailed, got %v", err)
	}
	if st.Len(store.RequestsCollection) != 0 {
		t.Fatalf("no partial fan-out may be visible after a failed upload")
	}
}

func TestSubmitClampsWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := memstore.New()
	seedMarketplace(t, st)
	svc := NewSubmissionService(st, &fakeUploader{}, nil)

	res, err := svc.Submit(ctx, "u1", []Image{img("a.jpg")}, "", 20*time.Second)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	doc, _ := st.GetOne(ctx, store.RequestPath(res.RequestID))
	var req model.Request
	if err := doc.DataTo(&req); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := req.ExpiresAt.Sub(req.CreatedAt); got != time.Minute {
		t.Fatalf("window = %v, want 1m floor", got)
	}
}
