// Package service contains the application services driving the request/offer
// lifecycle: submission fan-out, offer acceptance and rejection, and profile
// access.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/media"
	"github.com/TomasGamarra/RappiFarma/internal/model"
	"github.com/TomasGamarra/RappiFarma/internal/store"
)

// DefaultWindow is the request expiry window applied when none is given.
const DefaultWindow = 20 * time.Minute

// Image is one local prescription photo to upload.
type Image struct {
	Name string
	Data io.Reader
}

// SubmitResult reports the created request and its hosted image URLs.
type SubmitResult struct {
	RequestID string
	Images    []string
}

// SubmissionService builds a prescription request, uploads its images and
// fans it out to every registered pharmacy in one atomic batch.
type SubmissionService struct {
	store    store.Store
	uploader media.Uploader
	log      *zap.Logger
}

// NewSubmissionService constructs SubmissionService with required dependencies.
func NewSubmissionService(st store.Store, up media.Uploader, log *zap.Logger) *SubmissionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SubmissionService{store: st, uploader: up, log: log}
}

// Submit uploads every image, snapshots the caller's address, discovers all
// pharmacy accounts and commits the Request plus one inbox pointer per
// pharmacy atomically. Every write shares one createdAt, so pointers are
// causally consistent with the Request. The request id is allocated before the
// batch and pointers merge by (pharmacyId, requestId), so retrying a failed
// commit with the same result converges instead of duplicating.
//
// Already-uploaded images are not cleaned up when a later step fails.
func (s *SubmissionService) Submit(ctx context.Context, userID string, images []Image, notes string, window time.Duration) (SubmitResult, error) {
	if userID == "" {
		return SubmitResult{}, errs.ErrNotAuthenticated
	}
	if len(images) == 0 {
		return SubmitResult{}, errors.New("validation: no images")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if window < time.Minute {
		window = time.Minute
	}

	urls, err := s.uploadAll(ctx, images)
	if err != nil {
		return SubmitResult{}, err
	}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	if profile.Direccion == "" {
		return SubmitResult{}, errs.ErrMissingAddress
	}

	pharmacies, err := listPharmacies(ctx, s.store)
	if err != nil {
		return SubmitResult{}, err
	}
	if len(pharmacies) == 0 {
		return SubmitResult{}, errs.ErrNoPharmaciesAvailable
	}

	requestID := s.store.GenerateID(store.RequestsCollection)
	createdAt := time.Now().UTC()

	req := model.Request{
		UserID:    userID,
		Images:    urls,
		Direccion: profile.Direccion,
		Notes:     notes,
		State:     model.RequestStateOpen,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(window),
	}
	pointer := model.InboxPointer{
		RequestID: requestID,
		CreatedAt: createdAt,
		Thumb:     urls[0],
		UserName:  profile.DisplayName(),
		Direccion: profile.Direccion,
		UserID:    userID,
	}

	b := s.store.Batch()
	b.Set(store.RequestPath(requestID), req)
	for _, ph := range pharmacies {
		b.Merge(store.InboxPointerPath(ph.ID, requestID), pointer)
	}
	if err := b.Commit(ctx); err != nil {
		return SubmitResult{}, fmt.Errorf("commit request %s: %w", requestID, err)
	}

	s.log.Info("request submitted",
		zap.String("requestId", requestID),
		zap.Int("images", len(urls)),
		zap.Int("pharmacies", len(pharmacies)),
	)
	return SubmitResult{RequestID: requestID, Images: urls}, nil
}

// uploadAll pushes every image concurrently, preserving order. The first
// failure aborts the rest.
func (s *SubmissionService) uploadAll(ctx context.Context, images []Image) ([]string, error) {
	urls := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			url, err := s.uploader.Upload(gctx, img.Name, img.Data)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, errs.ErrUploadFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%v: %w", err, errs.ErrUploadFailed)
	}
	return urls, nil
}

func (s *SubmissionService) loadProfile(ctx context.Context, userID string) (model.User, error) {
	doc, err := s.store.GetOne(ctx, store.UserPath(userID))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.User{}, errs.ErrProfileNotFound
		}
		return model.User{}, fmt.Errorf("load profile: %w", err)
	}
	var u model.User
	if err := doc.DataTo(&u); err != nil {
		return model.User{}, fmt.Errorf("decode profile: %w", err)
	}
	u.ID = doc.ID
	return u, nil
}
