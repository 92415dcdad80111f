package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/model"
	"github.com/TomasGamarra/RappiFarma/internal/store"
)

// Offer sort keys, matching the listing screen's filter menu.
const (
	SortByMonto        = "monto"
	SortByTiempoEspera = "tiempoEspera"
)

// StepResult is the outcome of one best-effort cleanup action.
type StepResult struct {
	Step string
	Path string
	Err  error
}

// AcceptReport collects the cleanup saga outcomes of a successful accept.
// Partial failure is inspectable here instead of being swallowed.
type AcceptReport struct {
	Steps []StepResult
}

// Failed returns the steps that did not complete.
func (r AcceptReport) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// OfferService resolves the race over competing offers: exactly one offer of a
// request may be accepted, and accepting it retires the request, its sibling
// offers and every pharmacy inbox pointer.
type OfferService struct {
	store store.Store
	log   *zap.Logger
}

// NewOfferService constructs OfferService.
func NewOfferService(st store.Store, log *zap.Logger) *OfferService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OfferService{store: st, log: log}
}

// Accept transitions the selected offer to Aceptada and purges everything that
// competed with it.
//
// The transition is conditional on the offer still being Pendiente, so of two
// concurrent accepts exactly one commits; the loser gets ErrAcceptFailed. It
// is also the only step that must succeed: once it commits the user's order
// exists, and every later step is best-effort cleanup whose failures are
// logged and reported but never fatal. A dangling inbox pointer left behind by
// a failed deletion references a dead request and must be ignored by readers.
func (s *OfferService) Accept(ctx context.Context, userID string, offer model.Offer) (AcceptReport, error) {
	if userID == "" {
		return AcceptReport{}, errs.ErrNotAuthenticated
	}
	if offer.ID == "" || offer.RequestID == "" {
		return AcceptReport{}, errors.New("validation: empty offer/request id")
	}
	if offer.UserID != userID {
		return AcceptReport{}, fmt.Errorf("offer %s belongs to another user: %w", offer.ID, errs.ErrAcceptFailed)
	}

	err := s.store.UpdateIf(ctx, store.OfferPath(offer.ID), "state", model.OfferStatePendiente, map[string]any{
		"state":      model.OfferStateAceptada,
		"envioState": model.EnvioEnPreparacion,
	})
	if err != nil {
		return AcceptReport{}, fmt.Errorf("accept offer %s: %w: %w", offer.ID, errs.ErrAcceptFailed, err)
	}

	report := s.cleanup(ctx, userID, offer)
	for _, f := range report.Failed() {
		s.log.Warn("accept cleanup step failed",
			zap.String("offerId", offer.ID),
			zap.String("step", f.Step),
			zap.String("path", f.Path),
			zap.Error(f.Err),
		)
	}
	s.log.Info("offer accepted",
		zap.String("offerId", offer.ID),
		zap.String("requestId", offer.RequestID),
		zap.Int("cleanupFailures", len(report.Failed())),
	)
	return report, nil
}

// cleanup runs the post-accept saga: delete pending sibling offers, delete the
// request's pointer from every pharmacy inbox, delete the request itself.
// Deletions within a step run concurrently; every outcome is recorded.
func (s *OfferService) cleanup(ctx context.Context, userID string, accepted model.Offer) AcceptReport {
	var (
		mu     sync.Mutex
		report AcceptReport
	)
	record := func(step, path string, err error) {
		mu.Lock()
		report.Steps = append(report.Steps, StepResult{Step: step, Path: path, Err: err})
		mu.Unlock()
	}

	var wg sync.WaitGroup
	deleteAsync := func(step, path string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record(step, path, s.deleteDoc(ctx, path))
		}()
	}

	siblings, err := s.pendingOffers(ctx, userID)
	if err != nil {
		record("querySiblings", store.OffersCollection, err)
	}
	for _, sib := range siblings {
		if sib.ID == accepted.ID || sib.RequestID != accepted.RequestID {
			continue
		}
		deleteAsync("deleteSibling", store.OfferPath(sib.ID))
	}
	wg.Wait()

	pharmacies, err := listPharmacies(ctx, s.store)
	if err != nil {
		record("queryPharmacies", store.UsersCollection, err)
	}
	for _, ph := range pharmacies {
		deleteAsync("deleteInboxPointer", store.InboxPointerPath(ph.ID, accepted.RequestID))
	}
	wg.Wait()

	path := store.RequestPath(accepted.RequestID)
	record("deleteRequest", path, s.deleteDoc(ctx, path))
	return report
}

// Reject deletes the offer document. No fan-out effects and no retry.
func (s *OfferService) Reject(ctx context.Context, offer model.Offer) error {
	if offer.ID == "" {
		return errors.New("validation: empty offer id")
	}
	if err := s.deleteDoc(ctx, store.OfferPath(offer.ID)); err != nil {
		return fmt.Errorf("reject offer %s: %w: %w", offer.ID, errs.ErrRejectFailed, err)
	}
	s.log.Info("offer rejected", zap.String("offerId", offer.ID))
	return nil
}

// ListOffers returns every offer addressed to the user.
func (s *OfferService) ListOffers(ctx context.Context, userID string) ([]model.Offer, error) {
	if userID == "" {
		return nil, errs.ErrNotAuthenticated
	}
	return s.queryOffers(ctx, store.Where("userId", userID))
}

// SortOffers orders offers in place by price or by wait time, ascending.
// Unknown keys leave the order untouched.
func SortOffers(offers []model.Offer, by string) {
	switch by {
	case SortByMonto:
		sort.SliceStable(offers, func(i, j int) bool {
			return offers[i].PrecioTotal < offers[j].PrecioTotal
		})
	case SortByTiempoEspera:
		sort.SliceStable(offers, func(i, j int) bool {
			return offers[i].TiempoEspera < offers[j].TiempoEspera
		})
	}
}

func (s *OfferService) pendingOffers(ctx context.Context, userID string) ([]model.Offer, error) {
	return s.queryOffers(ctx,
		store.Where("userId", userID),
		store.Where("state", model.OfferStatePendiente),
	)
}

func (s *OfferService) queryOffers(ctx context.Context, filters ...store.Filter) ([]model.Offer, error) {
	docs, err := s.store.Query(ctx, store.OffersCollection, filters...)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	out := make([]model.Offer, 0, len(docs))
	for _, doc := range docs {
		var o model.Offer
		if err := doc.DataTo(&o); err != nil {
			return nil, fmt.Errorf("decode offer %s: %w", doc.ID, err)
		}
		o.ID = doc.ID
		out = append(out, o)
	}
	return out, nil
}

func (s *OfferService) deleteDoc(ctx context.Context, path string) error {
	return s.store.Batch().Delete(path).Commit(ctx)
}
