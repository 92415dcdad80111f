package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TomasGamarra/RappiFarma/internal/errs"
	"github.com/TomasGamarra/RappiFarma/internal/model"
	"github.com/TomasGamarra/RappiFarma/internal/store"
)

// Feed is one published reconciliation result.
type Feed struct {
	Unread        int
	Notifications []model.Notification
}

// Reconciler drives the user's offer subscription and publishes the derived
// feed on every snapshot. Snapshots are processed one at a time, so two diffs
// never race over the same previous state. Its lifetime is scoped to the
// screen that owns it: cancel the Run context to tear the subscription down.
type Reconciler struct {
	store store.Store
	reads *ReadCache
	log   *zap.Logger
	now   func() time.Time

	mu   sync.Mutex
	prev []model.Offer
	last []model.Notification

	updates chan Feed
}

// NewReconciler constructs a Reconciler around an injected read cache.
func NewReconciler(st store.Store, reads *ReadCache, log *zap.Logger) *Reconciler {
	if reads == nil {
		reads = NewReadCache(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		store:   st,
		reads:   reads,
		log:     log,
		now:     time.Now,
		updates: make(chan Feed, 1),
	}
}

// Updates delivers the latest feed. Slow consumers only ever skip to the
// newest state; intermediate feeds are coalesced away.
func (r *Reconciler) Updates() <-chan Feed { return r.updates }

// Run subscribes to the user's offers and reconciles until ctx is cancelled
// or the subscription fails. A terminal subscription error is surfaced as
// ErrStoreUnavailable; the UI shows a loading-stopped state, not a crash.
func (r *Reconciler) Run(ctx context.Context, userID string) error {
	if userID == "" {
		return errs.ErrNotAuthenticated
	}
	sub, err := r.store.Subscribe(ctx, store.OffersCollection, store.Where("userId", userID))
	if err != nil {
		return fmt.Errorf("subscribe offers: %w: %w", errs.ErrStoreUnavailable, err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-sub.Snapshots():
			if !ok {
				return ctx.Err()
			}
			if snap.Err != nil {
				r.log.Error("offer subscription failed", zap.Error(snap.Err))
				return fmt.Errorf("offer snapshots: %w: %w", errs.ErrStoreUnavailable, snap.Err)
			}
			r.apply(r.decode(snap.Docs))
		}
	}
}

// MarkRead acknowledges one notification, updates the published feed and
// recomputes the unread count. Purely local; nothing is written to the store.
func (r *Reconciler) MarkRead(notificationID string) Feed {
	r.mu.Lock()
	for i := range r.last {
		if r.last[i].ID == notificationID {
			r.reads.Mark(r.last[i])
			r.last[i].Read = true
			break
		}
	}
	feed := r.feedLocked()
	r.mu.Unlock()

	r.publish(feed)
	return feed
}

// apply reconciles one snapshot against remembered state.
func (r *Reconciler) apply(offers []model.Offer) {
	now := r.now()

	r.mu.Lock()
	merged := dedupe(append(DetectChanges(r.prev, offers, now), DeriveCurrent(offers, now)...))
	for i := range merged {
		merged[i].Read = r.reads.IsRead(merged[i])
	}
	sortFeed(merged)
	r.prev = offers
	r.last = merged
	feed := r.feedLocked()
	r.mu.Unlock()

	r.publish(feed)
}

func (r *Reconciler) feedLocked() Feed {
	out := make([]model.Notification, len(r.last))
	copy(out, r.last)
	unread := 0
	for _, n := range out {
		if !n.Read {
			unread++
		}
	}
	return Feed{Unread: unread, Notifications: out}
}

func (r *Reconciler) decode(docs []store.Document) []model.Offer {
	offers := make([]model.Offer, 0, len(docs))
	for _, doc := range docs {
		var o model.Offer
		if err := doc.DataTo(&o); err != nil {
			r.log.Warn("skipping undecodable offer", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		o.ID = doc.ID
		offers = append(offers, o)
	}
	return offers
}

// publish replaces any undelivered feed with the newest one.
func (r *Reconciler) publish(feed Feed) {
	for {
		select {
		case r.updates <- feed:
			return
		default:
			select {
			case <-r.updates:
			default:
			}
		}
	}
}
