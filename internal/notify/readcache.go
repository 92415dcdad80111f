package notify

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/TomasGamarra/RappiFarma/internal/model"
)

// DefaultReadCacheSize bounds how many acknowledged notifications are
// remembered before the oldest marks age out.
const DefaultReadCacheSize = 512

// ReadCache remembers which notifications the user acknowledged. Read state is
// purely client-side and must survive re-derivation, including the id drift
// introduced by edge-triggered uniquification, so each mark is stored both
// under its raw id and under its (offerId, type) pair.
type ReadCache struct {
	ids *lru.Cache[string, struct{}]
}

// NewReadCache builds a bounded cache; size <= 0 selects the default.
func NewReadCache(size int) *ReadCache {
	if size <= 0 {
		size = DefaultReadCacheSize
	}
	ids, _ := lru.New[string, struct{}](size)
	return &ReadCache{ids: ids}
}

// Mark records the notification as read.
func (c *ReadCache) Mark(n model.Notification) {
	c.ids.Add(n.ID, struct{}{})
	c.ids.Add(pairKey(n.OfferID, n.Type), struct{}{})
}

// IsRead reports whether the notification, or any prior notification for the
// same (offer, type) pair, was acknowledged.
func (c *ReadCache) IsRead(n model.Notification) bool {
	if _, ok := c.ids.Get(n.ID); ok {
		return true
	}
	_, ok := c.ids.Get(pairKey(n.OfferID, n.Type))
	return ok
}

func pairKey(offerID, typ string) string {
	return "pair|" + offerID + "|" + typ
}
