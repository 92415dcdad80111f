// Package notify reconstructs a notification feed from the live offer stream.
// The store has no change-event semantics beyond whole-collection snapshots,
// so the feed is re-derived on every snapshot: a steady-state mapping over the
// current offers plus edge-triggered events from diffing against the previous
// snapshot, merged and deduplicated per (offer, type).
package notify

import (
	"fmt"
	"sort"
	"time"

	"github.com/TomasGamarra/RappiFarma/internal/model"
)

const defaultDetalle = "No se especificó motivo"

// DeriveCurrent synthesizes at most one notification per offer from its
// present state. Offers in states with no mapping produce nothing.
func DeriveCurrent(offers []model.Offer, now time.Time) []model.Notification {
	var out []model.Notification
	for _, o := range offers {
		ts := o.TimeStamp
		if ts.IsZero() {
			ts = now
		}
		var n model.Notification
		switch {
		case o.State == model.OfferStatePendiente:
			n = model.Notification{
				ID:       "offer_" + o.ID,
				Type:     model.NotifNuevaOferta,
				Message:  fmt.Sprintf("Te llegó una oferta de %q", farmacia(o, "una farmacia")),
				Priority: 1,
			}
		case o.State == model.OfferStateAceptada && o.EnvioState == model.EnvioEntregado:
			n = model.Notification{
				ID:       "delivered_" + o.ID,
				Type:     model.NotifPedidoEntregado,
				Message:  fmt.Sprintf("¡Tu pedido de %s ha sido entregado!", farmacia(o, "la farmacia")),
				Priority: 2,
			}
		case o.State == model.OfferStateRechazada:
			n = model.Notification{
				ID:       "rejected_" + o.ID,
				Type:     model.NotifRechazo,
				Message:  fmt.Sprintf("%s rechazó tu receta: %s", farmacia(o, "Una farmacia"), detalle(o)),
				Priority: 1,
			}
		case o.State == model.OfferStateAceptada && o.EnvioState == model.EnvioEnviando:
			n = model.Notification{
				ID:       "shipping_" + o.ID,
				Type:     model.NotifInfo,
				Message:  fmt.Sprintf("Tu pedido de %s está en camino", farmacia(o, "la farmacia")),
				Priority: 3,
			}
		default:
			continue
		}
		n.FarmaciaNombre = farmacia(o, "Farmacia")
		n.Timestamp = ts
		n.OfferID = o.ID
		out = append(out, n)
	}
	return out
}

// DetectChanges synthesizes edge-triggered notifications for specific field
// transitions between two consecutive snapshots. Ids carry the observation
// time, so repeated transitions of the same offer stay distinguishable.
// Offers absent from prev produce nothing here; the steady-state mapping
// already covers them.
func DetectChanges(prev, curr []model.Offer, now time.Time) []model.Notification {
	byID := make(map[string]model.Offer, len(prev))
	for _, o := range prev {
		byID[o.ID] = o
	}

	var out []model.Notification
	for _, o := range curr {
		before, ok := byID[o.ID]
		if !ok {
			continue
		}
		if before.EnvioState != model.EnvioEntregado && o.EnvioState == model.EnvioEntregado {
			out = append(out, model.Notification{
				ID:             fmt.Sprintf("change_delivered_%s_%d", o.ID, now.UnixMilli()),
				Type:           model.NotifPedidoEntregado,
				FarmaciaNombre: farmacia(o, "Farmacia"),
				Timestamp:      now,
				Message:        fmt.Sprintf("¡Tu pedido de %s ha sido entregado!", farmacia(o, "la farmacia")),
				Priority:       2,
				OfferID:        o.ID,
			})
		}
		if before.State != model.OfferStateRechazada && o.State == model.OfferStateRechazada {
			out = append(out, model.Notification{
				ID:             fmt.Sprintf("change_rejected_%s_%d", o.ID, now.UnixMilli()),
				Type:           model.NotifRechazo,
				FarmaciaNombre: farmacia(o, "Farmacia"),
				Timestamp:      now,
				Message:        fmt.Sprintf("%s rechazó tu receta: %s", farmacia(o, "Una farmacia"), detalle(o)),
				Priority:       1,
				OfferID:        o.ID,
			})
		}
		if before.State != model.OfferStatePendiente && o.State == model.OfferStatePendiente {
			out = append(out, model.Notification{
				ID:             fmt.Sprintf("change_new_%s_%d", o.ID, now.UnixMilli()),
				Type:           model.NotifNuevaOferta,
				FarmaciaNombre: farmacia(o, "Farmacia"),
				Timestamp:      now,
				Message:        fmt.Sprintf("Te llegó una oferta de %q", farmacia(o, "una farmacia")),
				Priority:       1,
				OfferID:        o.ID,
			})
		}
	}
	return out
}

// dedupe keeps the first notification per (offerId, type) pair. Callers
// concatenate edge-triggered entries first, so those win over steady-state
// derivations of the same event.
func dedupe(notifications []model.Notification) []model.Notification {
	seen := make(map[string]struct{}, len(notifications))
	out := notifications[:0]
	for _, n := range notifications {
		key := n.OfferID + "_" + n.Type
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// sortFeed orders notifications newest first.
func sortFeed(notifications []model.Notification) {
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].Timestamp.After(notifications[j].Timestamp)
	})
}

func farmacia(o model.Offer, fallback string) string {
	if o.Farmacia == "" {
		return fallback
	}
	return o.Farmacia
}

func detalle(o model.Offer) string {
	if o.Detalle == "" {
		return defaultDetalle
	}
	return o.Detalle
}
