package presence

import (
	"context"
	"time"

	"github.com/Sehnya/unison-sub002/internal/domain"
	"github.com/Sehnya/unison-sub002/internal/metrics"
)

// DefaultReconcileInterval bounds presence staleness: drift from missed
// or reordered bus events, including a reconciliation racing an in-flight
// leave, is corrected within one interval.
const DefaultReconcileInterval = 5 * time.Second

// Reconciler corrects drift between the store and the bus's authoritative
// state. Event delivery carries no end-to-end guarantee, so each tick
// re-fetches a full snapshot per channel and conditionally replaces the
// stored roster.
type Reconciler struct {
	bus   domain.PresenceBus
	store *Store
}

func NewReconciler(bus domain.PresenceBus, store *Store) *Reconciler {
	return &Reconciler{bus: bus, store: store}
}

// ReconcileChannel fetches the authoritative snapshot for one channel and
// replaces the stored roster only when membership differs. A fetch
// failure keeps the last-known-good roster and must not affect other
// channels in the same tick.
func (r *Reconciler) ReconcileChannel(ctx context.Context, channelID string) (bool, error) {
	start := time.Now()
	raws, err := r.bus.Snapshot(ctx, channelID)
	metrics.SnapshotFetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ReconcileFailuresTotal.WithLabelValues(channelID).Inc()
		return false, err
	}

	changed := r.store.Replace(channelID, normalizeRoster(raws))
	if changed {
		metrics.ReconcileDriftTotal.WithLabelValues(channelID).Inc()
	}
	return changed, nil
}
