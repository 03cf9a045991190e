package presence

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Sehnya/unison-sub002/internal/domain"
	"github.com/Sehnya/unison-sub002/internal/metrics"
)

const subscribeTimeout = 2 * time.Second

// Registry manages the lifecycle of one bus subscription per voice
// channel: at most one live handle per channel id, with exact teardown.
//
// Registry is not safe for concurrent use; it is owned by the engine
// goroutine.
type Registry struct {
	bus     domain.PresenceBus
	handles map[string]domain.Subscription
}

func NewRegistry(bus domain.PresenceBus) *Registry {
	return &Registry{
		bus:     bus,
		handles: make(map[string]domain.Subscription),
	}
}

// EnsureSubscribed opens a subscription for every id without one. The
// delivery callback is wired before the initial snapshot fetch is issued,
// so an event arriving mid-fetch is queued rather than lost. Ids already
// subscribed are skipped. A failure on one channel does not stop the
// others; failed subscriptions are retried on the next call.
func (r *Registry) EnsureSubscribed(
	channelIDs []string,
	deliver func(channelID string, evt domain.PresenceEvent),
	seed func(channelID string, members []domain.RawMember),
) {
	for _, id := range channelIDs {
		if _, ok := r.handles[id]; ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), subscribeTimeout)
		channelID := id
		sub, err := r.bus.Subscribe(ctx, channelID, func(evt domain.PresenceEvent) {
			deliver(channelID, evt)
		})
		if err != nil {
			cancel()
			slog.Warn("Presence subscribe failed", "channel", channelID, "error", err)
			continue
		}
		r.handles[channelID] = sub

		members, err := r.bus.Snapshot(ctx, channelID)
		cancel()
		if err != nil {
			// The roster fills in on the next reconcile tick.
			slog.Warn("Initial presence snapshot failed", "channel", channelID, "error", err)
			continue
		}
		seed(channelID, members)
	}

	metrics.TrackedChannels.Set(float64(len(r.handles)))
}

// Teardown closes the subscription for one channel. Safe to call for
// ids that were never subscribed.
func (r *Registry) Teardown(ctx context.Context, channelID string) {
	sub, ok := r.handles[channelID]
	if !ok {
		return
	}
	if err := sub.Unsubscribe(ctx); err != nil {
		slog.Warn("Presence unsubscribe failed", "channel", channelID, "error", err)
	}
	delete(r.handles, channelID)
	metrics.TrackedChannels.Set(float64(len(r.handles)))
}

// TeardownAll closes every open subscription. Idempotent.
func (r *Registry) TeardownAll(ctx context.Context) {
	for id := range r.handles {
		r.Teardown(ctx, id)
	}
}

// Has reports whether a live subscription exists for the channel.
func (r *Registry) Has(channelID string) bool {
	_, ok := r.handles[channelID]
	return ok
}

// Subscribed returns the ids of all channels with a live subscription, sorted.
func (r *Registry) Subscribed() []string {
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
