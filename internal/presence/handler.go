package presence

import (
	"log/slog"

	"github.com/Sehnya/unison-sub002/internal/domain"
	"github.com/Sehnya/unison-sub002/internal/metrics"
)

// Handler maps presence events to store mutations. A malformed event is
// logged and swallowed; it never blocks later events or corrupts the
// roster for other members.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Apply processes one event for one channel and reports whether the
// roster changed.
func (h *Handler) Apply(channelID string, evt domain.PresenceEvent) bool {
	member, err := normalizeMember(evt.Member)
	if err != nil {
		slog.Warn("Dropping malformed presence event",
			"channel", channelID,
			"kind", evt.Kind,
			"error", err)
		metrics.PresenceEventsTotal.WithLabelValues(string(evt.Kind), "malformed").Inc()
		return false
	}

	var changed bool
	switch evt.Kind {
	case domain.EventEnter, domain.EventPresent:
		// Duplicate enter/present delivery happens during bus resyncs;
		// adding an already-known id is a no-op.
		changed = h.store.Add(channelID, member)
	case domain.EventUpdate:
		// An update may arrive before its enter due to bus reordering;
		// Update falls back to an add for unknown ids.
		changed = h.store.Update(channelID, member)
	case domain.EventLeave:
		changed = h.store.Remove(channelID, member.ID)
	default:
		slog.Warn("Unknown presence event kind", "channel", channelID, "kind", evt.Kind)
		metrics.PresenceEventsTotal.WithLabelValues(string(evt.Kind), "unknown").Inc()
		return false
	}

	metrics.PresenceEventsTotal.WithLabelValues(string(evt.Kind), "ok").Inc()
	return changed
}
