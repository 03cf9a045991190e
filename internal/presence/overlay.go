package presence

import "github.com/Sehnya/unison-sub002/internal/domain"

// EffectiveRoster overlays the local user's optimistic presence onto a
// stored roster. When the local user is connected to exactly this channel
// and not yet reflected in the stored roster, a synthesized entry is
// prepended so their own avatar appears without waiting for the bus
// round-trip. Once the real presence record arrives, the id match makes
// the overlay a no-op.
//
// This is a pure read-side function; it never writes into the store.
func EffectiveRoster(stored []domain.Member, local domain.LocalPresence, channelID string) []domain.Member {
	if local.ChannelID != channelID || local.Member.ID == "" {
		return stored
	}
	if indexOf(stored, local.Member.ID) >= 0 {
		return stored
	}

	roster := make([]domain.Member, 0, len(stored)+1)
	roster = append(roster, local.Member)
	return append(roster, stored...)
}
