package presence

import (
	"log/slog"

	"github.com/Sehnya/unison-sub002/internal/domain"
)

const placeholderIDLength = 6

// normalizeMember derives a Member from a raw bus payload. Username falls
// back to a short id-derived placeholder, avatar to nil. The same
// derivation applies to live events and snapshot ingestion, so consumers
// never see a member with missing fields.
func normalizeMember(raw domain.RawMember) (domain.Member, error) {
	if raw.ID == "" {
		return domain.Member{}, domain.ErrEmptyMemberID
	}

	username := raw.Username
	if username == "" {
		short := raw.ID
		if len(short) > placeholderIDLength {
			short = short[:placeholderIDLength]
		}
		username = "user-" + short
	}

	var avatar *string
	if raw.Avatar != "" {
		a := raw.Avatar
		avatar = &a
	}

	return domain.Member{ID: raw.ID, Username: username, Avatar: avatar}, nil
}

// normalizeRoster maps a snapshot through normalizeMember, dropping
// malformed entries. Order is preserved.
func normalizeRoster(raws []domain.RawMember) []domain.Member {
	members := make([]domain.Member, 0, len(raws))
	for _, raw := range raws {
		member, err := normalizeMember(raw)
		if err != nil {
			slog.Warn("Dropping malformed snapshot member", "error", err)
			continue
		}
		members = append(members, member)
	}
	return members
}
