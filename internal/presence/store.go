package presence

import (
	"sort"

	"github.com/Sehnya/unison-sub002/internal/domain"
)

// Store maps channel ids to ordered rosters. It is the single source of
// truth for rendering. Rosters are copy-on-write: every mutation installs
// a freshly allocated slice, and an unchanged roster keeps its slice
// identity, so readers holding a previously returned slice never observe
// a half-applied mutation.
//
// Store is not safe for concurrent use; it is owned by the engine
// goroutine.
type Store struct {
	rosters map[string][]domain.Member
}

func NewStore() *Store {
	return &Store{rosters: make(map[string][]domain.Member)}
}

// Create installs an empty roster entry for a channel if none exists.
func (s *Store) Create(channelID string) {
	if _, ok := s.rosters[channelID]; !ok {
		s.rosters[channelID] = nil
	}
}

// Drop removes a channel's roster entry entirely.
func (s *Store) Drop(channelID string) {
	delete(s.rosters, channelID)
}

// Roster returns the current roster slice for a channel. The returned
// slice is never mutated in place; treat it as immutable.
func (s *Store) Roster(channelID string) []domain.Member {
	return s.rosters[channelID]
}

// Channels returns the ids of all channels with a roster entry, sorted.
func (s *Store) Channels() []string {
	ids := make([]string, 0, len(s.rosters))
	for id := range s.rosters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Add appends a member if no member with the same id exists. Returns
// whether the roster changed.
func (s *Store) Add(channelID string, member domain.Member) bool {
	cur := s.rosters[channelID]
	if indexOf(cur, member.ID) >= 0 {
		return false
	}

	next := make([]domain.Member, len(cur), len(cur)+1)
	copy(next, cur)
	s.rosters[channelID] = append(next, member)
	return true
}

// Update replaces the mutable fields of an existing member in place,
// preserving insertion order. An unknown id is treated as an Add.
// Returns whether the roster changed.
func (s *Store) Update(channelID string, member domain.Member) bool {
	cur := s.rosters[channelID]
	i := indexOf(cur, member.ID)
	if i < 0 {
		return s.Add(channelID, member)
	}
	if sameFields(cur[i], member) {
		return false
	}

	next := make([]domain.Member, len(cur))
	copy(next, cur)
	next[i] = member
	s.rosters[channelID] = next
	return true
}

// Remove deletes the member with the given id. Removing an unknown id is
// a no-op. Returns whether the roster changed.
func (s *Store) Remove(channelID, memberID string) bool {
	cur := s.rosters[channelID]
	i := indexOf(cur, memberID)
	if i < 0 {
		return false
	}

	next := make([]domain.Member, 0, len(cur)-1)
	next = append(next, cur[:i]...)
	next = append(next, cur[i+1:]...)
	s.rosters[channelID] = next
	return true
}

// Replace installs a full roster, but only when membership actually
// differs (length or any positional id). An unchanged roster keeps its
// slice identity, so consumers can skip re-rendering on no-op
// reconciliations. Returns whether a replacement happened.
func (s *Store) Replace(channelID string, members []domain.Member) bool {
	cur := s.rosters[channelID]
	if !rosterDiffers(cur, members) {
		return false
	}
	s.rosters[channelID] = members
	return true
}

func indexOf(roster []domain.Member, memberID string) int {
	for i, m := range roster {
		if m.ID == memberID {
			return i
		}
	}
	return -1
}

func sameFields(a, b domain.Member) bool {
	if a.Username != b.Username {
		return false
	}
	switch {
	case a.Avatar == nil && b.Avatar == nil:
		return true
	case a.Avatar == nil || b.Avatar == nil:
		return false
	default:
		return *a.Avatar == *b.Avatar
	}
}

func rosterDiffers(cur, next []domain.Member) bool {
	if len(cur) != len(next) {
		return true
	}
	for i := range cur {
		if cur[i].ID != next[i].ID {
			return true
		}
	}
	return false
}
