package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sehnya/unison-sub002/internal/domain"
)

func event(kind domain.EventKind, id string) domain.PresenceEvent {
	return domain.PresenceEvent{Kind: kind, Member: domain.RawMember{ID: id}}
}

func TestHandler_EnterAddsMember(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	assert.True(t, h.Apply("v1", event(domain.EventEnter, "u1")))
	assert.Equal(t, []string{"u1"}, rosterIDs(s.Roster("v1")))
}

func TestHandler_EnterIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	require.True(t, h.Apply("v1", event(domain.EventEnter, "u1")))
	assert.False(t, h.Apply("v1", event(domain.EventEnter, "u1")))
	assert.Len(t, s.Roster("v1"), 1)
}

func TestHandler_PresentBehavesLikeEnter(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	assert.True(t, h.Apply("v1", event(domain.EventPresent, "u1")))
	assert.False(t, h.Apply("v1", event(domain.EventEnter, "u1")))
	assert.Len(t, s.Roster("v1"), 1)
}

func TestHandler_UpdateReplacesFieldsInPlace(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	h.Apply("v1", event(domain.EventEnter, "u1"))
	h.Apply("v1", event(domain.EventEnter, "u2"))

	changed := h.Apply("v1", domain.PresenceEvent{
		Kind:   domain.EventUpdate,
		Member: domain.RawMember{ID: "u1", Username: "renamed", Avatar: "https://cdn/new.png"},
	})

	assert.True(t, changed)
	roster := s.Roster("v1")
	assert.Equal(t, []string{"u1", "u2"}, rosterIDs(roster))
	assert.Equal(t, "renamed", roster[0].Username)
	require.NotNil(t, roster[0].Avatar)
	assert.Equal(t, "https://cdn/new.png", *roster[0].Avatar)
}

func TestHandler_UpdateBeforeEnterActsAsEnter(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	assert.True(t, h.Apply("v1", event(domain.EventUpdate, "u1")))
	assert.Equal(t, []string{"u1"}, rosterIDs(s.Roster("v1")))
}

func TestHandler_EnterThenLeaveEmptiesRoster(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	h.Apply("v1", event(domain.EventEnter, "u1"))
	assert.True(t, h.Apply("v1", event(domain.EventLeave, "u1")))
	assert.Empty(t, s.Roster("v1"))
}

func TestHandler_LeaveUnknownIsNoOp(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	assert.False(t, h.Apply("v1", event(domain.EventLeave, "ghost")))
}

func TestHandler_MalformedEventIsSwallowed(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	h.Apply("v1", event(domain.EventEnter, "u1"))

	// No id: logged, dropped, and the roster is untouched.
	assert.False(t, h.Apply("v1", domain.PresenceEvent{Kind: domain.EventEnter}))
	assert.Equal(t, []string{"u1"}, rosterIDs(s.Roster("v1")))

	// Later events still apply.
	assert.True(t, h.Apply("v1", event(domain.EventEnter, "u2")))
}

func TestHandler_UnknownKindIsSwallowed(t *testing.T) {
	s := NewStore()
	s.Create("v1")
	h := NewHandler(s)

	assert.False(t, h.Apply("v1", domain.PresenceEvent{Kind: "mystery", Member: domain.RawMember{ID: "u1"}}))
	assert.Empty(t, s.Roster("v1"))
}
