package presence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sehnya/unison-sub002/internal/domain"
)

// notifyRecorder captures roster change notifications from the engine.
type notifyRecorder struct {
	mu      sync.Mutex
	changes []rosterChange
}

type rosterChange struct {
	channelID string
	roster    []domain.Member
}

func (r *notifyRecorder) record(channelID string, roster []domain.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, rosterChange{channelID: channelID, roster: roster})
}

func (r *notifyRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func (r *notifyRecorder) last() (rosterChange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return rosterChange{}, false
	}
	return r.changes[len(r.changes)-1], true
}

func newTestEngine(t *testing.T, bus *fakeBus, clock clockwork.Clock) (*Engine, *notifyRecorder) {
	t.Helper()

	rec := &notifyRecorder{}
	e := NewEngine(bus, localUser, clock, DefaultReconcileInterval, rec.record)
	t.Cleanup(e.Stop)
	return e, rec
}

func TestEngine_EnsureChannelsSubscribesOnce(t *testing.T) {
	bus := newFakeBus()
	e, _ := newTestEngine(t, bus, clockwork.NewRealClock())

	require.NoError(t, e.EnsureChannels("v1", "v2"))
	require.NoError(t, e.EnsureChannels("v1", "v2"))

	assert.Equal(t, []string{"v1", "v2"}, e.TrackedChannels())
	assert.Equal(t, 1, bus.countCalls("subscribe:v1"))
	assert.Equal(t, 1, bus.countCalls("subscribe:v2"))
}

func TestEngine_SeedsInitialSnapshot(t *testing.T) {
	bus := newFakeBus()
	bus.setSnapshot("v1", domain.RawMember{ID: "u1"}, domain.RawMember{ID: "u2"})
	e, _ := newTestEngine(t, bus, clockwork.NewRealClock())

	require.NoError(t, e.EnsureChannels("v1"))

	assert.Equal(t, []string{"u1", "u2"}, rosterIDs(e.EffectiveRoster("v1")))
}

func TestEngine_EnterThenLeaveEmptiesRoster(t *testing.T) {
	bus := newFakeBus()
	e, _ := newTestEngine(t, bus, clockwork.NewRealClock())
	require.NoError(t, e.EnsureChannels("v1"))

	require.True(t, bus.emit("v1", event(domain.EventEnter, "u1")))
	assert.Equal(t, []string{"u1"}, rosterIDs(e.EffectiveRoster("v1")))

	require.True(t, bus.emit("v1", event(domain.EventLeave, "u1")))
	assert.Empty(t, e.EffectiveRoster("v1"))
}

func TestEngine_DuplicateEnterKeepsSingleEntry(t *testing.T) {
	bus := newFakeBus()
	e, _ := newTestEngine(t, bus, clockwork.NewRealClock())
	require.NoError(t, e.EnsureChannels("v1"))

	bus.emit("v1", event(domain.EventEnter, "u1"))
	bus.emit("v1", event(domain.EventEnter, "u1"))

	assert.Equal(t, []string{"u1"}, rosterIDs(e.EffectiveRoster("v1")))
}

func TestEngine_JoinVoiceOverlaysLocalUser(t *testing.T) {
	bus := newFakeBus()
	e, _ := newTestEngine(t, bus, clockwork.NewRealClock())
	require.NoError(t, e.EnsureChannels("v2"))

	require.NoError(t, e.JoinVoice("v2"))
	assert.Equal(t, []string{"u-local"}, rosterIDs(e.EffectiveRoster("v2")))

	// Once the bus reflects the local user, the overlay is superseded.
	bus.emit("v2", event(domain.EventEnter, "u-local"))
	assert.Equal(t, []string{"u-local"}, rosterIDs(e.EffectiveRoster("v2")))
}

func TestEngine_LeaveVoiceRemovesOverlay(t *testing.T) {
	bus := newFakeBus()
	e, _ := newTestEngine(t, bus, clockwork.NewRealClock())
	require.NoError(t, e.EnsureChannels("v2"))

	require.NoError(t, e.JoinVoice("v2"))
	require.NoError(t, e.LeaveVoice())

	assert.Empty(t, e.EffectiveRoster("v2"))
}

func TestEngine_JoinVoiceTriggersNotification(t *testing.T) {
	bus := newFakeBus()
	e, rec := newTestEngine(t, bus, clockwork.NewRealClock())
	require.NoError(t, e.EnsureChannels("v2"))
	before := rec.count()

	require.NoError(t, e.JoinVoice("v2"))

	require.Greater(t, rec.count(), before)
	change, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, "v2", change.channelID)
	assert.Equal(t, []string{"u-local"}, rosterIDs(change.roster))
}

func TestEngine_DropChannelStopsEventDelivery(t *testing.T) {
	bus := newFakeBus()
	e, rec := newTestEngine(t, bus, clockwork.NewRealClock())
	require.NoError(t, e.EnsureChannels("v1"))
	bus.emit("v1", event(domain.EventEnter, "u1"))

	require.NoError(t, e.DropChannel("v1"))

	assert.False(t, bus.emit("v1", event(domain.EventEnter, "u2")))
	assert.Empty(t, e.EffectiveRoster("v1"))
	assert.Empty(t, e.TrackedChannels())

	change, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, "v1", change.channelID)
	assert.Empty(t, change.roster)
}

func TestEngine_StopTearsDownEverything(t *testing.T) {
	bus := newFakeBus()
	rec := &notifyRecorder{}
	e := NewEngine(bus, localUser, clockwork.NewRealClock(), DefaultReconcileInterval, rec.record)
	require.NoError(t, e.EnsureChannels("v1", "v2"))

	e.Stop()

	assert.False(t, bus.emit("v1", event(domain.EventEnter, "u1")))
	assert.False(t, bus.emit("v2", event(domain.EventEnter, "u1")))
	assert.ErrorIs(t, e.EnsureChannels("v3"), domain.ErrEngineStopped)

	// Stop is safe to call again.
	e.Stop()
}

func TestEngine_ReconcileTickCorrectsDrift(t *testing.T) {
	bus := newFakeBus()
	clock := clockwork.NewFakeClock()
	e, _ := newTestEngine(t, bus, clock)
	clock.BlockUntil(2)

	require.NoError(t, e.EnsureChannels("v1"))

	// Membership changes on the bus without any event reaching us.
	bus.setSnapshot("v1", domain.RawMember{ID: "u1"}, domain.RawMember{ID: "u2"})
	clock.Advance(DefaultReconcileInterval)

	assert.Eventually(t, func() bool {
		roster := e.EffectiveRoster("v1")
		return len(roster) == 2 && roster[0].ID == "u1" && roster[1].ID == "u2"
	}, time.Second, 10*time.Millisecond)
}

func TestEngine_ReconcileFailureIsolatedPerChannel(t *testing.T) {
	bus := newFakeBus()
	bus.setSnapshot("v1", domain.RawMember{ID: "u1"})
	clock := clockwork.NewFakeClock()
	e, _ := newTestEngine(t, bus, clock)
	clock.BlockUntil(2)

	require.NoError(t, e.EnsureChannels("v1", "v2"))
	require.Equal(t, []string{"u1"}, rosterIDs(e.EffectiveRoster("v1")))

	bus.setSnapshotErr("v1", errors.New("fetch failed"))
	bus.setSnapshot("v2", domain.RawMember{ID: "u9"})
	clock.Advance(DefaultReconcileInterval)

	assert.Eventually(t, func() bool {
		roster := e.EffectiveRoster("v2")
		return len(roster) == 1 && roster[0].ID == "u9"
	}, time.Second, 10*time.Millisecond)

	// v1 keeps its last-known-good roster.
	assert.Equal(t, []string{"u1"}, rosterIDs(e.EffectiveRoster("v1")))
}

func TestEngine_ReconcileRetriesFailedSubscribe(t *testing.T) {
	bus := newFakeBus()
	bus.setSubscribeErr("v1", errors.New("transport down"))
	clock := clockwork.NewFakeClock()
	e, _ := newTestEngine(t, bus, clock)
	clock.BlockUntil(2)

	require.NoError(t, e.EnsureChannels("v1"))
	require.Empty(t, e.TrackedChannels())

	bus.setSubscribeErr("v1", nil)
	bus.setSnapshot("v1", domain.RawMember{ID: "u1"})
	clock.Advance(DefaultReconcileInterval)

	assert.Eventually(t, func() bool {
		return len(e.TrackedChannels()) == 1 && len(e.EffectiveRoster("v1")) == 1
	}, time.Second, 10*time.Millisecond)
}
