package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Sehnya/unison-sub002/internal/correlation"
	"github.com/Sehnya/unison-sub002/internal/domain"
	"github.com/Sehnya/unison-sub002/internal/metrics"
)

const (
	commandTimeout  = 5 * time.Second
	snapshotTimeout = 2 * time.Second
	teardownTimeout = 5 * time.Second
)

// engineCmd is the command interface for the Engine actor.
type engineCmd interface{ isEngineCmd() }

type baseEngineCmd struct{}

func (baseEngineCmd) isEngineCmd() {}

type ensureChannelsCmd struct {
	baseEngineCmd
	ids  []string
	done chan struct{}
}

type dropChannelCmd struct {
	baseEngineCmd
	id   string
	done chan struct{}
}

type presenceEventCmd struct {
	baseEngineCmd
	channelID string
	evt       domain.PresenceEvent
}

type setLocalChannelCmd struct {
	baseEngineCmd
	channelID string
	done      chan struct{}
}

type effectiveRosterCmd struct {
	baseEngineCmd
	channelID string
	reply     chan []domain.Member
}

type trackedChannelsCmd struct {
	baseEngineCmd
	reply chan []string
}

type stopCmd struct {
	baseEngineCmd
}

// Engine owns all voice-presence state: the roster store, the
// subscription registry, the reconciler, and the local user's optimistic
// presence. A single goroutine consumes commands from bus callbacks,
// callers, and the reconcile ticker, so no locking is needed around the
// store. Construct with NewEngine, dispose with Stop.
type Engine struct {
	cmdCh             chan engineCmd
	clock             clockwork.Clock
	store             *Store
	handler           *Handler
	registry          *Registry
	reconciler        *Reconciler
	local             domain.LocalPresence
	desired           map[string]struct{}
	onRosterChange    func(channelID string, roster []domain.Member)
	reconcileInterval time.Duration
	done              chan struct{}
}

// NewEngine creates and starts a presence engine. localMember is the
// local user's identity, used only for the read-side overlay.
// onRosterChange is invoked from the engine goroutine with the effective
// roster each time a channel's roster mutates or the local user's channel
// changes; it may be nil.
func NewEngine(
	bus domain.PresenceBus,
	localMember domain.Member,
	clock clockwork.Clock,
	reconcileInterval time.Duration,
	onRosterChange func(channelID string, roster []domain.Member),
) *Engine {
	store := NewStore()
	e := &Engine{
		cmdCh:             make(chan engineCmd, 256),
		clock:             clock,
		store:             store,
		handler:           NewHandler(store),
		registry:          NewRegistry(bus),
		reconciler:        NewReconciler(bus, store),
		local:             domain.LocalPresence{Member: localMember},
		desired:           make(map[string]struct{}),
		onRosterChange:    onRosterChange,
		reconcileInterval: reconcileInterval,
		done:              make(chan struct{}),
	}
	go e.run()
	return e
}

// EnsureChannels subscribes to every listed channel not already tracked.
// Calling it again with the same ids is a no-op.
func (e *Engine) EnsureChannels(ids ...string) error {
	done := make(chan struct{})
	return e.send(ensureChannelsCmd{ids: ids, done: done}, done)
}

// DropChannel tears down one channel's subscription and roster.
func (e *Engine) DropChannel(id string) error {
	done := make(chan struct{})
	return e.send(dropChannelCmd{id: id, done: done}, done)
}

// JoinVoice marks the local user as connected to the given channel.
func (e *Engine) JoinVoice(channelID string) error {
	done := make(chan struct{})
	return e.send(setLocalChannelCmd{channelID: channelID, done: done}, done)
}

// LeaveVoice marks the local user as disconnected from voice.
func (e *Engine) LeaveVoice() error {
	done := make(chan struct{})
	return e.send(setLocalChannelCmd{channelID: "", done: done}, done)
}

// EffectiveRoster returns the channel's roster with the local-user
// overlay applied. Returns nil for unknown channels or when the engine is
// stopped.
func (e *Engine) EffectiveRoster(channelID string) []domain.Member {
	reply := make(chan []domain.Member, 1)
	select {
	case e.cmdCh <- effectiveRosterCmd{channelID: channelID, reply: reply}:
	case <-e.done:
		return nil
	}

	timer := e.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case roster := <-reply:
		return roster
	case <-e.done:
		return nil
	case <-timer.Chan():
		slog.Warn("EffectiveRoster timed out", "channel", channelID, "timeout", commandTimeout)
		return nil
	}
}

// TrackedChannels returns the ids of all channels with a live
// subscription.
func (e *Engine) TrackedChannels() []string {
	reply := make(chan []string, 1)
	select {
	case e.cmdCh <- trackedChannelsCmd{reply: reply}:
	case <-e.done:
		return nil
	}

	timer := e.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case ids := <-reply:
		return ids
	case <-e.done:
		return nil
	case <-timer.Chan():
		return nil
	}
}

// Stop tears down every subscription, stops the reconcile ticker, and
// shuts the engine goroutine down. Blocks until teardown completes.
func (e *Engine) Stop() {
	select {
	case e.cmdCh <- stopCmd{}:
	case <-e.done:
		return
	}
	<-e.done
}

func (e *Engine) send(cmd engineCmd, done chan struct{}) error {
	select {
	case e.cmdCh <- cmd:
	case <-e.done:
		return domain.ErrEngineStopped
	}

	timer := e.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-e.done:
		return domain.ErrEngineStopped
	case <-timer.Chan():
		return fmt.Errorf("engine command timed out after %v", commandTimeout)
	}
}

// deliver enqueues a bus event for the engine goroutine. It runs on bus
// reader goroutines and must never block; a full queue drops the event,
// which the next reconcile tick corrects.
func (e *Engine) deliver(channelID string, evt domain.PresenceEvent) {
	select {
	case e.cmdCh <- presenceEventCmd{channelID: channelID, evt: evt}:
	default:
		metrics.PresenceEventsDropped.Inc()
		slog.Warn("Engine queue full, dropping presence event",
			"channel", channelID,
			"kind", evt.Kind)
	}
}

func (e *Engine) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Presence engine panic recovered", "panic", r)
			e.teardown()
			close(e.done)
		}
	}()

	ticker := e.clock.NewTicker(e.reconcileInterval)
	defer ticker.Stop()

	depthTicker := e.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			metrics.EngineCommandChannelDepth.Set(float64(len(e.cmdCh)))

		case cmd := <-e.cmdCh:
			switch c := cmd.(type) {
			case ensureChannelsCmd:
				e.handleEnsure(c.ids)
				close(c.done)
			case dropChannelCmd:
				e.handleDrop(c.id)
				close(c.done)
			case presenceEventCmd:
				e.handleEvent(c.channelID, c.evt)
			case setLocalChannelCmd:
				e.handleSetLocalChannel(c.channelID)
				close(c.done)
			case effectiveRosterCmd:
				c.reply <- EffectiveRoster(e.store.Roster(c.channelID), e.local, c.channelID)
			case trackedChannelsCmd:
				c.reply <- e.registry.Subscribed()
			case stopCmd:
				e.teardown()
				close(e.done)
				return
			default:
				slog.Warn("Engine received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}

		case <-ticker.Chan():
			e.handleReconcileTick()
		}
	}
}

func (e *Engine) handleEnsure(ids []string) {
	for _, id := range ids {
		e.desired[id] = struct{}{}
	}
	e.registry.EnsureSubscribed(ids, e.deliver, e.seedSnapshot)
	for _, id := range ids {
		if e.registry.Has(id) {
			e.store.Create(id)
		}
	}
}

// seedSnapshot ingests the initial snapshot taken right after subscribing.
func (e *Engine) seedSnapshot(channelID string, raws []domain.RawMember) {
	if e.store.Replace(channelID, normalizeRoster(raws)) {
		e.notify(channelID)
	}
}

func (e *Engine) handleDrop(id string) {
	delete(e.desired, id)
	if !e.registry.Has(id) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	e.registry.Teardown(ctx, id)
	cancel()

	e.store.Drop(id)
	metrics.RosterSize.DeleteLabelValues(id)
	if e.onRosterChange != nil {
		e.onRosterChange(id, nil)
	}
	slog.Info("Voice channel dropped", "channel", id)
}

func (e *Engine) handleEvent(channelID string, evt domain.PresenceEvent) {
	// Events queued before a teardown must not resurrect the roster.
	if !e.registry.Has(channelID) {
		return
	}
	if e.handler.Apply(channelID, evt) {
		e.notify(channelID)
	}
}

func (e *Engine) handleSetLocalChannel(channelID string) {
	previous := e.local.ChannelID
	if previous == channelID {
		return
	}
	e.local.ChannelID = channelID

	// Both the channel left and the channel joined need their effective
	// rosters recomputed.
	if previous != "" {
		e.notify(previous)
	}
	if channelID != "" {
		e.notify(channelID)
	}
}

func (e *Engine) handleReconcileTick() {
	metrics.ReconcileRunsTotal.Inc()
	ctx := correlation.WithID(context.Background(), correlation.NewID())

	// Re-attempt subscriptions that failed earlier; EnsureSubscribed
	// skips channels that already hold a handle.
	missing := make([]string, 0)
	for id := range e.desired {
		if !e.registry.Has(id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		e.handleEnsure(missing)
	}

	for _, id := range e.registry.Subscribed() {
		fetchCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		changed, err := e.reconciler.ReconcileChannel(fetchCtx, id)
		cancel()

		if err != nil {
			// Keep last-known-good; other channels still reconcile.
			slog.WarnContext(ctx, "Reconcile snapshot failed", "channel", id, "error", err)
			continue
		}
		if changed {
			slog.DebugContext(ctx, "Reconcile corrected roster drift", "channel", id)
			e.notify(id)
		}
	}
}

// notify publishes the effective roster for a channel to the change
// callback and updates the roster size gauge.
func (e *Engine) notify(channelID string) {
	roster := EffectiveRoster(e.store.Roster(channelID), e.local, channelID)
	metrics.RosterSize.WithLabelValues(channelID).Set(float64(len(roster)))
	if e.onRosterChange != nil {
		e.onRosterChange(channelID, roster)
	}
}

func (e *Engine) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	e.registry.TeardownAll(ctx)
	slog.Info("Presence engine stopped", "channels", len(e.desired))
}
