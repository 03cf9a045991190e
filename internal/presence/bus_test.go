package presence

import (
	"context"
	"sync"

	"github.com/Sehnya/unison-sub002/internal/domain"
)

// fakeBus is an in-memory PresenceBus recording call order, so tests can
// assert subscribe-before-snapshot sequencing and handle uniqueness.
type fakeBus struct {
	mu           sync.Mutex
	delivers     map[string]func(domain.PresenceEvent)
	snapshots    map[string][]domain.RawMember
	snapshotErr  map[string]error
	subscribeErr map[string]error
	calls        []string
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		delivers:     make(map[string]func(domain.PresenceEvent)),
		snapshots:    make(map[string][]domain.RawMember),
		snapshotErr:  make(map[string]error),
		subscribeErr: make(map[string]error),
	}
}

func (b *fakeBus) Subscribe(_ context.Context, topic string, deliver func(domain.PresenceEvent)) (domain.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, "subscribe:"+topic)
	if err := b.subscribeErr[topic]; err != nil {
		return nil, err
	}
	b.delivers[topic] = deliver
	return &fakeSubscription{bus: b, topic: topic}, nil
}

func (b *fakeBus) Snapshot(_ context.Context, topic string) ([]domain.RawMember, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, "snapshot:"+topic)
	if err := b.snapshotErr[topic]; err != nil {
		return nil, err
	}
	return b.snapshots[topic], nil
}

// emit delivers an event through the topic's callback, reporting whether
// a live subscription existed.
func (b *fakeBus) emit(topic string, evt domain.PresenceEvent) bool {
	b.mu.Lock()
	deliver := b.delivers[topic]
	b.mu.Unlock()

	if deliver == nil {
		return false
	}
	deliver(evt)
	return true
}

func (b *fakeBus) setSnapshot(topic string, members ...domain.RawMember) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[topic] = members
}

func (b *fakeBus) setSnapshotErr(topic string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.snapshotErr, topic)
		return
	}
	b.snapshotErr[topic] = err
}

func (b *fakeBus) setSubscribeErr(topic string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.subscribeErr, topic)
		return
	}
	b.subscribeErr[topic] = err
}

func (b *fakeBus) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBus) countCalls(call string) int {
	n := 0
	for _, c := range b.callLog() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeSubscription struct {
	bus   *fakeBus
	topic string
}

func (s *fakeSubscription) Unsubscribe(context.Context) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.delivers, s.topic)
	s.bus.calls = append(s.bus.calls, "unsubscribe:"+s.topic)
	return nil
}
