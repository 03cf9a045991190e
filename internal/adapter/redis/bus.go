package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Sehnya/unison-sub002/internal/domain"
)

func eventsChannel(topic string) string {
	return "presence:events:" + topic
}

func rosterKey(topic string) string {
	return "presence:roster:" + topic
}

// Bus implements domain.PresenceBus on Redis: presence events arrive via
// Pub/Sub, snapshots are read from a roster hash maintained by the
// publishing side.
type Bus struct {
	rdb *goredis.Client
}

// NewBus creates a presence bus on top of an existing client.
func NewBus(client *Client) *Bus {
	return &Bus{rdb: client.Underlying()}
}

// Subscribe attaches deliver to the topic's event channel. It returns only
// after the server confirms the subscription, so a snapshot taken afterwards
// cannot miss events. Malformed payloads are logged and skipped.
func (b *Bus) Subscribe(ctx context.Context, topic string, deliver func(domain.PresenceEvent)) (domain.Subscription, error) {
	sub := b.rdb.Subscribe(ctx, eventsChannel(topic))

	// Receive blocks until the SUBSCRIBE confirmation arrives.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", eventsChannel(topic), err)
	}

	s := &busSubscription{sub: sub}

	go func() {
		for msg := range sub.Channel() {
			evt, err := decodePresenceEvent([]byte(msg.Payload))
			if err != nil {
				slog.Warn("Dropping malformed presence payload",
					"topic", topic,
					"error", err)
				continue
			}
			s.deliver(evt, deliver)
		}
	}()

	return s, nil
}

// Snapshot returns the topic's full roster, ordered by arrival time.
// Hash entries that fail to decode are skipped.
func (b *Bus) Snapshot(ctx context.Context, topic string) ([]domain.RawMember, error) {
	entries, err := b.rdb.HGetAll(ctx, rosterKey(topic)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster snapshot for %s: %w", topic, err)
	}
	return decodeSnapshot(topic, entries), nil
}

// busSubscription guards delivery with a mutex so that Unsubscribe can
// guarantee no callback runs after it returns.
type busSubscription struct {
	sub    *goredis.PubSub
	mu     sync.Mutex
	closed bool
}

func (s *busSubscription) deliver(evt domain.PresenceEvent, fn func(domain.PresenceEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fn(evt)
}

func (s *busSubscription) Unsubscribe(_ context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.sub.Close()
}

func decodePresenceEvent(payload []byte) (domain.PresenceEvent, error) {
	var evt domain.PresenceEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return domain.PresenceEvent{}, fmt.Errorf("failed to unmarshal presence event: %w", err)
	}
	if evt.Kind == "" {
		return domain.PresenceEvent{}, fmt.Errorf("presence event has no kind")
	}
	return evt, nil
}

func decodeSnapshot(topic string, entries map[string]string) []domain.RawMember {
	raws := make([]domain.RawMember, 0, len(entries))
	for id, payload := range entries {
		var raw domain.RawMember
		if err := json.Unmarshal([]byte(payload), &raw); err != nil {
			slog.Warn("Skipping malformed roster entry",
				"topic", topic,
				"member", id,
				"error", err)
			continue
		}
		if raw.ID == "" {
			raw.ID = id
		}
		raws = append(raws, raw)
	}

	// Hash iteration order is arbitrary; arrival time restores roster order.
	sort.Slice(raws, func(i, j int) bool {
		if raws[i].JoinedAt != raws[j].JoinedAt {
			return raws[i].JoinedAt < raws[j].JoinedAt
		}
		return raws[i].ID < raws[j].ID
	})
	return raws
}
