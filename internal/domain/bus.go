package domain

import "context"

// EventKind is the presence event type emitted by the bus.
type EventKind string

const (
	EventEnter   EventKind = "enter"
	EventPresent EventKind = "present"
	EventUpdate  EventKind = "update"
	EventLeave   EventKind = "leave"
)

// PresenceEvent is a single presence notification for one topic.
type PresenceEvent struct {
	Kind   EventKind `json:"kind"`
	Member RawMember `json:"member"`
}

// Subscription is a live attachment to one presence topic. Unsubscribe
// detaches the delivery callback synchronously; no events are delivered
// after it returns.
type Subscription interface {
	Unsubscribe(ctx context.Context) error
}

// PresenceBus is the presence side of the pub/sub collaborator.
// Subscribe attaches a delivery callback to a topic; Snapshot fetches the
// full authoritative member list for a topic, ordered by arrival.
type PresenceBus interface {
	Subscribe(ctx context.Context, topic string, deliver func(PresenceEvent)) (Subscription, error)
	Snapshot(ctx context.Context, topic string) ([]RawMember, error)
}

// RosterPublisher pushes roster change notifications to consumers
// (the rendering layer).
type RosterPublisher interface {
	PublishRoster(ctx context.Context, channelID string, roster []Member) error
}
