package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/centrifuge"

	"github.com/Sehnya/unison-sub002/internal/domain"
	"github.com/Sehnya/unison-sub002/internal/metrics"
)

type rosterUpdate struct {
	ChannelID string          `json:"channelId"`
	Members   []domain.Member `json:"members"`
	Count     int             `json:"count"`
}

// Publisher pushes effective rosters to the realtime node. It implements
// domain.RosterPublisher.
type Publisher struct {
	node *centrifuge.Node
}

func NewPublisher(node *centrifuge.Node) *Publisher {
	return &Publisher{node: node}
}

// PublishRoster broadcasts a channel's effective roster to every client
// subscribed to its voice channel. A nil roster is published as an empty
// member list so renderers clear stale entries.
func (p *Publisher) PublishRoster(_ context.Context, channelID string, roster []domain.Member) error {
	if roster == nil {
		roster = []domain.Member{}
	}

	update := rosterUpdate{
		ChannelID: channelID,
		Members:   roster,
		Count:     len(roster),
	}
	data, err := json.Marshal(update)
	if err != nil {
		metrics.RosterPublishFailures.Inc()
		return fmt.Errorf("marshal roster update: %w", err)
	}

	channel := voiceChannelPrefix + channelID
	if _, err := p.node.Publish(channel, data); err != nil {
		metrics.RosterPublishFailures.Inc()
		return fmt.Errorf("publish to channel %s: %w", channel, err)
	}

	metrics.RosterPublishesTotal.Inc()
	return nil
}

var _ domain.RosterPublisher = (*Publisher)(nil)
