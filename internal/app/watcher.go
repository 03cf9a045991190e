// Package app wires runtime channel lifecycle events into the presence
// engine.
package app

import (
	"context"
	"encoding/json"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
)

const (
	channelCreated = "channel.created"
	channelDeleted = "channel.deleted"
)

// channelSet is the slice of the presence engine the watcher drives.
type channelSet interface {
	EnsureChannels(ids ...string) error
	DropChannel(id string) error
}

type channelEvent struct {
	Kind      string `json:"kind"`
	ChannelID string `json:"channelId"`
}

// ChannelWatcher listens on a shared pub/sub topic for voice channel
// lifecycle notifications and keeps the engine's tracked set in sync:
// created channels get subscribed, deleted ones dropped.
type ChannelWatcher struct {
	rdb      *goredis.Client
	topic    string
	channels channelSet
}

func NewChannelWatcher(rdb *goredis.Client, topic string, channels channelSet) *ChannelWatcher {
	return &ChannelWatcher{rdb: rdb, topic: topic, channels: channels}
}

// Start blocks consuming channel events until ctx is cancelled.
func (w *ChannelWatcher) Start(ctx context.Context) {
	pubsub := w.rdb.Subscribe(ctx, w.topic)
	defer func() { _ = pubsub.Close() }()

	slog.Info("Channel watcher started", "topic", w.topic)

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			w.handleEvent(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (w *ChannelWatcher) handleEvent(payload string) {
	var evt channelEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		slog.Warn("Ignoring malformed channel event", "error", err)
		return
	}
	if evt.ChannelID == "" {
		slog.Warn("Ignoring channel event without channel id", "kind", evt.Kind)
		return
	}

	switch evt.Kind {
	case channelCreated:
		if err := w.channels.EnsureChannels(evt.ChannelID); err != nil {
			slog.Error("Failed to subscribe created channel", "channel", evt.ChannelID, "error", err)
			return
		}
		slog.Info("Subscribed to created channel", "channel", evt.ChannelID)
	case channelDeleted:
		if err := w.channels.DropChannel(evt.ChannelID); err != nil {
			slog.Error("Failed to drop deleted channel", "channel", evt.ChannelID, "error", err)
			return
		}
		slog.Info("Dropped deleted channel", "channel", evt.ChannelID)
	default:
		slog.Warn("Ignoring unknown channel event kind", "kind", evt.Kind, "channel", evt.ChannelID)
	}
}
