// Package websocket exposes effective voice rosters to browser clients
// through a Centrifuge realtime node. Each voice channel maps to the
// Centrifuge channel "voice:{channelID}"; clients connect anonymously and
// subscribe to the channels they render.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"

	"github.com/Sehnya/unison-sub002/internal/metrics"
)

const voiceChannelPrefix = "voice:"

// NewNode creates a Centrifuge node wired to slog and the connection
// lifecycle handlers.
func NewNode(logLevel string) (*centrifuge.Node, error) {
	conf := centrifuge.Config{LogLevel: parseCentrifugeLogLevel(logLevel), LogHandler: slogHandler}
	node, err := centrifuge.New(conf)
	if err != nil {
		return nil, fmt.Errorf("create centrifuge node: %w", err)
	}

	node.OnConnecting(onConnecting)
	node.OnConnect(onConnect)

	return node, nil
}

// onConnecting assigns anonymous credentials when the transport carries
// none. Roster data is not sensitive to the connected identity, so no
// authentication happens here.
func onConnecting(ctx context.Context, _ centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	if cred, ok := centrifuge.GetCredentials(ctx); ok && cred.UserID != "" {
		return centrifuge.ConnectReply{}, nil
	}

	return centrifuge.ConnectReply{
		Credentials: &centrifuge.Credentials{UserID: "anon-" + uuid.NewString()},
	}, nil
}

func onConnect(client *centrifuge.Client) {
	slog.Debug("Client connected", "client_id", client.ID(), "user_id", client.UserID())
	metrics.WebSocketActiveConnections.Inc()

	client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
		if !strings.HasPrefix(e.Channel, voiceChannelPrefix) {
			cb(centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied)
			return
		}
		cb(centrifuge.SubscribeReply{}, nil)
	})

	client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
		slog.Debug("Client disconnected", "client_id", client.ID(), "reason", e.Reason)
		metrics.WebSocketActiveConnections.Dec()
	})
}

func slogHandler(entry centrifuge.LogEntry) {
	attrs := make([]any, 0, len(entry.Fields)*2)
	for k, v := range entry.Fields {
		attrs = append(attrs, k, v)
	}
	switch entry.Level {
	case centrifuge.LogLevelDebug:
		slog.Debug(entry.Message, attrs...)
	case centrifuge.LogLevelInfo:
		slog.Info(entry.Message, attrs...)
	case centrifuge.LogLevelWarn:
		slog.Warn(entry.Message, attrs...)
	case centrifuge.LogLevelError:
		slog.Error(entry.Message, attrs...)
	case centrifuge.LogLevelTrace:
		slog.Debug(entry.Message, attrs...)
	case centrifuge.LogLevelNone:
		// EMPTY
	}
}

func parseCentrifugeLogLevel(level string) centrifuge.LogLevel {
	switch level {
	case "debug":
		return centrifuge.LogLevelDebug
	case "warn":
		return centrifuge.LogLevelWarn
	case "error":
		return centrifuge.LogLevelError
	default:
		return centrifuge.LogLevelInfo
	}
}
