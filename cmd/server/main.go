package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/jonboulle/clockwork"

	"github.com/Sehnya/unison-sub002/internal/adapter/redis"
	"github.com/Sehnya/unison-sub002/internal/adapter/websocket"
	"github.com/Sehnya/unison-sub002/internal/app"
	"github.com/Sehnya/unison-sub002/internal/config"
	"github.com/Sehnya/unison-sub002/internal/domain"
	"github.com/Sehnya/unison-sub002/internal/logging"
	"github.com/Sehnya/unison-sub002/internal/presence"
	"github.com/Sehnya/unison-sub002/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupNode(cfg *config.Config) *centrifuge.Node {
	node, err := websocket.NewNode(cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create realtime node", "error", err)
		os.Exit(1)
	}
	if err := node.Run(); err != nil {
		slog.Error("Failed to run realtime node", "error", err)
		os.Exit(1)
	}
	return node
}

func runGracefulShutdown(srv *server.Server, engine *presence.Engine, node *centrifuge.Node, stopWatcher context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopWatcher()
		engine.Stop()

		if err := node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Realtime node shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	node := setupNode(cfg)
	publisher := websocket.NewPublisher(node)

	localMember := domain.Member{
		ID:       cfg.LocalUserID,
		Username: cfg.LocalUsername,
	}
	if cfg.LocalAvatarURL != "" {
		avatar := cfg.LocalAvatarURL
		localMember.Avatar = &avatar
	}

	onRosterChange := func(channelID string, roster []domain.Member) {
		if err := publisher.PublishRoster(context.Background(), channelID, roster); err != nil {
			slog.Error("Failed to publish roster", "channel", channelID, "error", err)
		}
	}

	bus := redis.NewBus(redisClient)
	engine := presence.NewEngine(bus, localMember, clock, cfg.ReconcileInterval, onRosterChange)

	if len(cfg.VoiceChannels) > 0 {
		if err := engine.EnsureChannels(cfg.VoiceChannels...); err != nil {
			slog.Error("Failed to subscribe startup channels", "error", err)
		}
	}

	watcherCtx, stopWatcher := context.WithCancel(context.Background())
	watcher := app.NewChannelWatcher(redisClient.Underlying(), cfg.ChannelEventsTopic, engine)
	go watcher.Start(watcherCtx)

	wsHandler := centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		CheckOrigin: websocket.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()),
	})

	healthChecks := []server.HealthCheck{
		{Name: "redis", Check: redisClient.Ping},
	}

	srv := server.NewServer(cfg, engine, wsHandler, healthChecks)

	done := runGracefulShutdown(srv, engine, node, stopWatcher)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
