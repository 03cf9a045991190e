// Package config loads and validates environment configuration.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8080"`
	RedisURL  string `env:"REDIS_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Identity of the local user, used for the optimistic roster overlay.
	LocalUserID    string `env:"LOCAL_USER_ID"`
	LocalUsername  string `env:"LOCAL_USERNAME"`
	LocalAvatarURL string `env:"LOCAL_AVATAR_URL"`

	// Voice channels to subscribe to at startup. The set changes at
	// runtime via the channel events feed and the HTTP API.
	VoiceChannels []string `env:"VOICE_CHANNELS"`

	// ReconcileInterval bounds presence staleness: any drift from missed
	// or reordered events is corrected within one interval.
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" default:"5s"`

	// ChannelEventsTopic is the shared pub/sub topic carrying
	// channel.created / channel.deleted notifications.
	ChannelEventsTopic string `env:"CHANNEL_EVENTS_TOPIC" default:"channels:events"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"REDIS_URL":      cfg.RedisURL,
		"LOCAL_USER_ID":  cfg.LocalUserID,
		"LOCAL_USERNAME": cfg.LocalUsername,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.ReconcileInterval < time.Second {
		return fmt.Errorf("RECONCILE_INTERVAL must be at least 1s, got %s", cfg.ReconcileInterval)
	}

	return nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
