package server

import (
	"slices"
	"testing"

	"github.com/Sehnya/unison-sub002/internal/config"
	"github.com/Sehnya/unison-sub002/internal/domain"
)

// stubPresence is an in-memory presenceService for handler tests.
type stubPresence struct {
	tracked      []string
	rosters      map[string][]domain.Member
	localChannel string

	ensureErr error
	joinErr   error
}

func newStubPresence() *stubPresence {
	return &stubPresence{rosters: make(map[string][]domain.Member)}
}

func (s *stubPresence) EnsureChannels(ids ...string) error {
	if s.ensureErr != nil {
		return s.ensureErr
	}
	for _, id := range ids {
		if !slices.Contains(s.tracked, id) {
			s.tracked = append(s.tracked, id)
		}
	}
	return nil
}

func (s *stubPresence) DropChannel(id string) error {
	s.tracked = slices.DeleteFunc(s.tracked, func(t string) bool { return t == id })
	delete(s.rosters, id)
	return nil
}

func (s *stubPresence) JoinVoice(channelID string) error {
	if s.joinErr != nil {
		return s.joinErr
	}
	s.localChannel = channelID
	return nil
}

func (s *stubPresence) LeaveVoice() error {
	s.localChannel = ""
	return nil
}

func (s *stubPresence) EffectiveRoster(channelID string) []domain.Member {
	return s.rosters[channelID]
}

func (s *stubPresence) TrackedChannels() []string {
	return slices.Clone(s.tracked)
}

type serverOption func(*Server)

func withHealthChecks(checks ...HealthCheck) serverOption {
	return func(s *Server) { s.healthChecks = checks }
}

func newTestServer(t *testing.T, presence presenceService, opts ...serverOption) *Server {
	t.Helper()

	cfg := &config.Config{AppEnv: "test", Port: "8080"}
	srv := NewServer(cfg, presence, nil, nil)
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}
