package server

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/Sehnya/unison-sub002/internal/domain"
	apperrors "github.com/Sehnya/unison-sub002/internal/errors"
)

type channelsResponse struct {
	Channels []string `json:"channels"`
}

type replaceChannelsRequest struct {
	Channels []string `json:"channels"`
}

type participantsResponse struct {
	ChannelID string          `json:"channelId"`
	Members   []domain.Member `json:"members"`
	Count     int             `json:"count"`
}

type voiceJoinRequest struct {
	ChannelID string `json:"channelId"`
}

func (s *Server) handleListChannels(c echo.Context) error {
	channels := s.presence.TrackedChannels()
	if channels == nil {
		channels = []string{}
	}
	if err := c.JSON(http.StatusOK, channelsResponse{Channels: channels}); err != nil {
		return fmt.Errorf("failed to write channels response: %w", err)
	}
	return nil
}

// handleReplaceChannels swaps the tracked channel set: channels absent from
// the new list are dropped, new ones subscribed.
func (s *Server) handleReplaceChannels(c echo.Context) error {
	var req replaceChannelsRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	for _, id := range req.Channels {
		if id == "" {
			return apperrors.ValidationError("channel id must not be empty")
		}
	}

	for _, id := range s.presence.TrackedChannels() {
		if !slices.Contains(req.Channels, id) {
			if err := s.presence.DropChannel(id); err != nil {
				return apperrors.InternalError("failed to drop channel", err).WithContext("channel_id", id)
			}
		}
	}

	if len(req.Channels) > 0 {
		if err := s.presence.EnsureChannels(req.Channels...); err != nil {
			return apperrors.InternalError("failed to subscribe channels", err)
		}
	}

	return s.handleListChannels(c)
}

func (s *Server) handleParticipants(c echo.Context) error {
	channelID := c.Param("id")
	if !slices.Contains(s.presence.TrackedChannels(), channelID) {
		return apperrors.NotFoundError("channel not tracked").WithContext("channel_id", channelID)
	}

	roster := s.presence.EffectiveRoster(channelID)
	if roster == nil {
		roster = []domain.Member{}
	}

	resp := participantsResponse{
		ChannelID: channelID,
		Members:   roster,
		Count:     len(roster),
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write participants response: %w", err)
	}
	return nil
}

// handleVoiceJoin connects the local user to a voice channel. The channel
// is subscribed on demand so its roster is available immediately.
func (s *Server) handleVoiceJoin(c echo.Context) error {
	var req voiceJoinRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.ChannelID == "" {
		return apperrors.ValidationError("channelId is required")
	}

	if err := s.presence.EnsureChannels(req.ChannelID); err != nil {
		return apperrors.InternalError("failed to subscribe channel", err).WithContext("channel_id", req.ChannelID)
	}
	if err := s.presence.JoinVoice(req.ChannelID); err != nil {
		return apperrors.InternalError("failed to join voice", err).WithContext("channel_id", req.ChannelID)
	}

	return s.respondConnectionState(c, req.ChannelID)
}

func (s *Server) handleVoiceLeave(c echo.Context) error {
	if err := s.presence.LeaveVoice(); err != nil {
		return apperrors.InternalError("failed to leave voice", err)
	}
	return s.respondConnectionState(c, "")
}

func (s *Server) respondConnectionState(c echo.Context, channelID string) error {
	resp := map[string]any{"connected": channelID != ""}
	if channelID != "" {
		resp["channelId"] = channelID
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to write voice response: %w", err)
	}
	return nil
}
