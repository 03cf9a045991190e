package domain

import "errors"

var (
	ErrChannelNotTracked = errors.New("channel not tracked")
	ErrEngineStopped     = errors.New("engine stopped")
	ErrEmptyMemberID     = errors.New("presence member has empty id")
)
