// Package presence implements the voice-presence synchronization engine.
//
// The engine tracks, for a dynamic set of voice channels, which users are
// currently connected. It merges two sources: event-driven notifications
// from the presence bus (enter/present/update/leave) and periodic
// authoritative snapshots that correct for missed or reordered events.
// All mutable state is owned by a single engine goroutine; callers and
// bus callbacks communicate with it through a command channel.
package presence
