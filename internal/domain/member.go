package domain

// Member is a normalized participant in a voice channel roster.
// Identity key is ID; a roster never holds two members with the same ID.
type Member struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar,omitempty"`
}

// RawMember is a presence payload as delivered by the bus, before
// normalization. Username and Avatar may be empty; JoinedAt (unix millis)
// carries arrival order in snapshots.
type RawMember struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	JoinedAt int64  `json:"joinedAt,omitempty"`
}

// LocalPresence describes the local user's identity and which voice
// channel they are currently connected to ("" when disconnected).
type LocalPresence struct {
	Member    Member
	ChannelID string
}
