package room

import (
	"time"

	"github.com/kwizo/quizroom/internal/token"
)

// Spectator is a non-playing observer of a room (spec.md §3).
type Spectator struct {
	ID             string
	RoomPIN        string
	Nickname       string
	SocketID       string
	Token          token.Token
	DisconnectedAt *time.Time
	JoinedAt       time.Time
}

func (s *Spectator) IsConnected() bool {
	return s.SocketID != "" && s.DisconnectedAt == nil
}

// SpectatorSnapshot is an immutable view of a Spectator.
type SpectatorSnapshot struct {
	ID        string
	Nickname  string
	Connected bool
	JoinedAt  time.Time
}

func (s *Spectator) snapshot() SpectatorSnapshot {
	return SpectatorSnapshot{
		ID:        s.ID,
		Nickname:  s.Nickname,
		Connected: s.IsConnected(),
		JoinedAt:  s.JoinedAt,
	}
}
