package room

import (
	"time"

	"github.com/kwizo/quizroom/internal/token"
)

// Player is a parent-owned row inside Room.players. It carries only the
// PIN string, never a pointer back to its Room (spec.md §9: "Implement
// as parent-owned composition").
type Player struct {
	ID                 string
	RoomPIN            string
	Nickname           string
	NormalizedNickname string
	SocketID           string // empty when disconnected
	Token              token.Token
	Score              int
	Streak             int
	DisconnectedAt     *time.Time
	JoinedAt           time.Time

	// LastCorrectSubmittedAt breaks leaderboard ties deterministically
	// (spec.md §4.6: "ties broken by (negative lastCorrectSubmittedAt, playerId)").
	LastCorrectSubmittedAt time.Time
}

// IsConnected reports whether the player currently has a live socket.
func (p *Player) IsConnected() bool {
	return p.SocketID != "" && p.DisconnectedAt == nil
}

// Snapshot is an immutable view of a Player safe to hand to callers
// outside the Room's lock.
type Snapshot struct {
	ID                 string
	Nickname           string
	NormalizedNickname string
	Score              int
	Streak             int
	Connected          bool
	JoinedAt           time.Time
}

func (p *Player) snapshot() Snapshot {
	return Snapshot{
		ID:                 p.ID,
		Nickname:           p.Nickname,
		NormalizedNickname: p.NormalizedNickname,
		Score:              p.Score,
		Streak:             p.Streak,
		Connected:          p.IsConnected(),
		JoinedAt:           p.JoinedAt,
	}
}
