package room

import (
	"time"

	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/token"
)

// DTO is a flat, JSON-friendly snapshot of a Room's entire state,
// used by repository implementations that persist rooms outside
// process memory (e.g. a Redis-backed store, spec.md §1 Non-goals:
// "a Room repository interface is specified so a distributed backing
// store can be substituted"). It carries every field Export/Restore
// round-trip, including fields unexported on Room itself.
type DTO struct {
	ID     string
	PIN    pin.PIN
	QuizID string

	HostID             string
	HostToken          token.Token
	HostSocketID       string
	HostDisconnectedAt *time.Time

	State          State
	PrePausedState State

	CurrentQuestionIndex int
	TotalQuestions       int

	Players    []PlayerDTO
	Spectators []SpectatorDTO
	Banned     []string

	QuestionStartedAt  time.Time
	Answers            []Answer
	CorrectAnswerIndex int

	PausedAt           time.Time
	AccumulatedPauseMs int64

	CreatedAt time.Time
}

// PlayerDTO mirrors Player for serialization.
type PlayerDTO struct {
	ID                     string
	Nickname               string
	NormalizedNickname     string
	SocketID               string
	Token                  token.Token
	Score                  int
	Streak                 int
	DisconnectedAt         *time.Time
	JoinedAt               time.Time
	LastCorrectSubmittedAt time.Time
}

// SpectatorDTO mirrors Spectator for serialization.
type SpectatorDTO struct {
	ID             string
	Nickname       string
	SocketID       string
	Token          token.Token
	DisconnectedAt *time.Time
	JoinedAt       time.Time
}

// Export snapshots the room for persistence. Caller must hold at
// least RLock.
func (r *Room) Export() DTO {
	dto := DTO{
		ID:                   r.ID,
		PIN:                  r.PIN,
		QuizID:               r.QuizID,
		HostID:               r.HostID,
		HostToken:            r.HostToken,
		HostSocketID:         r.HostSocketID,
		HostDisconnectedAt:   r.HostDisconnectedAt,
		State:                r.state,
		PrePausedState:       r.prePausedState,
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		TotalQuestions:       r.TotalQuestions,
		Banned:               r.BannedNicknames(),
		QuestionStartedAt:    r.QuestionStartedAt,
		CorrectAnswerIndex:   r.CorrectAnswerIndex,
		PausedAt:             r.PausedAt,
		AccumulatedPauseMs:   r.AccumulatedPauseMs,
		CreatedAt:            r.CreatedAt,
	}
	for id, p := range r.players {
		dto.Players = append(dto.Players, PlayerDTO{
			ID: id, Nickname: p.Nickname, NormalizedNickname: p.NormalizedNickname,
			SocketID: p.SocketID, Token: p.Token, Score: p.Score, Streak: p.Streak,
			DisconnectedAt: p.DisconnectedAt, JoinedAt: p.JoinedAt,
			LastCorrectSubmittedAt: p.LastCorrectSubmittedAt,
		})
	}
	for id, s := range r.spectators {
		dto.Spectators = append(dto.Spectators, SpectatorDTO{
			ID: id, Nickname: s.Nickname, SocketID: s.SocketID, Token: s.Token,
			DisconnectedAt: s.DisconnectedAt, JoinedAt: s.JoinedAt,
		})
	}
	for _, a := range r.answers {
		dto.Answers = append(dto.Answers, a)
	}
	return dto
}

// Restore rebuilds a Room from a snapshot previously produced by Export.
func Restore(dto DTO) *Room {
	r := &Room{
		ID:                   dto.ID,
		PIN:                  dto.PIN,
		QuizID:               dto.QuizID,
		HostID:               dto.HostID,
		HostToken:            dto.HostToken,
		HostSocketID:         dto.HostSocketID,
		HostDisconnectedAt:   dto.HostDisconnectedAt,
		state:                dto.State,
		prePausedState:       dto.PrePausedState,
		CurrentQuestionIndex: dto.CurrentQuestionIndex,
		TotalQuestions:       dto.TotalQuestions,
		players:              make(map[string]*Player),
		spectators:           make(map[string]*Spectator),
		banned:               make(map[string]struct{}),
		answers:              make(map[string]Answer),
		QuestionStartedAt:    dto.QuestionStartedAt,
		CorrectAnswerIndex:   dto.CorrectAnswerIndex,
		PausedAt:             dto.PausedAt,
		AccumulatedPauseMs:   dto.AccumulatedPauseMs,
		CreatedAt:            dto.CreatedAt,
	}
	for _, n := range dto.Banned {
		r.banned[n] = struct{}{}
	}
	for _, p := range dto.Players {
		r.players[p.ID] = &Player{
			ID: p.ID, RoomPIN: string(dto.PIN), Nickname: p.Nickname,
			NormalizedNickname: p.NormalizedNickname, SocketID: p.SocketID,
			Token: p.Token, Score: p.Score, Streak: p.Streak,
			DisconnectedAt: p.DisconnectedAt, JoinedAt: p.JoinedAt,
			LastCorrectSubmittedAt: p.LastCorrectSubmittedAt,
		}
	}
	for _, s := range dto.Spectators {
		r.spectators[s.ID] = &Spectator{
			ID: s.ID, RoomPIN: string(dto.PIN), Nickname: s.Nickname,
			SocketID: s.SocketID, Token: s.Token,
			DisconnectedAt: s.DisconnectedAt, JoinedAt: s.JoinedAt,
		}
	}
	for _, a := range dto.Answers {
		r.answers[a.PlayerID] = a
	}
	return r
}
