// Package protocol defines the JSON socket event contract spec.md §6.1
// specifies. It generalizes the teacher's message-type dispatch table
// (internal/network/messages.go, internal/network/protocol.go) from a
// fixed-width binary encoding keyed by a uint8 message type to a JSON
// envelope keyed by an event name string, since spec.md §6.1 requires
// "all socket payloads are JSON-shaped objects."
package protocol

import "encoding/json"

// Envelope is the single wire shape every socket message uses: an
// event name plus its JSON-shaped payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound event names (client -> server), spec.md §6.1.
const (
	EventCreateRoom        = "create_room"
	EventGetMyRoom         = "get_my_room"
	EventForceCloseRoom    = "force_close_room"
	EventJoinRoom          = "join_room"
	EventJoinAsSpectator   = "join_as_spectator"
	EventLeaveRoom         = "leave_room"
	EventLeaveSpectator    = "leave_spectator"
	EventCloseRoom         = "close_room"
	EventReconnectHost     = "reconnect_host"
	EventReconnectPlayer   = "reconnect_player"
	EventReconnectSpec     = "reconnect_spectator"
	EventStartGame         = "start_game"
	EventStartAnswering    = "start_answering"
	EventEndAnswering      = "end_answering"
	EventShowLeaderboard   = "show_leaderboard"
	EventNextQuestion      = "next_question"
	EventSubmitAnswer      = "submit_answer"
	EventKickPlayer        = "kick_player"
	EventBanPlayer         = "ban_player"
	EventUnbanNickname     = "unban_nickname"
	EventGetPlayers        = "get_players"
	EventGetSpectators     = "get_spectators"
	EventGetBannedNames    = "get_banned_nicknames"
	EventPauseGame         = "pause_game"
	EventResumeGame        = "resume_game"
	EventRequestTimerSync  = "request_timer_sync"
	EventGetResults        = "get_results"
)

// Outbound event names (server -> client), spec.md §6.1.
const (
	EventRoomCreated           = "room_created"
	EventRoomJoined            = "room_joined"
	EventRoomJoinedSpectator   = "room_joined_spectator"
	EventPlayerJoined          = "player_joined"
	EventPlayerLeft            = "player_left"
	EventPlayerKicked          = "player_kicked"
	EventPlayerBanned          = "player_banned"
	EventYouWereKicked         = "you_were_kicked"
	EventPlayerReturned        = "player_returned"
	EventSpectatorJoined       = "spectator_joined"
	EventSpectatorLeft         = "spectator_left"
	EventSpectatorReturned     = "spectator_returned"
	EventBannedNicknames       = "banned_nicknames"
	EventNicknameUnbanned      = "nickname_unbanned"
	EventGameStarted           = "game_started"
	EventQuestionIntro         = "question_intro"
	EventAnsweringStarted      = "answering_started"
	EventAnswerReceived        = "answer_received"
	EventAnswerCountUpdated    = "answer_count_updated"
	EventAllPlayersAnswered    = "all_players_answered"
	EventShowResults           = "show_results"
	EventRoundEnded            = "round_ended"
	EventLeaderboard           = "leaderboard"
	EventGameOver              = "game_over"
	EventFinalResults          = "final_results"
	EventTimerStarted          = "timer_started"
	EventTimerTick             = "timer_tick"
	EventTimeExpired           = "time_expired"
	EventTimerSync             = "timer_sync"
	EventGamePaused            = "game_paused"
	EventGameResumed           = "game_resumed"
	EventRoomClosed            = "room_closed"
	EventHostDisconnected      = "host_disconnected"
	EventHostDisconnectedWarn  = "host_disconnected_warning"
	EventHostReturned          = "host_returned"
	EventHostReconnected       = "host_reconnected"
	EventPlayerReconnected     = "player_reconnected"
	EventSpectatorReconnected  = "spectator_reconnected"
	EventError                 = "error"

	// EventPlayersList and EventSpectatorsList answer get_players /
	// get_spectators (spec.md §6.1 lists the verbs but names no
	// response event; added here since the dispatcher must send
	// something back).
	EventPlayersList    = "players_list"
	EventSpectatorsList = "spectators_list"
	EventMyRoom         = "my_room"
)

// Inbound payload shapes, one per event taking non-empty input.

type CreateRoomPayload struct {
	QuizID    string `json:"quizId"`
	AuthToken string `json:"authToken"`
}

// PINPayload is the shape for every host-verb event whose only
// argument is the room PIN (start_game, close_room, end_answering, show_leaderboard, next_question, pause_game,
// resume_game). AuthToken carries the host's bearer JWT (spec.md §6.1).
type PINPayload struct {
	PIN       string `json:"pin"`
	AuthToken string `json:"authToken"`
}

type JoinRoomPayload struct {
	PIN      string `json:"pin"`
	Nickname string `json:"nickname"`
}

type ReconnectHostPayload struct {
	PIN       string `json:"pin"`
	HostToken string `json:"hostToken"`
	AuthToken string `json:"authToken"`
}

// AuthOnlyPayload is the shape for host-verbs that carry no PIN at all
// (get_my_room, force_close_room), resolved by JWT subject instead.
type AuthOnlyPayload struct {
	AuthToken string `json:"authToken"`
}

type ReconnectPlayerPayload struct {
	PIN         string `json:"pin"`
	PlayerToken string `json:"playerToken"`
}

type ReconnectSpectatorPayload struct {
	PIN             string `json:"pin"`
	SpectatorToken string `json:"spectatorToken"`
}

type SubmitAnswerPayload struct {
	PIN         string `json:"pin"`
	AnswerIndex int    `json:"answerIndex"`
}

type PlayerActionPayload struct {
	PIN       string `json:"pin"`
	PlayerID  string `json:"playerId"`
	AuthToken string `json:"authToken"`
}

type UnbanNicknamePayload struct {
	PIN       string `json:"pin"`
	Nickname  string `json:"nickname"`
	AuthToken string `json:"authToken"`
}

// Outbound payload shapes.

type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type RoomCreatedPayload struct {
	PIN            string `json:"pin"`
	HostToken      string `json:"hostToken"`
	TotalQuestions int    `json:"totalQuestions"`
	QuizTitle      string `json:"quizTitle"`
}

type PlayerView struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Score     int    `json:"score"`
	Streak    int    `json:"streak"`
	Connected bool   `json:"connected"`
}

type SpectatorView struct {
	ID        string `json:"id"`
	Nickname  string `json:"nickname"`
	Connected bool   `json:"connected"`
}

type RoomJoinedPayload struct {
	PIN         string       `json:"pin"`
	PlayerID    string       `json:"playerId"`
	PlayerToken string       `json:"playerToken"`
	Players     []PlayerView `json:"players"`
}

type RoomJoinedSpectatorPayload struct {
	PIN            string          `json:"pin"`
	SpectatorID    string          `json:"spectatorId"`
	SpectatorToken string          `json:"spectatorToken"`
	Spectators     []SpectatorView `json:"spectators"`
}

type QuestionIntroPayload struct {
	QuestionIndex  int `json:"questionIndex"`
	TotalQuestions int `json:"totalQuestions"`
}

type AnsweringStartedPayload struct {
	TimeLimit   int `json:"timeLimit"`
	OptionCount int `json:"optionCount"`
}

type AnswerReceivedPayload struct {
	IsCorrect   bool `json:"isCorrect"`
	Score       int  `json:"score"`
	StreakBonus int  `json:"streakBonus"`
	TotalScore  int  `json:"totalScore"`
	Streak      int  `json:"streak"`
}

type AnswerCountUpdatedPayload struct {
	AnsweredCount int `json:"answeredCount"`
	TotalPlayers  int `json:"totalPlayers"`
}

type ShowResultsPayload struct {
	CorrectAnswerIndex int           `json:"correctAnswerIndex"`
	Distribution       map[int]int   `json:"distribution"`
	CorrectCount       int           `json:"correctCount"`
	TotalPlayers       int           `json:"totalPlayers"`
}

type RoundEndedPayload struct {
	CorrectAnswerIndex int `json:"correctAnswerIndex"`
}

type LeaderboardEntryView struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

type LeaderboardPayload struct {
	Entries []LeaderboardEntryView `json:"entries"`
}

type FinalResultsPayload struct {
	Podium []LeaderboardEntryView `json:"podium"`
}

type TimerStartedPayload struct {
	DurationSec int   `json:"duration"`
	DurationMs  int64 `json:"durationMs"`
	ServerTime  int64 `json:"serverTime"`
	EndTime     int64 `json:"endTime"`
}

type TimerTickPayload struct {
	ServerTime  int64 `json:"serverTime"`
	EndTime     int64 `json:"endTime"`
	RemainingMs int64 `json:"remainingMs"`
	Remaining   int   `json:"remaining"`
}

type GamePausedPayload struct {
	PausedAt int64 `json:"pausedAt"`
}

type GameResumedPayload struct {
	State         string `json:"state"`
	PauseDuration int64  `json:"pauseDuration"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

type YouWereKickedPayload struct {
	Reason string `json:"reason"` // "kicked" | "banned"
}

type BannedNicknamesPayload struct {
	Nicknames []string `json:"nicknames"`
}

type PlayersListPayload struct {
	Players []PlayerView `json:"players"`
}

type SpectatorsListPayload struct {
	Spectators []SpectatorView `json:"spectators"`
}

type MyRoomPayload struct {
	PIN            string `json:"pin"`
	State          string `json:"state"`
	TotalQuestions int    `json:"totalQuestions"`
}
