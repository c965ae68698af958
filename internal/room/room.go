// Package room implements the Room entity (spec.md §3, §4.3): the
// state machine and all participant bookkeeping for a single quiz
// room. The state machine, participant maps, ban list and answers are
// unexported and change only through Room's invariant-preserving
// methods; exported fields such as HostSocketID and HostDisconnectedAt
// can be assigned directly by other packages.
//
// Locking: Room embeds its own write lock but does not take it inside
// its methods. Per spec.md §5, the room's write lock is held by the
// caller (the use-case layer, on behalf of the socket dispatcher) for
// the full duration of a use-case — including any outbound broadcasts
// — so that events stay totally ordered. Callers must Lock/RLock before
// calling any Room method and Unlock/RUnlock after. This mirrors the
// teacher's "methods ending in Unlocked expect the caller to already
// hold the lock" discipline, generalized so the *whole* entity assumes
// an externally-held lock rather than offering both locked and
// unlocked variants.
package room

import (
	"sort"
	"sync"
	"time"

	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/kwizo/quizroom/internal/token"
)

// Answer records one player's submission for the current round.
type Answer struct {
	PlayerID    string
	AnswerIndex int
	SubmittedAt time.Time
}

// Room holds the state machine, participants, and round bookkeeping for
// one quiz session (spec.md §3).
type Room struct {
	mu sync.RWMutex

	ID     string
	PIN    pin.PIN
	QuizID string

	HostID             string
	HostToken          token.Token
	HostSocketID       string
	HostDisconnectedAt *time.Time

	state          State
	prePausedState State

	CurrentQuestionIndex int
	TotalQuestions       int

	players    map[string]*Player
	spectators map[string]*Spectator
	banned     map[string]struct{} // normalized nicknames

	QuestionStartedAt  time.Time
	answers            map[string]Answer
	CorrectAnswerIndex int

	PausedAt           time.Time
	AccumulatedPauseMs int64

	CreatedAt time.Time
}

// New creates a room in WAITING_PLAYERS with no participants.
func New(id string, p pin.PIN, hostID string, hostToken token.Token, quizID string, totalQuestions int) *Room {
	return &Room{
		ID:             id,
		PIN:            p,
		QuizID:         quizID,
		HostID:         hostID,
		HostToken:      hostToken,
		state:          StateWaitingPlayers,
		TotalQuestions: totalQuestions,
		players:        make(map[string]*Player),
		spectators:     make(map[string]*Spectator),
		banned:         make(map[string]struct{}),
		answers:        make(map[string]Answer),
		CreatedAt:      time.Now(),
	}
}

// Lock/Unlock/RLock/RUnlock expose the room's write lock to the
// use-case layer; see the package doc comment for why the lock lives
// here rather than inside each method.
func (r *Room) Lock()    { r.mu.Lock() }
func (r *Room) Unlock()  { r.mu.Unlock() }
func (r *Room) RLock()   { r.mu.RLock() }
func (r *Room) RUnlock() { r.mu.RUnlock() }

// State returns the room's current phase. Caller must hold at least RLock.
func (r *Room) State() State { return r.state }

// PrePausedState returns the phase pause() will Resume() back to.
func (r *Room) PrePausedState() State { return r.prePausedState }

// ---- Participants -------------------------------------------------

// AddPlayer admits a new player (spec.md §4.3 addPlayer).
func (r *Room) AddPlayer(nickname string, socketID string) (*Player, error) {
	if r.state != StateWaitingPlayers {
		return nil, roomerr.New(roomerr.IllegalTransition, "room is not accepting players")
	}

	normalized := NormalizeNickname(nickname)
	if _, banned := r.banned[normalized]; banned {
		return nil, roomerr.New(roomerr.Conflict, "NicknameBanned")
	}
	for _, p := range r.players {
		if p.NormalizedNickname == normalized {
			return nil, roomerr.New(roomerr.Conflict, "NicknameTaken")
		}
	}

	tok, err := token.Generate()
	if err != nil {
		return nil, roomerr.Wrap(roomerr.Validation, "failed to issue player token", err)
	}

	p := &Player{
		ID:                 newParticipantID(),
		RoomPIN:            string(r.PIN),
		Nickname:           nickname,
		NormalizedNickname: normalized,
		SocketID:           socketID,
		Token:              tok,
		JoinedAt:           time.Now(),
	}
	r.players[p.ID] = p
	return p, nil
}

// RemovePlayer removes a player outright. Idempotent.
func (r *Room) RemovePlayer(socketID string) {
	id, ok := r.findPlayerBySocket(socketID)
	if !ok {
		return
	}
	delete(r.players, id)
	delete(r.answers, id)
}

// RemovePlayerByID removes a player by id. Idempotent.
func (r *Room) RemovePlayerByID(playerID string) {
	delete(r.players, playerID)
	delete(r.answers, playerID)
}

// SetPlayerDisconnected marks a connected player as disconnected,
// preserving their row for the grace period.
func (r *Room) SetPlayerDisconnected(socketID string) (*Player, bool) {
	id, ok := r.findPlayerBySocket(socketID)
	if !ok {
		return nil, false
	}
	p := r.players[id]
	now := time.Now()
	p.DisconnectedAt = &now
	p.SocketID = ""
	return p, true
}

// ReconnectPlayer resumes a disconnected player's session within the
// grace period, rotating their token (spec.md §4.2, §4.3).
func (r *Room) ReconnectPlayer(oldToken token.Token, newSocketID string, grace time.Duration) (*Player, error) {
	var found *Player
	for _, p := range r.players {
		if p.Token == oldToken {
			found = p
			break
		}
	}
	if found == nil {
		return nil, roomerr.New(roomerr.NotFound, "unknown player token")
	}
	if found.DisconnectedAt == nil {
		// Not disconnected: still honor reconnect (idempotent resume on
		// a fresh socket), but otherwise behave as below.
	} else if time.Since(*found.DisconnectedAt) > grace {
		return nil, roomerr.New(roomerr.GraceExpired, "player reconnection window has expired")
	}

	newToken, err := token.Generate()
	if err != nil {
		return nil, roomerr.Wrap(roomerr.Validation, "failed to rotate player token", err)
	}

	found.DisconnectedAt = nil
	found.SocketID = newSocketID
	found.Token = newToken
	return found, nil
}

// AddSpectator admits a non-playing observer. Spectators may join in
// any state.
func (r *Room) AddSpectator(nickname, socketID string) (*Spectator, error) {
	tok, err := token.Generate()
	if err != nil {
		return nil, roomerr.Wrap(roomerr.Validation, "failed to issue spectator token", err)
	}
	s := &Spectator{
		ID:       newParticipantID(),
		RoomPIN:  string(r.PIN),
		Nickname: nickname,
		SocketID: socketID,
		Token:    tok,
		JoinedAt: time.Now(),
	}
	r.spectators[s.ID] = s
	return s, nil
}

// RemoveSpectator removes a spectator outright. Idempotent.
func (r *Room) RemoveSpectator(socketID string) {
	for id, s := range r.spectators {
		if s.SocketID == socketID {
			delete(r.spectators, id)
			return
		}
	}
}

// SetSpectatorDisconnected marks a spectator disconnected.
func (r *Room) SetSpectatorDisconnected(socketID string) (*Spectator, bool) {
	for _, s := range r.spectators {
		if s.SocketID == socketID {
			now := time.Now()
			s.DisconnectedAt = &now
			s.SocketID = ""
			return s, true
		}
	}
	return nil, false
}

// ReconnectSpectator resumes a disconnected spectator, rotating their token.
func (r *Room) ReconnectSpectator(oldToken token.Token, newSocketID string, grace time.Duration) (*Spectator, error) {
	var found *Spectator
	for _, s := range r.spectators {
		if s.Token == oldToken {
			found = s
			break
		}
	}
	if found == nil {
		return nil, roomerr.New(roomerr.NotFound, "unknown spectator token")
	}
	if found.DisconnectedAt != nil && time.Since(*found.DisconnectedAt) > grace {
		return nil, roomerr.New(roomerr.GraceExpired, "spectator reconnection window has expired")
	}

	newToken, err := token.Generate()
	if err != nil {
		return nil, roomerr.Wrap(roomerr.Validation, "failed to rotate spectator token", err)
	}
	found.DisconnectedAt = nil
	found.SocketID = newSocketID
	found.Token = newToken
	return found, nil
}

// SetHostDisconnected marks the host disconnected (spec.md §4.3, §4.5).
func (r *Room) SetHostDisconnected() {
	if r.HostSocketID == "" && r.HostDisconnectedAt != nil {
		return
	}
	now := time.Now()
	r.HostDisconnectedAt = &now
	r.HostSocketID = ""
}

// ReconnectHost resumes the host's session. The host token is never
// rotated (spec.md §4.3: "host identity is also tied to the
// authenticated user").
func (r *Room) ReconnectHost(newSocketID string, hostToken token.Token, grace time.Duration) error {
	if hostToken != r.HostToken {
		return roomerr.New(roomerr.NotFound, "unknown host token")
	}
	if r.HostDisconnectedAt != nil && time.Since(*r.HostDisconnectedAt) > grace {
		return roomerr.New(roomerr.GraceExpired, "host reconnection window has expired")
	}
	r.HostDisconnectedAt = nil
	r.HostSocketID = newSocketID
	return nil
}

// BindHostSocket attaches the host's socket id at room-creation time,
// before any disconnect/reconnect cycle has occurred.
func (r *Room) BindHostSocket(socketID string) {
	r.HostSocketID = socketID
}

// Kick removes a player immediately, for host-driven kick_player.
func (r *Room) Kick(playerID string) (*Player, error) {
	p, ok := r.players[playerID]
	if !ok {
		return nil, roomerr.New(roomerr.NotFound, "unknown player")
	}
	delete(r.players, playerID)
	delete(r.answers, playerID)
	return p, nil
}

// Ban removes a player (if present) and adds their normalized nickname
// to the ban list so it cannot rejoin.
func (r *Room) Ban(playerID string) (*Player, error) {
	p, ok := r.players[playerID]
	if !ok {
		return nil, roomerr.New(roomerr.NotFound, "unknown player")
	}
	r.banned[p.NormalizedNickname] = struct{}{}
	delete(r.players, playerID)
	delete(r.answers, playerID)
	return p, nil
}

// Unban removes a nickname from the ban list.
func (r *Room) Unban(nickname string) {
	delete(r.banned, NormalizeNickname(nickname))
}

// BannedNicknames returns the current ban list.
func (r *Room) BannedNicknames() []string {
	out := make([]string, 0, len(r.banned))
	for n := range r.banned {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ---- State machine --------------------------------------------------

func (r *Room) transition(to State) error {
	if !isLegalTransition(r.state, to) {
		return roomerr.New(roomerr.IllegalTransition, string(r.state)+" -> "+string(to))
	}
	r.state = to
	return nil
}

// Start moves WAITING_PLAYERS -> QUESTION_INTRO.
func (r *Room) Start() error {
	return r.transition(StateQuestionIntro)
}

// BeginIntro moves LEADERBOARD -> QUESTION_INTRO as part of
// nextQuestion (kept as its own method for callers that only want the
// phase change without the index bookkeeping NextQuestionOrFinish does).
func (r *Room) BeginIntro() error {
	return r.transition(StateQuestionIntro)
}

// BeginAnswering moves QUESTION_INTRO -> ANSWERING_PHASE and starts the round clock.
func (r *Room) BeginAnswering() error {
	if err := r.transition(StateAnsweringPhase); err != nil {
		return err
	}
	r.QuestionStartedAt = time.Now()
	r.answers = make(map[string]Answer)
	return nil
}

// RecordAnswer records a player's answer for the current round
// (spec.md §4.3 recordAnswer).
func (r *Room) RecordAnswer(playerID string, answerIndex int, submittedAt time.Time) error {
	if r.state != StateAnsweringPhase {
		return roomerr.New(roomerr.IllegalTransition, "room is not answering a question")
	}
	p, ok := r.players[playerID]
	if !ok {
		return roomerr.New(roomerr.NotFound, "UnknownPlayer")
	}
	if _, already := r.answers[playerID]; already {
		return roomerr.New(roomerr.Conflict, "AlreadyAnswered")
	}
	r.answers[playerID] = Answer{PlayerID: playerID, AnswerIndex: answerIndex, SubmittedAt: submittedAt}
	_ = p
	return nil
}

// AnsweredCount returns how many of the currently connected players
// have answered this round, and the total connected player count.
func (r *Room) AnsweredCount() (answered, total int) {
	for _, p := range r.players {
		if p.IsConnected() {
			total++
			if _, ok := r.answers[p.ID]; ok {
				answered++
			}
		}
	}
	return answered, total
}

// AllConnectedAnswered reports whether every connected player has answered.
func (r *Room) AllConnectedAnswered() bool {
	answered, total := r.AnsweredCount()
	return total > 0 && answered == total
}

// Answers returns a copy of this round's recorded answers.
func (r *Room) Answers() map[string]Answer {
	out := make(map[string]Answer, len(r.answers))
	for k, v := range r.answers {
		out[k] = v
	}
	return out
}

// EndAnswering moves ANSWERING_PHASE -> SHOW_RESULTS, recording the
// correct answer index for distribution/result broadcasts.
func (r *Room) EndAnswering(correctIndex int) error {
	if err := r.transition(StateShowResults); err != nil {
		return err
	}
	r.CorrectAnswerIndex = correctIndex
	return nil
}

// ShowLeaderboard moves SHOW_RESULTS -> LEADERBOARD.
func (r *Room) ShowLeaderboard() error {
	return r.transition(StateLeaderboard)
}

// NextQuestionOrFinish advances to the next question's intro, or to
// PODIUM if the quiz is complete (spec.md §4.6).
func (r *Room) NextQuestionOrFinish() error {
	if r.state != StateLeaderboard {
		return roomerr.New(roomerr.IllegalTransition, "leaderboard must be shown before advancing")
	}
	if r.CurrentQuestionIndex+1 < r.TotalQuestions {
		r.CurrentQuestionIndex++
		r.state = StateQuestionIntro
		return nil
	}
	r.state = StatePodium
	return nil
}

// Pause saves the current phase and moves to PAUSED (spec.md §4.3:
// legal only from SHOW_RESULTS or LEADERBOARD).
func (r *Room) Pause() error {
	if !pauseLegalStates[r.state] {
		return roomerr.New(roomerr.IllegalTransition, "pause is only legal during show-results or leaderboard")
	}
	r.prePausedState = r.state
	r.state = StatePaused
	r.PausedAt = time.Now()
	return nil
}

// Resume returns to prePausedState, accumulating the elapsed pause duration.
func (r *Room) Resume() error {
	if r.state != StatePaused {
		return roomerr.New(roomerr.IllegalTransition, "room is not paused")
	}
	r.AccumulatedPauseMs += time.Since(r.PausedAt).Milliseconds()
	r.state = r.prePausedState
	r.prePausedState = ""
	return nil
}

// ---- Views -----------------------------------------------------------

// Player looks up a player by id.
func (r *Room) Player(playerID string) (*Player, bool) {
	p, ok := r.players[playerID]
	return p, ok
}

// PlayerBySocket looks up a player by their current socket id.
func (r *Room) PlayerBySocket(socketID string) (*Player, bool) {
	id, ok := r.findPlayerBySocket(socketID)
	if !ok {
		return nil, false
	}
	return r.players[id], true
}

// Players returns a snapshot of every player, unordered.
func (r *Room) Players() []Snapshot {
	out := make([]Snapshot, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.snapshot())
	}
	return out
}

// Spectators returns a snapshot of every spectator, unordered.
func (r *Room) Spectators() []SpectatorSnapshot {
	out := make([]SpectatorSnapshot, 0, len(r.spectators))
	for _, s := range r.spectators {
		out = append(out, s.snapshot())
	}
	return out
}

// Spectator looks up a spectator by id.
func (r *Room) Spectator(spectatorID string) (*Spectator, bool) {
	s, ok := r.spectators[spectatorID]
	return s, ok
}

// SpectatorBySocket looks up a spectator by their current socket id.
func (r *Room) SpectatorBySocket(socketID string) (*Spectator, bool) {
	for _, s := range r.spectators {
		if s.SocketID == socketID {
			return s, true
		}
	}
	return nil, false
}

// PlayerCount returns the number of current (not necessarily connected) players.
func (r *Room) PlayerCount() int { return len(r.players) }

// LeaderboardEntry is one ranked row (spec.md §4.6).
type LeaderboardEntry struct {
	PlayerID string
	Nickname string
	Score    int
	Rank     int
}

// Leaderboard ranks players by score descending, ties broken by
// (negative lastCorrectSubmittedAt, playerID) for determinism
// (spec.md §4.6).
func (r *Room) Leaderboard() []LeaderboardEntry {
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		if !players[i].LastCorrectSubmittedAt.Equal(players[j].LastCorrectSubmittedAt) {
			return players[i].LastCorrectSubmittedAt.After(players[j].LastCorrectSubmittedAt)
		}
		return players[i].ID < players[j].ID
	})

	out := make([]LeaderboardEntry, len(players))
	for i, p := range players {
		out[i] = LeaderboardEntry{PlayerID: p.ID, Nickname: p.Nickname, Score: p.Score, Rank: i + 1}
	}
	return out
}

// Podium returns the top 3 entries of Leaderboard(), or fewer if the
// room has fewer players.
func (r *Room) Podium() []LeaderboardEntry {
	lb := r.Leaderboard()
	if len(lb) > 3 {
		lb = lb[:3]
	}
	return lb
}

// ApplyScore applies a scored answer to a player's running total and
// streak, at submit time (spec.md §4.6: "applied at submit time").
func (r *Room) ApplyScore(playerID string, base, bonus, newStreak int, correct bool, submittedAt time.Time) {
	p, ok := r.players[playerID]
	if !ok {
		return
	}
	p.Score += base + bonus
	p.Streak = newStreak
	if correct {
		p.LastCorrectSubmittedAt = submittedAt
	}
}

func (r *Room) findPlayerBySocket(socketID string) (string, bool) {
	if socketID == "" {
		return "", false
	}
	for id, p := range r.players {
		if p.SocketID == socketID {
			return id, true
		}
	}
	return "", false
}
