package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kwizo/quizroom/config"
	"github.com/kwizo/quizroom/internal/metrics"
	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/protocol"
	"github.com/kwizo/quizroom/internal/quiz"
	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/kwizo/quizroom/internal/roomrepo"
	"github.com/kwizo/quizroom/internal/scoring"
	"github.com/kwizo/quizroom/internal/timer"
)

// GameUseCases implements C6 (spec.md §4.6): the question lifecycle,
// answer collection, scoring, leaderboard and podium computation.
type GameUseCases struct {
	repo      roomrepo.Repository
	quizzes   quiz.Repository
	broadcast Broadcaster
	timers    *timer.Service
	cfg       *config.RoomConfig
	log       zerolog.Logger
}

// NewGameUseCases wires a GameUseCases sharing the timer Service with
// RoomUseCases so the two layers never race over a room's countdown.
func NewGameUseCases(repo roomrepo.Repository, quizzes quiz.Repository, broadcast Broadcaster, timers *timer.Service, cfg *config.RoomConfig, log zerolog.Logger) *GameUseCases {
	return &GameUseCases{repo: repo, quizzes: quizzes, broadcast: broadcast, timers: timers, cfg: cfg, log: log}
}

func (u *GameUseCases) requireHostRoom(ctx context.Context, pinStr, hostUserID string) (*room.Room, error) {
	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		return nil, err
	}
	r.RLock()
	isHost := r.HostID == hostUserID
	r.RUnlock()
	if !isHost {
		return nil, roomerr.New(roomerr.Forbidden, "only the host may perform this action")
	}
	return r, nil
}

// StartGame transitions WAITING_PLAYERS -> QUESTION_INTRO.
func (u *GameUseCases) StartGame(ctx context.Context, pinStr, hostUserID string) error {
	r, err := u.requireHostRoom(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()

	if err := r.Start(); err != nil {
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventGameStarted, nil)
	u.broadcastQuestionIntro(r)
	return nil
}

// broadcastQuestionIntro emits question_intro for the room's current
// index. Caller must hold the room's write lock.
func (u *GameUseCases) broadcastQuestionIntro(r *room.Room) {
	u.broadcast.ToRoom(r.PIN, protocol.EventQuestionIntro, protocol.QuestionIntroPayload{
		QuestionIndex:  r.CurrentQuestionIndex,
		TotalQuestions: r.TotalQuestions,
	})
}

// StartAnswering transitions QUESTION_INTRO -> ANSWERING_PHASE and
// starts the authoritative timer (spec.md §4.6 "start_answering").
func (u *GameUseCases) StartAnswering(ctx context.Context, pinStr, hostUserID string) error {
	r, err := u.requireHostRoom(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}

	q, err := u.quizzes.FindByID(ctx, r.QuizID)
	if err != nil {
		return err
	}

	r.Lock()
	question, ok := q.Question(r.CurrentQuestionIndex)
	if !ok {
		r.Unlock()
		return roomerr.New(roomerr.Validation, "quiz has no question at the current index")
	}
	if err := r.BeginAnswering(); err != nil {
		r.Unlock()
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		r.Unlock()
		return err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventAnsweringStarted, protocol.AnsweringStartedPayload{
		TimeLimit:   question.TimeLimitSeconds,
		OptionCount: len(question.Options),
	})
	pinVal := r.PIN
	r.Unlock()

	sync := u.timers.Start(pinVal, time.Duration(question.TimeLimitSeconds)*time.Second,
		func(s timer.Sync) { u.emitTimerTick(pinVal, s) },
		func() { u.onTimerExpire(pinVal) },
	)
	u.emitTimerStarted(pinVal, question.TimeLimitSeconds, sync)
	return nil
}

func (u *GameUseCases) emitTimerStarted(p pin.PIN, durationSec int, s timer.Sync) {
	u.broadcast.ToRoom(p, protocol.EventTimerStarted, protocol.TimerStartedPayload{
		DurationSec: durationSec,
		DurationMs:  s.DurationMs,
		ServerTime:  s.ServerTime.UnixMilli(),
		EndTime:     s.EndTime.UnixMilli(),
	})
}

func (u *GameUseCases) emitTimerTick(p pin.PIN, s timer.Sync) {
	u.broadcast.ToRoom(p, protocol.EventTimerTick, protocol.TimerTickPayload{
		ServerTime:  s.ServerTime.UnixMilli(),
		EndTime:     s.EndTime.UnixMilli(),
		RemainingMs: s.RemainingMs,
		Remaining:   int(s.RemainingMs / 1000),
	})
}

// onTimerExpire runs on the timer's own goroutine; it must acquire the
// room lock itself before touching any Room state (spec.md §5).
func (u *GameUseCases) onTimerExpire(p pin.PIN) {
	ctx := context.Background()
	r, err := u.repo.FindByPIN(ctx, p)
	if err != nil {
		u.log.Error().Err(err).Str("pin", string(p)).Msg("timer expiry: room lookup failed")
		return
	}

	r.Lock()
	if r.State() != room.StateAnsweringPhase {
		r.Unlock()
		return
	}
	metrics.TimerExpiriesTotal.Inc()
	u.broadcast.ToRoom(p, protocol.EventTimeExpired, nil)
	err = u.endAnsweringLocked(ctx, r)
	r.Unlock()
	if err != nil {
		u.log.Error().Err(err).Str("pin", string(p)).Msg("timer expiry: end answering failed")
	}
}

// SubmitAnswer records a player's answer and applies the scoring
// formula at submit time (spec.md §4.6).
func (u *GameUseCases) SubmitAnswer(ctx context.Context, socketID string, answerIndex int) error {
	r, binding, err := u.repo.FindBySocketID(ctx, socketID)
	if err != nil {
		return err
	}
	if binding.Role != roomrepo.RolePlayer {
		return roomerr.New(roomerr.Forbidden, "only players may submit answers")
	}

	q, err := u.quizzes.FindByID(ctx, r.QuizID)
	if err != nil {
		return err
	}

	r.Lock()
	defer r.Unlock()

	p, ok := r.PlayerBySocket(socketID)
	if !ok {
		return roomerr.New(roomerr.NotFound, "UnknownPlayer")
	}
	question, ok := q.Question(r.CurrentQuestionIndex)
	if !ok {
		return roomerr.New(roomerr.Validation, "quiz has no question at the current index")
	}

	submittedAt := time.Now()
	if err := r.RecordAnswer(p.ID, answerIndex, submittedAt); err != nil {
		return err
	}

	isCorrect := answerIndex == question.CorrectIndex
	elapsedMs := submittedAt.Sub(r.QuestionStartedAt).Milliseconds() - r.AccumulatedPauseMs
	result := scoring.Score(isCorrect, elapsedMs, int64(question.TimeLimitSeconds)*1000, question.Points, p.Streak)
	r.ApplyScore(p.ID, result.Base, result.StreakBonus, result.NewStreak, result.IsCorrect, submittedAt)

	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}

	u.broadcast.ToSocket(socketID, protocol.EventAnswerReceived, protocol.AnswerReceivedPayload{
		IsCorrect: result.IsCorrect, Score: result.Base, StreakBonus: result.StreakBonus,
		TotalScore: p.Score, Streak: p.Streak,
	})
	answered, total := r.AnsweredCount()
	u.broadcast.ToRoom(r.PIN, protocol.EventAnswerCountUpdated, protocol.AnswerCountUpdatedPayload{
		AnsweredCount: answered, TotalPlayers: total,
	})
	if answered == total {
		u.broadcast.ToRoom(r.PIN, protocol.EventAllPlayersAnswered, nil)
	}
	return nil
}

// EndAnswering ends the round by host action (spec.md §4.6
// "end_answering"). Timer-driven expiry uses onTimerExpire instead.
func (u *GameUseCases) EndAnswering(ctx context.Context, pinStr, hostUserID string) error {
	r, err := u.requireHostRoom(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()
	u.timers.Stop(r.PIN)
	return u.endAnsweringLocked(ctx, r)
}

// endAnsweringLocked performs the SHOW_RESULTS transition and
// broadcast. Caller must already hold the room's write lock and have
// stopped the timer.
func (u *GameUseCases) endAnsweringLocked(ctx context.Context, r *room.Room) error {
	q, err := u.quizzes.FindByID(ctx, r.QuizID)
	if err != nil {
		return err
	}
	question, ok := q.Question(r.CurrentQuestionIndex)
	if !ok {
		return roomerr.New(roomerr.Validation, "quiz has no question at the current index")
	}

	if err := r.EndAnswering(question.CorrectIndex); err != nil {
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}

	distribution := make(map[int]int, len(question.Options))
	correctCount := 0
	answers := r.Answers()
	for _, a := range answers {
		distribution[a.AnswerIndex]++
		if a.AnswerIndex == question.CorrectIndex {
			correctCount++
		}
	}
	_, total := r.AnsweredCount()

	u.broadcast.ToRoom(r.PIN, protocol.EventShowResults, protocol.ShowResultsPayload{
		CorrectAnswerIndex: question.CorrectIndex,
		Distribution:       distribution,
		CorrectCount:       correctCount,
		TotalPlayers:       total,
	})
	u.broadcast.ToRoom(r.PIN, protocol.EventRoundEnded, protocol.RoundEndedPayload{CorrectAnswerIndex: question.CorrectIndex})
	return nil
}

// ShowLeaderboard transitions SHOW_RESULTS -> LEADERBOARD and
// broadcasts the ranked standings.
func (u *GameUseCases) ShowLeaderboard(ctx context.Context, pinStr, hostUserID string) error {
	r, err := u.requireHostRoom(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()

	if err := r.ShowLeaderboard(); err != nil {
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventLeaderboard, protocol.LeaderboardPayload{Entries: toEntryViews(r.Leaderboard())})
	return nil
}

// NextQuestion advances to the next question's intro, or to the
// podium if the quiz is complete (spec.md §4.6).
func (u *GameUseCases) NextQuestion(ctx context.Context, pinStr, hostUserID string) error {
	r, err := u.requireHostRoom(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()

	if err := r.NextQuestionOrFinish(); err != nil {
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}

	if r.State() == room.StatePodium {
		u.broadcast.ToRoom(r.PIN, protocol.EventGameOver, nil)
		u.broadcast.ToRoom(r.PIN, protocol.EventFinalResults, protocol.FinalResultsPayload{Podium: toEntryViews(r.Podium())})
		return nil
	}
	u.broadcastQuestionIntro(r)
	return nil
}

// PauseGame pauses the room, legal only from SHOW_RESULTS or LEADERBOARD.
func (u *GameUseCases) PauseGame(ctx context.Context, pinStr, hostUserID string) error {
	r, err := u.requireHostRoom(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()

	if err := r.Pause(); err != nil {
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventGamePaused, protocol.GamePausedPayload{PausedAt: r.PausedAt.UnixMilli()})
	return nil
}

// ResumeGame resumes a paused room back to its prePausedState.
func (u *GameUseCases) ResumeGame(ctx context.Context, pinStr, hostUserID string) error {
	r, err := u.requireHostRoom(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	pauseStarted := r.PausedAt
	if err := r.Resume(); err != nil {
		r.Unlock()
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		r.Unlock()
		return err
	}
	resumedState := r.State()
	pauseDuration := time.Since(pauseStarted).Milliseconds()
	r.Unlock()

	u.broadcast.ToRoom(r.PIN, protocol.EventGameResumed, protocol.GameResumedPayload{
		State: string(resumedState), PauseDuration: pauseDuration,
	})
	return nil
}

// RequestTimerSync returns the active timer's current countdown state
// for a reconnecting client (spec.md §4.7 "sync").
func (u *GameUseCases) RequestTimerSync(ctx context.Context, pinStr string) (timer.Sync, bool, error) {
	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		return timer.Sync{}, false, err
	}
	s, ok := u.timers.Sync(r.PIN)
	return s, ok, nil
}

// GetResults returns the current leaderboard view (spec.md §6.1
// "get_results").
func (u *GameUseCases) GetResults(ctx context.Context, pinStr string) ([]room.LeaderboardEntry, error) {
	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		return nil, err
	}
	r.RLock()
	defer r.RUnlock()
	return r.Leaderboard(), nil
}

func toEntryViews(entries []room.LeaderboardEntry) []protocol.LeaderboardEntryView {
	out := make([]protocol.LeaderboardEntryView, len(entries))
	for i, e := range entries {
		out[i] = protocol.LeaderboardEntryView{PlayerID: e.PlayerID, Nickname: e.Nickname, Score: e.Score, Rank: e.Rank}
	}
	return out
}
