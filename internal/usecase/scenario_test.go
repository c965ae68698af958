package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwizo/quizroom/internal/protocol"
	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/roomerr"
)

// Scenario 1: happy path, 2 players, 1 question (totalQuestions=1,
// Q0 points=1000, T=10s). Alice answers correct at e=2000ms, Bob
// answers wrong at e=4000ms.
func TestScenario_HappyPathTwoPlayerOneQuestion(t *testing.T) {
	h := newHarness(testCfg(), oneQuestionQuiz("demo", 1000, 10))
	ctx := context.Background()

	r, _, err := h.rooms.CreateRoom(ctx, "host-1", "demo", "host-sock")
	require.NoError(t, err)
	_, alice, err := h.rooms.JoinRoom(ctx, string(r.PIN), "Alice", "alice-sock")
	require.NoError(t, err)
	_, bob, err := h.rooms.JoinRoom(ctx, string(r.PIN), "BOB", "bob-sock")
	require.NoError(t, err)

	require.NoError(t, h.game.StartGame(ctx, string(r.PIN), "host-1"))
	require.NoError(t, h.game.StartAnswering(ctx, string(r.PIN), "host-1"))
	defer h.timers.Stop(r.PIN)

	time.Sleep(2 * time.Second)
	require.NoError(t, h.game.SubmitAnswer(ctx, "alice-sock", 1))
	time.Sleep(2 * time.Second)
	require.NoError(t, h.game.SubmitAnswer(ctx, "bob-sock", 0))

	var aliceReceived, bobReceived protocol.AnswerReceivedPayload
	for _, e := range h.bc.since(0) {
		if e.event != protocol.EventAnswerReceived {
			continue
		}
		if e.target == "alice-sock" {
			aliceReceived = e.payload.(protocol.AnswerReceivedPayload)
		}
		if e.target == "bob-sock" {
			bobReceived = e.payload.(protocol.AnswerReceivedPayload)
		}
	}

	assert.True(t, aliceReceived.IsCorrect)
	assert.InDelta(t, 900, aliceReceived.Score, 30, "e=2000ms/T=10000ms should score ~900")
	assert.Equal(t, 0, aliceReceived.StreakBonus)
	assert.Equal(t, aliceReceived.Score, aliceReceived.TotalScore)
	assert.Equal(t, 1, aliceReceived.Streak)

	assert.False(t, bobReceived.IsCorrect)
	assert.Equal(t, 0, bobReceived.Score)
	assert.Equal(t, 0, bobReceived.StreakBonus)
	assert.Equal(t, 0, bobReceived.TotalScore)
	assert.Equal(t, 0, bobReceived.Streak)

	require.NoError(t, h.game.EndAnswering(ctx, string(r.PIN), "host-1"))
	var results protocol.ShowResultsPayload
	for _, e := range h.bc.since(0) {
		if e.event == protocol.EventShowResults {
			results = e.payload.(protocol.ShowResultsPayload)
		}
	}
	assert.Equal(t, 1, results.CorrectAnswerIndex)
	assert.Equal(t, 1, results.Distribution[0])
	assert.Equal(t, 1, results.Distribution[1])

	require.NoError(t, h.game.ShowLeaderboard(ctx, string(r.PIN), "host-1"))
	entries, err := h.game.GetResults(ctx, string(r.PIN))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, alice.ID, entries[0].PlayerID)
	assert.InDelta(t, 900, entries[0].Score, 30)
	assert.Equal(t, bob.ID, entries[1].PlayerID)
	assert.Equal(t, 0, entries[1].Score)

	require.NoError(t, h.game.NextQuestion(ctx, string(r.PIN), "host-1"))
	podium, err := h.game.GetResults(ctx, string(r.PIN))
	require.NoError(t, err)
	assert.Equal(t, alice.ID, podium[0].PlayerID, "single-question quiz exhausted: Alice finishes first")
}

// Scenario 2: nickname race. Two sockets concurrently join the same
// PIN with the same normalized nickname; exactly one must succeed.
func TestScenario_NicknameRace_ExactlyOneJoinSucceeds(t *testing.T) {
	h := newHarness(testCfg(), oneQuestionQuiz("demo", 1000, 10))
	ctx := context.Background()
	r, _, err := h.rooms.CreateRoom(ctx, "host-1", "demo", "host-sock")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	sockets := []string{"sock-a", "sock-b"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := h.rooms.JoinRoom(ctx, string(r.PIN), "Zoe", sockets[i])
			results[i] = err
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, err := range results {
		if err == nil {
			successCount++
		} else {
			assert.Equal(t, roomerr.Conflict, roomerr.KindOf(err))
		}
	}
	assert.Equal(t, 1, successCount, "exactly one of the two concurrent joins must succeed")

	players, err := h.rooms.GetPlayers(ctx, string(r.PIN))
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Zoe", players[0].Nickname)
}

// Scenario 3: player grace reconnect. A disconnected player's token
// rotates on reconnect; the previously-presented token must never
// resolve again, whether grace has expired or not.
func TestScenario_PlayerGraceReconnect_OldTokenNeverResolvesAgain(t *testing.T) {
	h := newHarness(testCfg(), oneQuestionQuiz("demo", 1000, 10))
	ctx := context.Background()
	r, _, err := h.rooms.CreateRoom(ctx, "host-1", "demo", "host-sock")
	require.NoError(t, err)
	_, alice, err := h.rooms.JoinRoom(ctx, string(r.PIN), "Alice", "alice-sock")
	require.NoError(t, err)
	require.NoError(t, h.game.StartGame(ctx, string(r.PIN), "host-1"))
	require.NoError(t, h.game.StartAnswering(ctx, string(r.PIN), "host-1"))
	defer h.timers.Stop(r.PIN)

	oldToken := string(alice.Token)
	require.NoError(t, h.rooms.HandleDisconnect(ctx, "alice-sock"))

	_, reconnected, err := h.rooms.ReconnectPlayer(ctx, oldToken, "alice-sock-2")
	require.NoError(t, err, "reconnecting within grace with the disconnect-time token must succeed")
	assert.NotEqual(t, oldToken, string(reconnected.Token))

	_, _, err = h.rooms.ReconnectPlayer(ctx, oldToken, "alice-sock-3")
	require.Error(t, err)
	kind := roomerr.KindOf(err)
	assert.True(t, kind == roomerr.NotFound || kind == roomerr.GraceExpired,
		"the already-rotated-away token must resolve to NotFound or GraceExpired, got %v", kind)
}

// Scenario 3b: once a mid-game disconnected player's grace period fully
// elapses without any reconnect, their token stops resolving.
func TestScenario_PlayerGraceExpiry_TokenStopsResolving(t *testing.T) {
	cfg := testCfg()
	cfg.PlayerGracePeriod = 30 * time.Millisecond
	h := newHarness(cfg, oneQuestionQuiz("demo", 1000, 10))
	ctx := context.Background()
	r, _, err := h.rooms.CreateRoom(ctx, "host-1", "demo", "host-sock")
	require.NoError(t, err)
	_, alice, err := h.rooms.JoinRoom(ctx, string(r.PIN), "Alice", "alice-sock")
	require.NoError(t, err)
	require.NoError(t, h.game.StartGame(ctx, string(r.PIN), "host-1"))

	require.NoError(t, h.rooms.HandleDisconnect(ctx, "alice-sock"))
	time.Sleep(60 * time.Millisecond)

	_, _, err = h.rooms.ReconnectPlayer(ctx, string(alice.Token), "alice-sock-2")
	require.Error(t, err)
	assert.Equal(t, roomerr.GraceExpired, roomerr.KindOf(err))
}

// Scenario 4: host grace timeout. A disconnected host whose grace has
// fully elapsed is force-closable, and every participant is notified
// with the documented reason (the reaper itself drives the schedule;
// here the room-layer contract it depends on is exercised directly).
func TestScenario_HostGraceTimeout_ForceCloseNotifiesReason(t *testing.T) {
	h := newHarness(testCfg(), oneQuestionQuiz("demo", 1000, 10))
	ctx := context.Background()
	r, _, err := h.rooms.CreateRoom(ctx, "host-1", "demo", "host-sock")
	require.NoError(t, err)

	require.NoError(t, h.rooms.HandleDisconnect(ctx, "host-sock"))
	r.RLock()
	disconnected := r.HostDisconnectedAt
	r.RUnlock()
	require.NotNil(t, disconnected)

	const reason = "Host reconnection timeout"
	require.NoError(t, h.rooms.ForceCloseRoom(ctx, r, reason))

	var closed protocol.RoomClosedPayload
	for _, e := range h.bc.since(0) {
		if e.event == protocol.EventRoomClosed {
			closed = e.payload.(protocol.RoomClosedPayload)
		}
	}
	assert.Equal(t, reason, closed.Reason)
	assert.False(t, h.repo.Exists(ctx, r.PIN))
}

// Scenario 5: timer expiry auto-ends the round when nobody answers;
// show_results reports correctCount:0 and an all-zero distribution.
func TestScenario_TimerExpiryAutoEndsRoundWithNoAnswers(t *testing.T) {
	h := newHarness(testCfg(), oneQuestionQuiz("demo", 1000, 1))
	ctx := context.Background()
	r, _, err := h.rooms.CreateRoom(ctx, "host-1", "demo", "host-sock")
	require.NoError(t, err)
	_, _, err = h.rooms.JoinRoom(ctx, string(r.PIN), "Alice", "alice-sock")
	require.NoError(t, err)
	require.NoError(t, h.game.StartGame(ctx, string(r.PIN), "host-1"))
	require.NoError(t, h.game.StartAnswering(ctx, string(r.PIN), "host-1"))

	require.Eventually(t, func() bool {
		r.RLock()
		defer r.RUnlock()
		return r.State() == room.StateShowResults
	}, 3*time.Second, 20*time.Millisecond, "timer expiry must auto-transition to SHOW_RESULTS")

	var results protocol.ShowResultsPayload
	for _, e := range h.bc.since(0) {
		if e.event == protocol.EventShowResults {
			results = e.payload.(protocol.ShowResultsPayload)
		}
	}
	assert.Equal(t, 0, results.CorrectCount)
	assert.Empty(t, results.Distribution)

	entries, err := h.game.GetResults(ctx, string(r.PIN))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Score, "scores must be unchanged when nobody answered")
}

// Scenario 6: pausing during WAITING_PLAYERS is illegal and leaves
// room state untouched.
func TestScenario_PauseDuringLobbyIsIllegalAndStateUnchanged(t *testing.T) {
	h := newHarness(testCfg(), oneQuestionQuiz("demo", 1000, 10))
	ctx := context.Background()
	r, _, err := h.rooms.CreateRoom(ctx, "host-1", "demo", "host-sock")
	require.NoError(t, err)

	err = h.game.PauseGame(ctx, string(r.PIN), "host-1")
	require.Error(t, err)
	assert.Equal(t, roomerr.IllegalTransition, roomerr.KindOf(err))

	r.RLock()
	defer r.RUnlock()
	assert.Equal(t, room.StateWaitingPlayers, r.State())
}
