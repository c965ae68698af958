package room

import (
	"testing"
	"time"

	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/kwizo/quizroom/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	hostTok, err := token.Generate()
	require.NoError(t, err)
	return New("room-1", "123456", "host-user-1", hostTok, "quiz-1", 2)
}

func TestAddPlayer_RejectsOutsideLobby(t *testing.T) {
	r := newTestRoom(t)
	require.NoError(t, r.Start())

	_, err := r.AddPlayer("Alice", "sock-1")
	require.Error(t, err)
	assert.Equal(t, roomerr.IllegalTransition, roomerr.KindOf(err))
}

func TestAddPlayer_RejectsDuplicateNickname(t *testing.T) {
	r := newTestRoom(t)

	_, err := r.AddPlayer("Alice", "sock-1")
	require.NoError(t, err)

	_, err = r.AddPlayer("alice", "sock-2")
	require.Error(t, err)
}

func TestAddPlayer_RejectsBannedNickname(t *testing.T) {
	r := newTestRoom(t)

	p, err := r.AddPlayer("Alice", "sock-1")
	require.NoError(t, err)

	_, err = r.Ban(p.ID)
	require.NoError(t, err)

	_, err = r.AddPlayer("alice", "sock-2")
	require.Error(t, err)
}

func TestRemovePlayer_Idempotent(t *testing.T) {
	r := newTestRoom(t)
	_, err := r.AddPlayer("Alice", "sock-1")
	require.NoError(t, err)

	r.RemovePlayer("sock-1")
	r.RemovePlayer("sock-1")

	assert.Equal(t, 0, r.PlayerCount())
}

func TestReconnectPlayer_RotatesTokenAndRejectsAfterGrace(t *testing.T) {
	r := newTestRoom(t)
	p, err := r.AddPlayer("Alice", "sock-1")
	require.NoError(t, err)

	oldToken := p.Token
	_, ok := r.SetPlayerDisconnected("sock-1")
	require.True(t, ok)

	reconnected, err := r.ReconnectPlayer(oldToken, "sock-2", time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, oldToken, reconnected.Token)
	assert.True(t, reconnected.IsConnected())

	_, err = r.ReconnectPlayer(oldToken, "sock-3", time.Minute)
	assert.Error(t, err, "old token must no longer resolve")
}

func TestReconnectPlayer_GraceExpired(t *testing.T) {
	r := newTestRoom(t)
	p, err := r.AddPlayer("Alice", "sock-1")
	require.NoError(t, err)

	r.players[p.ID].DisconnectedAt = timePtr(time.Now().Add(-time.Hour))

	_, err = r.ReconnectPlayer(p.Token, "sock-2", time.Minute)
	require.Error(t, err)
}

func TestHostDisconnectReconnect_DoesNotRotateToken(t *testing.T) {
	r := newTestRoom(t)
	r.HostSocketID = "host-sock"

	r.SetHostDisconnected()
	assert.Empty(t, r.HostSocketID)
	assert.NotNil(t, r.HostDisconnectedAt)

	err := r.ReconnectHost("host-sock-2", r.HostToken, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "host-sock-2", r.HostSocketID)
	assert.Nil(t, r.HostDisconnectedAt)
}

func TestStateMachine_LegalAndIllegalTransitions(t *testing.T) {
	r := newTestRoom(t)

	require.Error(t, r.Pause(), "pause during lobby is illegal")

	require.NoError(t, r.Start())
	require.Equal(t, StateQuestionIntro, r.State())

	require.NoError(t, r.BeginAnswering())
	require.Equal(t, StateAnsweringPhase, r.State())

	require.Error(t, r.Pause(), "pause during answering is illegal")

	require.NoError(t, r.EndAnswering(0))
	require.Equal(t, StateShowResults, r.State())

	require.NoError(t, r.Pause())
	require.Equal(t, StatePaused, r.State())
	require.NoError(t, r.Resume())
	require.Equal(t, StateShowResults, r.State())

	require.NoError(t, r.ShowLeaderboard())
	require.NoError(t, r.NextQuestionOrFinish())
	require.Equal(t, StateQuestionIntro, r.State())
	require.Equal(t, 1, r.CurrentQuestionIndex)

	require.NoError(t, r.BeginAnswering())
	require.NoError(t, r.EndAnswering(1))
	require.NoError(t, r.ShowLeaderboard())
	require.NoError(t, r.NextQuestionOrFinish())
	require.Equal(t, StatePodium, r.State())
}

func TestRecordAnswer_RejectsOutsideAnsweringAndDuplicate(t *testing.T) {
	r := newTestRoom(t)
	p, err := r.AddPlayer("Alice", "sock-1")
	require.NoError(t, err)

	require.Error(t, r.RecordAnswer(p.ID, 0, time.Now()), "not answering yet")

	require.NoError(t, r.Start())
	require.NoError(t, r.BeginAnswering())

	require.NoError(t, r.RecordAnswer(p.ID, 0, time.Now()))
	require.Error(t, r.RecordAnswer(p.ID, 0, time.Now()), "AlreadyAnswered")
}

func TestLeaderboard_OrdersByScoreThenTieBreak(t *testing.T) {
	r := newTestRoom(t)
	alice, _ := r.AddPlayer("Alice", "sock-1")
	bob, _ := r.AddPlayer("Bob", "sock-2")

	now := time.Now()
	r.ApplyScore(alice.ID, 900, 0, 1, true, now)
	r.ApplyScore(bob.ID, 0, 0, 0, false, now)

	lb := r.Leaderboard()
	require.Len(t, lb, 2)
	assert.Equal(t, alice.ID, lb[0].PlayerID)
	assert.Equal(t, 900, lb[0].Score)
	assert.Equal(t, bob.ID, lb[1].PlayerID)
}

func TestBanThenUnban_AllowsRejoin(t *testing.T) {
	r := newTestRoom(t)
	p, err := r.AddPlayer("Alice", "sock-1")
	require.NoError(t, err)
	_, err = r.Ban(p.ID)
	require.NoError(t, err)

	_, err = r.AddPlayer("Alice", "sock-2")
	require.Error(t, err)

	r.Unban("Alice")
	_, err = r.AddPlayer("Alice", "sock-3")
	require.NoError(t, err)
}

func timePtr(t time.Time) *time.Time { return &t }
