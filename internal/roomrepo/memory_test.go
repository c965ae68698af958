package roomrepo

import (
	"context"
	"testing"

	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/token"
	"github.com/stretchr/testify/require"
)

func newSavedRoom(t *testing.T, repo *Memory) *room.Room {
	t.Helper()
	hostTok, err := token.Generate()
	require.NoError(t, err)

	r := room.New("room-1", "111111", "host-1", hostTok, "quiz-1", 1)
	r.HostSocketID = "host-sock"
	p, err := r.AddPlayer("Alice", "alice-sock")
	require.NoError(t, err)
	_ = p

	require.NoError(t, repo.Save(context.Background(), r))
	return r
}

func TestMemory_FindByPIN(t *testing.T) {
	repo := NewMemory()
	r := newSavedRoom(t, repo)

	got, err := repo.FindByPIN(context.Background(), r.PIN)
	require.NoError(t, err)
	require.Equal(t, r.ID, got.ID)
}

func TestMemory_FindBySocketID_ResolvesHostAndPlayer(t *testing.T) {
	repo := NewMemory()
	r := newSavedRoom(t, repo)

	_, binding, err := repo.FindBySocketID(context.Background(), "host-sock")
	require.NoError(t, err)
	require.Equal(t, RoleHost, binding.Role)

	_, binding, err = repo.FindBySocketID(context.Background(), "alice-sock")
	require.NoError(t, err)
	require.Equal(t, RolePlayer, binding.Role)
	require.NotEmpty(t, binding.ParticipantID)
}

func TestMemory_FindByHostAndPlayerToken(t *testing.T) {
	repo := NewMemory()
	r := newSavedRoom(t, repo)

	got, err := repo.FindByHostToken(context.Background(), r.HostToken)
	require.NoError(t, err)
	require.Equal(t, r.PIN, got.PIN)

	snaps := r.Players()
	require.Len(t, snaps, 1)
	p, ok := r.Player(snaps[0].ID)
	require.True(t, ok)

	gotRoom, gotPlayer, err := repo.FindByPlayerToken(context.Background(), p.Token)
	require.NoError(t, err)
	require.Equal(t, r.PIN, gotRoom.PIN)
	require.Equal(t, p.ID, gotPlayer.ID)
}

func TestMemory_Delete_RemovesAllIndexes(t *testing.T) {
	repo := NewMemory()
	r := newSavedRoom(t, repo)

	require.NoError(t, repo.Delete(context.Background(), r.PIN))
	require.False(t, repo.Exists(context.Background(), r.PIN))

	_, _, err := repo.FindBySocketID(context.Background(), "host-sock")
	require.Error(t, err)

	_, err = repo.FindByHostToken(context.Background(), r.HostToken)
	require.Error(t, err)
}

func TestMemory_Delete_Idempotent(t *testing.T) {
	repo := NewMemory()
	r := newSavedRoom(t, repo)

	require.NoError(t, repo.Delete(context.Background(), r.PIN))
	require.NoError(t, repo.Delete(context.Background(), r.PIN))
}

func TestMemory_AllRooms(t *testing.T) {
	repo := NewMemory()
	newSavedRoom(t, repo)

	rooms, err := repo.AllRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
}
