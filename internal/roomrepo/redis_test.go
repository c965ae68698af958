package roomrepo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/kwizo/quizroom/internal/token"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	repo, err := NewRedis("redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	return repo
}

func TestRedis_Save_TokenRotationClearsStaleIndex(t *testing.T) {
	ctx := context.Background()
	repo := newTestRedis(t)

	hostTok, err := token.Generate()
	require.NoError(t, err)
	rm := room.New("room-1", pin.PIN("123456"), "host-user", hostTok, "demo", 1)
	p, err := rm.AddPlayer("Alice", "sock-1")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, rm))

	oldToken := p.Token
	_, foundPlayer, err := repo.FindByPlayerToken(ctx, oldToken)
	require.NoError(t, err)
	require.Equal(t, p.ID, foundPlayer.ID)

	newToken, err := token.Generate()
	require.NoError(t, err)
	p.Token = newToken
	p.SocketID = "sock-2"
	require.NoError(t, repo.Save(ctx, rm))

	_, _, err = repo.FindByPlayerToken(ctx, oldToken)
	require.Error(t, err, "the superseded player token must stop resolving after rotation")
	require.Equal(t, roomerr.NotFound, roomerr.KindOf(err))

	_, foundPlayer, err = repo.FindByPlayerToken(ctx, newToken)
	require.NoError(t, err)
	require.Equal(t, p.ID, foundPlayer.ID)

	_, _, err = repo.FindBySocketID(ctx, "sock-1")
	require.Error(t, err, "the stale socket index entry must be cleared on save")
	require.Equal(t, roomerr.NotFound, roomerr.KindOf(err))

	foundRoom, _, err := repo.FindBySocketID(ctx, "sock-2")
	require.NoError(t, err)
	require.Equal(t, rm.PIN, foundRoom.PIN)
}

func TestRedis_Save_HostTokenRotationClearsStaleIndex(t *testing.T) {
	ctx := context.Background()
	repo := newTestRedis(t)

	hostTok, err := token.Generate()
	require.NoError(t, err)
	rm := room.New("room-2", pin.PIN("654321"), "host-user", hostTok, "demo", 1)
	rm.BindHostSocket("host-sock-1")
	require.NoError(t, repo.Save(ctx, rm))

	found, err := repo.FindByHostToken(ctx, hostTok)
	require.NoError(t, err)
	require.Equal(t, rm.PIN, found.PIN)

	newHostTok, err := token.Generate()
	require.NoError(t, err)
	rm.HostToken = newHostTok
	rm.BindHostSocket("host-sock-2")
	require.NoError(t, repo.Save(ctx, rm))

	_, err = repo.FindByHostToken(ctx, hostTok)
	require.Error(t, err)
	require.Equal(t, roomerr.NotFound, roomerr.KindOf(err))

	_, _, err = repo.FindBySocketID(ctx, "host-sock-1")
	require.Error(t, err)
	require.Equal(t, roomerr.NotFound, roomerr.KindOf(err))

	_, hostBinding, err := repo.FindBySocketID(ctx, "host-sock-2")
	require.NoError(t, err)
	require.Equal(t, RoleHost, hostBinding.Role)
}

func TestRedis_Delete_RemovesRoomAndEveryIndexEntry(t *testing.T) {
	ctx := context.Background()
	repo := newTestRedis(t)

	hostTok, err := token.Generate()
	require.NoError(t, err)
	rm := room.New("room-3", pin.PIN("111222"), "host-user", hostTok, "demo", 1)
	p, err := rm.AddPlayer("Bob", "sock-bob")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, rm))

	require.NoError(t, repo.Delete(ctx, rm.PIN))

	require.False(t, repo.Exists(ctx, rm.PIN))
	_, _, err = repo.FindByPlayerToken(ctx, p.Token)
	require.Error(t, err)
	_, _, err = repo.FindBySocketID(ctx, "sock-bob")
	require.Error(t, err)

	require.NoError(t, repo.Delete(ctx, rm.PIN), "deleting an already-absent room must not error")
}
