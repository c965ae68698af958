package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kwizo/quizroom/config"
	"github.com/kwizo/quizroom/internal/metrics"
	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/protocol"
	"github.com/kwizo/quizroom/internal/quiz"
	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/kwizo/quizroom/internal/roomrepo"
	"github.com/kwizo/quizroom/internal/timer"
	"github.com/kwizo/quizroom/internal/token"
)

// RoomUseCases implements C5 (spec.md §4.5): room lifecycle,
// admission control, and disconnect/reconnect handling.
type RoomUseCases struct {
	repo      roomrepo.Repository
	quizzes   quiz.Repository
	broadcast Broadcaster
	timers    *timer.Service
	cfg       *config.RoomConfig
	joinLocks *joinLock
	log       zerolog.Logger
}

// NewRoomUseCases wires a RoomUseCases. timers is shared with
// GameUseCases so Close/Disconnect can stop a room's active timer.
func NewRoomUseCases(repo roomrepo.Repository, quizzes quiz.Repository, broadcast Broadcaster, timers *timer.Service, cfg *config.RoomConfig, log zerolog.Logger) *RoomUseCases {
	return &RoomUseCases{
		repo:      repo,
		quizzes:   quizzes,
		broadcast: broadcast,
		timers:    timers,
		cfg:       cfg,
		joinLocks: newJoinLock(cfg.JoinLockTTL),
		log:       log,
	}
}

// CreateRoom allocates a PIN and host token and persists a fresh room
// in WAITING_PLAYERS (spec.md §4.5 "Create").
func (u *RoomUseCases) CreateRoom(ctx context.Context, hostUserID, quizID, hostSocketID string) (*room.Room, quiz.Quiz, error) {
	q, err := u.quizzes.FindByID(ctx, quizID)
	if err != nil {
		return nil, quiz.Quiz{}, err
	}

	p, err := pin.Allocate(roomrepo.AsExistence(ctx, u.repo), u.cfg.PinMaxAttempts)
	if err != nil {
		return nil, quiz.Quiz{}, err
	}
	hostTok, err := token.Generate()
	if err != nil {
		return nil, quiz.Quiz{}, roomerr.Wrap(roomerr.Validation, "failed to issue host token", err)
	}

	r := room.New(uuid.NewString(), p, hostUserID, hostTok, quizID, q.TotalQuestions)
	r.Lock()
	r.BindHostSocket(hostSocketID)
	err = u.repo.Save(ctx, r)
	r.Unlock()
	if err != nil {
		return nil, quiz.Quiz{}, err
	}

	metrics.RoomsCreatedTotal.Inc()
	metrics.RoomsActive.Inc()
	return r, q, nil
}

// JoinRoom admits a player, guarded by the per-(pin,nickname) join
// lock described in spec.md §4.5.
func (u *RoomUseCases) JoinRoom(ctx context.Context, pinStr, nickname, socketID string) (*room.Room, *room.Player, error) {
	if !pin.IsValid(pinStr) {
		return nil, nil, roomerr.New(roomerr.Validation, "invalid pin")
	}
	if err := room.ValidateNickname(nickname); err != nil {
		return nil, nil, err
	}

	normalized := room.NormalizeNickname(nickname)
	key := joinLockKey(pinStr, normalized)
	if !u.joinLocks.tryAcquire(key) {
		return nil, nil, roomerr.New(roomerr.Conflict, "JoinInProgress")
	}
	defer u.joinLocks.release(key)

	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		return nil, nil, err
	}

	r.Lock()
	p, err := r.AddPlayer(nickname, socketID)
	if err != nil {
		r.Unlock()
		metrics.JoinsTotal.WithLabelValues("rejected").Inc()
		return nil, nil, err
	}
	err = u.repo.Save(ctx, r)
	if err != nil {
		r.Unlock()
		return nil, nil, err
	}

	u.broadcast.ToRoom(r.PIN, protocol.EventPlayerJoined, protocol.PlayerView{
		ID: p.ID, Nickname: p.Nickname, Score: p.Score, Streak: p.Streak, Connected: true,
	})
	r.Unlock()

	metrics.JoinsTotal.WithLabelValues("accepted").Inc()
	metrics.PlayersConnected.Inc()
	return r, p, nil
}

// JoinAsSpectator admits a spectator; spectators may join in any state.
func (u *RoomUseCases) JoinAsSpectator(ctx context.Context, pinStr, nickname, socketID string) (*room.Room, *room.Spectator, error) {
	if !pin.IsValid(pinStr) {
		return nil, nil, roomerr.New(roomerr.Validation, "invalid pin")
	}

	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		return nil, nil, err
	}

	r.Lock()
	defer r.Unlock()

	s, err := r.AddSpectator(nickname, socketID)
	if err != nil {
		return nil, nil, err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return nil, nil, err
	}

	u.broadcast.ToRoom(r.PIN, protocol.EventSpectatorJoined, protocol.SpectatorView{
		ID: s.ID, Nickname: s.Nickname, Connected: true,
	})
	return r, s, nil
}

// LeaveRoom removes a player by socket id, hard-removing regardless of
// grace (an explicit leave, unlike a disconnect, spec.md §4.5).
func (u *RoomUseCases) LeaveRoom(ctx context.Context, socketID string) error {
	r, binding, err := u.repo.FindBySocketID(ctx, socketID)
	if err != nil {
		return err
	}
	if binding.Role != roomrepo.RolePlayer {
		return roomerr.New(roomerr.Forbidden, "socket is not bound as a player")
	}

	r.Lock()
	defer r.Unlock()
	r.RemovePlayer(socketID)
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventPlayerLeft, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: binding.ParticipantID})
	metrics.PlayersConnected.Dec()
	return nil
}

// LeaveSpectator removes a spectator by socket id.
func (u *RoomUseCases) LeaveSpectator(ctx context.Context, socketID string) error {
	r, binding, err := u.repo.FindBySocketID(ctx, socketID)
	if err != nil {
		return err
	}
	if binding.Role != roomrepo.RoleSpectator {
		return roomerr.New(roomerr.Forbidden, "socket is not bound as a spectator")
	}

	r.Lock()
	defer r.Unlock()
	r.RemoveSpectator(socketID)
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventSpectatorLeft, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: binding.ParticipantID})
	return nil
}

// CloseRoom deletes the room; host only. Idempotent: closing a PIN
// that no longer exists is not an error (spec.md §8).
func (u *RoomUseCases) CloseRoom(ctx context.Context, pinStr, hostUserID, reason string) error {
	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		if roomerr.KindOf(err) == roomerr.NotFound {
			return nil
		}
		return err
	}

	r.Lock()
	if r.HostID != hostUserID {
		r.Unlock()
		return roomerr.New(roomerr.Forbidden, "only the host may close this room")
	}
	r.Unlock()

	u.timers.Stop(r.PIN)
	if err := u.repo.Delete(ctx, r.PIN); err != nil {
		return err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventRoomClosed, protocol.RoomClosedPayload{Reason: reason})
	metrics.RoomsActive.Dec()
	metrics.RoomsClosedTotal.WithLabelValues(reason).Inc()
	return nil
}

// HandleDisconnect implements spec.md §4.5's disconnect policy,
// dispatched by role.
func (u *RoomUseCases) HandleDisconnect(ctx context.Context, socketID string) error {
	r, binding, err := u.repo.FindBySocketID(ctx, socketID)
	if err != nil {
		if roomerr.KindOf(err) == roomerr.NotFound {
			return nil
		}
		return err
	}

	switch binding.Role {
	case roomrepo.RoleHost:
		r.Lock()
		r.SetHostDisconnected()
		err := u.repo.Save(ctx, r)
		r.Unlock()
		if err != nil {
			return err
		}
		u.broadcast.ToRoom(r.PIN, protocol.EventHostDisconnected, nil)
		return nil

	case roomrepo.RolePlayer:
		r.Lock()
		defer r.Unlock()
		if r.State() == room.StateWaitingPlayers {
			r.RemovePlayer(socketID)
			if err := u.repo.Save(ctx, r); err != nil {
				return err
			}
			u.broadcast.ToRoom(r.PIN, protocol.EventPlayerLeft, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: binding.ParticipantID})
			metrics.PlayersConnected.Dec()
			return nil
		}
		r.SetPlayerDisconnected(socketID)
		if err := u.repo.Save(ctx, r); err != nil {
			return err
		}
		u.broadcast.ToRoom(r.PIN, protocol.EventPlayerLeft, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: binding.ParticipantID})
		metrics.PlayersConnected.Dec()
		return nil

	case roomrepo.RoleSpectator:
		r.Lock()
		defer r.Unlock()
		r.SetSpectatorDisconnected(socketID)
		if err := u.repo.Save(ctx, r); err != nil {
			return err
		}
		u.broadcast.ToRoom(r.PIN, protocol.EventSpectatorLeft, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: binding.ParticipantID})
		return nil
	}
	return nil
}

// ReconnectHost re-attaches the host's socket; token is never rotated.
func (u *RoomUseCases) ReconnectHost(ctx context.Context, pinStr, hostToken, newSocketID string) (*room.Room, error) {
	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		metrics.ReconnectsTotal.WithLabelValues("host", "not_found").Inc()
		return nil, err
	}

	r.Lock()
	defer r.Unlock()
	if err := r.ReconnectHost(newSocketID, token.Token(hostToken), u.cfg.HostGracePeriod); err != nil {
		metrics.ReconnectsTotal.WithLabelValues("host", string(roomerr.KindOf(err))).Inc()
		return nil, err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return nil, err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventHostReturned, nil)
	metrics.ReconnectsTotal.WithLabelValues("host", "ok").Inc()
	return r, nil
}

// ReconnectPlayer re-attaches a disconnected player's socket, rotating
// their token and syncing the active timer if any.
func (u *RoomUseCases) ReconnectPlayer(ctx context.Context, playerToken, newSocketID string) (*room.Room, *room.Player, error) {
	r, _, err := u.repo.FindByPlayerToken(ctx, token.Token(playerToken))
	if err != nil {
		metrics.ReconnectsTotal.WithLabelValues("player", "not_found").Inc()
		return nil, nil, err
	}

	r.Lock()
	defer r.Unlock()
	p, err := r.ReconnectPlayer(token.Token(playerToken), newSocketID, u.cfg.PlayerGracePeriod)
	if err != nil {
		metrics.ReconnectsTotal.WithLabelValues("player", string(roomerr.KindOf(err))).Inc()
		return nil, nil, err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return nil, nil, err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventPlayerReturned, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: p.ID})
	if s, ok := u.timers.Sync(r.PIN); ok {
		u.broadcast.ToSocket(newSocketID, protocol.EventTimerSync, protocol.TimerTickPayload{
			ServerTime:  s.ServerTime.UnixMilli(),
			EndTime:     s.EndTime.UnixMilli(),
			RemainingMs: s.RemainingMs,
			Remaining:   int(s.RemainingMs / 1000),
		})
	}
	metrics.ReconnectsTotal.WithLabelValues("player", "ok").Inc()
	metrics.PlayersConnected.Inc()
	return r, p, nil
}

// ReconnectSpectator re-attaches a disconnected spectator's socket.
func (u *RoomUseCases) ReconnectSpectator(ctx context.Context, spectatorToken, newSocketID string) (*room.Room, *room.Spectator, error) {
	r, _, err := u.repo.FindBySpectatorToken(ctx, token.Token(spectatorToken))
	if err != nil {
		metrics.ReconnectsTotal.WithLabelValues("spectator", "not_found").Inc()
		return nil, nil, err
	}

	r.Lock()
	defer r.Unlock()
	s, err := r.ReconnectSpectator(token.Token(spectatorToken), newSocketID, u.cfg.PlayerGracePeriod)
	if err != nil {
		metrics.ReconnectsTotal.WithLabelValues("spectator", string(roomerr.KindOf(err))).Inc()
		return nil, nil, err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return nil, nil, err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventSpectatorReturned, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: s.ID})
	metrics.ReconnectsTotal.WithLabelValues("spectator", "ok").Inc()
	return r, s, nil
}

// KickPlayer removes a player immediately without banning them.
func (u *RoomUseCases) KickPlayer(ctx context.Context, pinStr, hostUserID, playerID string) error {
	r, err := u.requireHost(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()

	p, err := r.Kick(playerID)
	if err != nil {
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	if p.SocketID != "" {
		u.broadcast.ToSocket(p.SocketID, protocol.EventYouWereKicked, protocol.YouWereKickedPayload{Reason: "kicked"})
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventPlayerKicked, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: playerID})
	return nil
}

// BanPlayer removes a player and blocks their normalized nickname from rejoining.
func (u *RoomUseCases) BanPlayer(ctx context.Context, pinStr, hostUserID, playerID string) error {
	r, err := u.requireHost(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()

	p, err := r.Ban(playerID)
	if err != nil {
		return err
	}
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	if p.SocketID != "" {
		u.broadcast.ToSocket(p.SocketID, protocol.EventYouWereKicked, protocol.YouWereKickedPayload{Reason: "banned"})
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventPlayerBanned, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: playerID})
	return nil
}

// UnbanNickname removes a nickname from the ban list.
func (u *RoomUseCases) UnbanNickname(ctx context.Context, pinStr, hostUserID, nickname string) error {
	r, err := u.requireHost(ctx, pinStr, hostUserID)
	if err != nil {
		return err
	}
	r.Lock()
	defer r.Unlock()

	r.Unban(nickname)
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	u.broadcast.ToRoom(r.PIN, protocol.EventNicknameUnbanned, room.NormalizeNickname(nickname))
	return nil
}

// GetPlayers returns a read-only snapshot of the room's players.
func (u *RoomUseCases) GetPlayers(ctx context.Context, pinStr string) ([]room.Snapshot, error) {
	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		return nil, err
	}
	r.RLock()
	defer r.RUnlock()
	return r.Players(), nil
}

// GetSpectators returns a read-only snapshot of the room's spectators.
func (u *RoomUseCases) GetSpectators(ctx context.Context, pinStr string) ([]room.SpectatorSnapshot, error) {
	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		return nil, err
	}
	r.RLock()
	defer r.RUnlock()
	return r.Spectators(), nil
}

// GetBannedNicknames returns the room's ban list.
func (u *RoomUseCases) GetBannedNicknames(ctx context.Context, pinStr string) ([]string, error) {
	r, err := u.repo.FindByPIN(ctx, pin.PIN(pinStr))
	if err != nil {
		return nil, err
	}
	r.RLock()
	defer r.RUnlock()
	return r.BannedNicknames(), nil
}

// GetMyRoom resolves the room a host is currently running, by JWT
// identity alone (spec.md §6.1 "get_my_room": `{}` payload, host JWT).
func (u *RoomUseCases) GetMyRoom(ctx context.Context, hostUserID string) (*room.Room, error) {
	return u.repo.FindByHostUserID(ctx, hostUserID)
}

// ForceCloseRoomByHost closes whichever room hostUserID currently runs,
// resolved by JWT identity alone (spec.md §6.1 "force_close_room").
func (u *RoomUseCases) ForceCloseRoomByHost(ctx context.Context, hostUserID string) error {
	r, err := u.repo.FindByHostUserID(ctx, hostUserID)
	if err != nil {
		return err
	}
	return u.CloseRoom(ctx, string(r.PIN), hostUserID, "force_closed")
}

func (u *RoomUseCases) requireHost(ctx context.Context, pinStr, hostUserID string) (*room.Room, error) {
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

// SweepJoinLocks drops expired join-lock entries; called by the
// reaper (spec.md §4.9: "Also sweeps join-lock map for entries older
// than JOIN_LOCK_TTL").
func (u *RoomUseCases) SweepJoinLocks() {
	u.joinLocks.sweepExpired()
}

// Config exposes the room lifecycle configuration to the reaper so it
// can read grace periods without duplicating them.
func (u *RoomUseCases) Config() *config.RoomConfig {
	return u.cfg
}

// Broadcast exposes the shared Broadcaster so the reaper can emit the
// host_disconnected_warning event partway through the host's grace
// period, without needing its own wiring to the dispatcher.
func (u *RoomUseCases) Broadcast() Broadcaster {
	return u.broadcast
}

// AllRooms exposes the repository's full room listing to the reaper's
// sweep loop.
func (u *RoomUseCases) AllRooms(ctx context.Context) ([]*room.Room, error) {
	return u.repo.AllRooms(ctx)
}

// Timers exposes the shared timer.Service. The reaper does not call it:
// ForceCloseRoom stops the room's countdown itself.
func (u *RoomUseCases) Timers() *timer.Service {
	return u.timers
}

// ForceCloseRoom closes a room unconditionally, used by the reaper when
// a host's grace period has expired (spec.md §4.9). Unlike CloseRoom it
// performs no host-identity check.
func (u *RoomUseCases) ForceCloseRoom(ctx context.Context, r *room.Room, reason string) error {
	r.Lock()
	defer r.Unlock()
	u.timers.Stop(r.PIN)
	if err := u.repo.Delete(ctx, r.PIN); err != nil {
		return err
	}
	metrics.RoomsActive.Dec()
	metrics.RoomsClosedTotal.WithLabelValues(reason).Inc()
	u.broadcast.ToRoom(r.PIN, protocol.EventRoomClosed, protocol.RoomClosedPayload{Reason: reason})
	return nil
}

// ExpirePlayerGrace hard-removes a disconnected player whose grace
// period has elapsed (spec.md §4.9).
func (u *RoomUseCases) ExpirePlayerGrace(ctx context.Context, r *room.Room, playerID string) error {
	r.Lock()
	defer r.Unlock()
	r.RemovePlayerByID(playerID)
	if err := u.repo.Save(ctx, r); err != nil {
		return err
	}
	metrics.PlayersConnected.Dec()
	u.broadcast.ToRoom(r.PIN, protocol.EventPlayerLeft, protocol.PlayerActionPayload{PIN: string(r.PIN), PlayerID: playerID})
	return nil
}
