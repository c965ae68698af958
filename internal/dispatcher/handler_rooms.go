package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/protocol"
	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/roomerr"
)

func (h *Handler) handleCreateRoom(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.CreateRoomPayload](raw)
	if err != nil {
		return err
	}
	hostUserID, err := h.verifyHost(payload.AuthToken)
	if err != nil {
		return err
	}

	r, q, err := h.rooms.CreateRoom(ctx, hostUserID, payload.QuizID, conn.ID)
	if err != nil {
		return err
	}

	conn.RoomPIN = r.PIN
	h.hub.JoinRoom(r.PIN, conn.ID)
	h.hub.ToSocket(conn.ID, protocol.EventRoomCreated, protocol.RoomCreatedPayload{
		PIN: string(r.PIN), HostToken: string(r.HostToken), TotalQuestions: q.TotalQuestions, QuizTitle: q.Title,
	})
	return nil
}

func (h *Handler) handleGetMyRoom(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.AuthOnlyPayload](raw)
	if err != nil {
		return err
	}
	hostUserID, err := h.verifyHost(payload.AuthToken)
	if err != nil {
		return err
	}
	r, err := h.rooms.GetMyRoom(ctx, hostUserID)
	if err != nil {
		return err
	}
	r.RLock()
	view := protocol.MyRoomPayload{PIN: string(r.PIN), State: string(r.State()), TotalQuestions: r.TotalQuestions}
	r.RUnlock()
	h.hub.ToSocket(conn.ID, protocol.EventMyRoom, view)
	return nil
}

func (h *Handler) handleForceCloseRoom(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.AuthOnlyPayload](raw)
	if err != nil {
		return err
	}
	hostUserID, err := h.verifyHost(payload.AuthToken)
	if err != nil {
		return err
	}
	return h.rooms.ForceCloseRoomByHost(ctx, hostUserID)
}

func (h *Handler) handleJoinRoom(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.JoinRoomPayload](raw)
	if err != nil {
		return err
	}
	if !pin.IsValid(payload.PIN) {
		return roomerr.New(roomerr.Validation, "invalid pin")
	}

	r, p, err := h.rooms.JoinRoom(ctx, payload.PIN, payload.Nickname, conn.ID)
	if err != nil {
		return err
	}

	conn.RoomPIN = r.PIN
	h.hub.JoinRoom(r.PIN, conn.ID)
	r.RLock()
	players := toPlayerViews(r.Players())
	r.RUnlock()
	h.hub.ToSocket(conn.ID, protocol.EventRoomJoined, protocol.RoomJoinedPayload{
		PIN: string(r.PIN), PlayerID: p.ID, PlayerToken: string(p.Token), Players: players,
	})
	return nil
}

func (h *Handler) handleJoinAsSpectator(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.JoinRoomPayload](raw)
	if err != nil {
		return err
	}
	if !pin.IsValid(payload.PIN) {
		return roomerr.New(roomerr.Validation, "invalid pin")
	}

	r, s, err := h.rooms.JoinAsSpectator(ctx, payload.PIN, payload.Nickname, conn.ID)
	if err != nil {
		return err
	}

	conn.RoomPIN = r.PIN
	h.hub.JoinRoom(r.PIN, conn.ID)
	r.RLock()
	spectators := toSpectatorViews(r.Spectators())
	r.RUnlock()
	h.hub.ToSocket(conn.ID, protocol.EventRoomJoinedSpectator, protocol.RoomJoinedSpectatorPayload{
		PIN: string(r.PIN), SpectatorID: s.ID, SpectatorToken: string(s.Token), Spectators: spectators,
	})
	return nil
}

func (h *Handler) handleLeaveRoom(ctx context.Context, conn *Connection) error {
	p := conn.RoomPIN
	if err := h.rooms.LeaveRoom(ctx, conn.ID); err != nil {
		return err
	}
	if p != "" {
		h.hub.LeaveRoom(p, conn.ID)
		conn.RoomPIN = ""
	}
	return nil
}

func (h *Handler) handleLeaveSpectator(ctx context.Context, conn *Connection) error {
	p := conn.RoomPIN
	if err := h.rooms.LeaveSpectator(ctx, conn.ID); err != nil {
		return err
	}
	if p != "" {
		h.hub.LeaveRoom(p, conn.ID)
		conn.RoomPIN = ""
	}
	return nil
}

func (h *Handler) handleCloseRoom(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.PINPayload](raw)
	if err != nil {
		return err
	}
	if !pin.IsValid(payload.PIN) {
		return roomerr.New(roomerr.Validation, "invalid pin")
	}
	hostUserID, err := h.verifyHost(payload.AuthToken)
	if err != nil {
		return err
	}
	return h.rooms.CloseRoom(ctx, payload.PIN, hostUserID, "host_closed")
}

func (h *Handler) handleReconnectHost(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.ReconnectHostPayload](raw)
	if err != nil {
		return err
	}
	if !pin.IsValid(payload.PIN) {
		return roomerr.New(roomerr.Validation, "invalid pin")
	}
	hostUserID, err := h.verifyHost(payload.AuthToken)
	if err != nil {
		return err
	}

	r, err := h.rooms.ReconnectHost(ctx, payload.PIN, payload.HostToken, conn.ID)
	if err != nil {
		return err
	}
	r.RLock()
	isHost := r.HostID == hostUserID
	r.RUnlock()
	if !isHost {
		return roomerr.New(roomerr.Forbidden, "token/identity mismatch")
	}

	conn.RoomPIN = r.PIN
	h.hub.JoinRoom(r.PIN, conn.ID)
	h.hub.ToSocket(conn.ID, protocol.EventHostReconnected, protocol.MyRoomPayload{
		PIN: string(r.PIN), State: string(r.State()), TotalQuestions: r.TotalQuestions,
	})
	return nil
}

func (h *Handler) handleReconnectPlayer(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.ReconnectPlayerPayload](raw)
	if err != nil {
		return err
	}
	r, p, err := h.rooms.ReconnectPlayer(ctx, payload.PlayerToken, conn.ID)
	if err != nil {
		return err
	}
	conn.RoomPIN = r.PIN
	h.hub.JoinRoom(r.PIN, conn.ID)
	h.hub.ToSocket(conn.ID, protocol.EventPlayerReconnected, protocol.RoomJoinedPayload{
		PIN: string(r.PIN), PlayerID: p.ID, PlayerToken: string(p.Token),
	})
	return nil
}

func (h *Handler) handleReconnectSpectator(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.ReconnectSpectatorPayload](raw)
	if err != nil {
		return err
	}
	r, s, err := h.rooms.ReconnectSpectator(ctx, payload.SpectatorToken, conn.ID)
	if err != nil {
		return err
	}
	conn.RoomPIN = r.PIN
	h.hub.JoinRoom(r.PIN, conn.ID)
	h.hub.ToSocket(conn.ID, protocol.EventSpectatorReconnected, protocol.RoomJoinedSpectatorPayload{
		PIN: string(r.PIN), SpectatorID: s.ID, SpectatorToken: string(s.Token),
	})
	return nil
}

func (h *Handler) handlePlayerAction(ctx context.Context, raw json.RawMessage, fn func(ctx context.Context, pinStr, hostUserID, playerID string) error) error {
	payload, err := decode[protocol.PlayerActionPayload](raw)
	if err != nil {
		return err
	}
	if !pin.IsValid(payload.PIN) {
		return roomerr.New(roomerr.Validation, "invalid pin")
	}
	hostUserID, err := h.verifyHost(payload.AuthToken)
	if err != nil {
		return err
	}
	return fn(ctx, payload.PIN, hostUserID, payload.PlayerID)
}

func (h *Handler) handleUnbanNickname(ctx context.Context, raw json.RawMessage) error {
	payload, err := decode[protocol.UnbanNicknamePayload](raw)
	if err != nil {
		return err
	}
	if !pin.IsValid(payload.PIN) {
		return roomerr.New(roomerr.Validation, "invalid pin")
	}
	hostUserID, err := h.verifyHost(payload.AuthToken)
	if err != nil {
		return err
	}
	return h.rooms.UnbanNickname(ctx, payload.PIN, hostUserID, payload.Nickname)
}

func (h *Handler) handleGetPlayers(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.PINPayload](raw)
	if err != nil {
		return err
	}
	snaps, err := h.rooms.GetPlayers(ctx, payload.PIN)
	if err != nil {
		return err
	}
	h.hub.ToSocket(conn.ID, protocol.EventPlayersList, protocol.PlayersListPayload{Players: toPlayerViews(snaps)})
	return nil
}

func (h *Handler) handleGetSpectators(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.PINPayload](raw)
	if err != nil {
		return err
	}
	snaps, err := h.rooms.GetSpectators(ctx, payload.PIN)
	if err != nil {
		return err
	}
	h.hub.ToSocket(conn.ID, protocol.EventSpectatorsList, protocol.SpectatorsListPayload{Spectators: toSpectatorViews(snaps)})
	return nil
}

func (h *Handler) handleGetBannedNames(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.PINPayload](raw)
	if err != nil {
		return err
	}
	names, err := h.rooms.GetBannedNicknames(ctx, payload.PIN)
	if err != nil {
		return err
	}
	h.hub.ToSocket(conn.ID, protocol.EventBannedNicknames, protocol.BannedNicknamesPayload{Nicknames: names})
	return nil
}

func toPlayerViews(snaps []room.Snapshot) []protocol.PlayerView {
	out := make([]protocol.PlayerView, len(snaps))
	for i, s := range snaps {
		out[i] = protocol.PlayerView{ID: s.ID, Nickname: s.Nickname, Score: s.Score, Streak: s.Streak, Connected: s.Connected}
	}
	return out
}

func toSpectatorViews(snaps []room.SpectatorSnapshot) []protocol.SpectatorView {
	out := make([]protocol.SpectatorView, len(snaps))
	for i, s := range snaps {
		out[i] = protocol.SpectatorView{ID: s.ID, Nickname: s.Nickname, Connected: s.Connected}
	}
	return out
}
