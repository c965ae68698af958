package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/kwizo/quizroom/internal/auth"
	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/protocol"
	"github.com/kwizo/quizroom/internal/ratelimit"
	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/kwizo/quizroom/internal/usecase"
)

// Handler routes inbound envelopes to the use-case layers, translating
// their typed errors into outbound error{} events and their results
// into the outbound events spec.md §6.1 names. One Handler serves
// every connection the process holds.
type Handler struct {
	hub       *Hub
	rooms     *usecase.RoomUseCases
	game      *usecase.GameUseCases
	verifier  *auth.Verifier
	limiter   *ratelimit.Limiter
	log       zerolog.Logger
}

// NewHandler wires a Handler over the shared use-case layers.
func NewHandler(hub *Hub, rooms *usecase.RoomUseCases, game *usecase.GameUseCases, verifier *auth.Verifier, limiter *ratelimit.Limiter, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, rooms: rooms, game: game, verifier: verifier, limiter: limiter, log: log}
}

// OnMessage is passed to Connection.ReadPump; it rate-limits, decodes
// the envelope, and dispatches to the matching use-case call.
func (h *Handler) OnMessage(conn *Connection, raw []byte) {
	if !h.limiter.Allow(conn.ID) {
		h.sendError(conn, roomerr.New(roomerr.Validation, "rate limit exceeded"))
		return
	}

	var env protocol.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(conn, roomerr.New(roomerr.Validation, "malformed envelope"))
		return
	}

	ctx := context.Background()
	if err := h.dispatch(ctx, conn, env); err != nil {
		h.sendError(conn, err)
	}
}

// OnClose is called once, from the connection's own goroutine, when
// its socket closes for any reason. It runs the same disconnect policy
// spec.md §4.5 describes for any other transport-level drop.
func (h *Handler) OnClose(conn *Connection) {
	h.limiter.Forget(conn.ID)
	h.hub.Unregister(conn)
	if err := h.rooms.HandleDisconnect(context.Background(), conn.ID); err != nil && roomerr.KindOf(err) != roomerr.NotFound {
		h.log.Warn().Err(err).Str("socketId", conn.ID).Msg("dispatcher: disconnect handling failed")
	}
}

func (h *Handler) sendError(conn *Connection, err error) {
	kind := roomerr.KindOf(err)
	message := roomerr.MessageOf(err)
	if kind == "" {
		kind = roomerr.Validation
		message = "internal error"
	}
	h.hub.ToSocket(conn.ID, protocol.EventError, protocol.ErrorPayload{Error: string(kind), Message: message})
}

func (h *Handler) dispatch(ctx context.Context, conn *Connection, env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventCreateRoom:
		return h.handleCreateRoom(ctx, conn, env.Payload)
	case protocol.EventGetMyRoom:
		return h.handleGetMyRoom(ctx, conn, env.Payload)
	case protocol.EventForceCloseRoom:
		return h.handleForceCloseRoom(ctx, conn, env.Payload)
	case protocol.EventJoinRoom:
		return h.handleJoinRoom(ctx, conn, env.Payload)
	case protocol.EventJoinAsSpectator:
		return h.handleJoinAsSpectator(ctx, conn, env.Payload)
	case protocol.EventLeaveRoom:
		return h.handleLeaveRoom(ctx, conn)
	case protocol.EventLeaveSpectator:
		return h.handleLeaveSpectator(ctx, conn)
	case protocol.EventCloseRoom:
		return h.handleCloseRoom(ctx, conn, env.Payload)
	case protocol.EventReconnectHost:
		return h.handleReconnectHost(ctx, conn, env.Payload)
	case protocol.EventReconnectPlayer:
		return h.handleReconnectPlayer(ctx, conn, env.Payload)
	case protocol.EventReconnectSpec:
		return h.handleReconnectSpectator(ctx, conn, env.Payload)
	case protocol.EventStartGame:
		return h.withHostPIN(env.Payload, func(p, hostUserID string) error {
			return h.game.StartGame(ctx, p, hostUserID)
		})
	case protocol.EventStartAnswering:
		return h.withHostPIN(env.Payload, func(p, hostUserID string) error {
			return h.game.StartAnswering(ctx, p, hostUserID)
		})
	case protocol.EventEndAnswering:
		return h.withHostPIN(env.Payload, func(p, hostUserID string) error {
			return h.game.EndAnswering(ctx, p, hostUserID)
		})
	case protocol.EventShowLeaderboard:
		return h.withHostPIN(env.Payload, func(p, hostUserID string) error {
			return h.game.ShowLeaderboard(ctx, p, hostUserID)
		})
	case protocol.EventNextQuestion:
		return h.withHostPIN(env.Payload, func(p, hostUserID string) error {
			return h.game.NextQuestion(ctx, p, hostUserID)
		})
	case protocol.EventPauseGame:
		return h.withHostPIN(env.Payload, func(p, hostUserID string) error {
			return h.game.PauseGame(ctx, p, hostUserID)
		})
	case protocol.EventResumeGame:
		return h.withHostPIN(env.Payload, func(p, hostUserID string) error {
			return h.game.ResumeGame(ctx, p, hostUserID)
		})
	case protocol.EventSubmitAnswer:
		return h.handleSubmitAnswer(ctx, conn, env.Payload)
	case protocol.EventKickPlayer:
		return h.handlePlayerAction(ctx, env.Payload, h.rooms.KickPlayer)
	case protocol.EventBanPlayer:
		return h.handlePlayerAction(ctx, env.Payload, h.rooms.BanPlayer)
	case protocol.EventUnbanNickname:
		return h.handleUnbanNickname(ctx, env.Payload)
	case protocol.EventGetPlayers:
		return h.handleGetPlayers(ctx, conn, env.Payload)
	case protocol.EventGetSpectators:
		return h.handleGetSpectators(ctx, conn, env.Payload)
	case protocol.EventGetBannedNames:
		return h.handleGetBannedNames(ctx, conn, env.Payload)
	case protocol.EventRequestTimerSync:
		return h.handleTimerSync(ctx, conn, env.Payload)
	case protocol.EventGetResults:
		return h.handleGetResults(ctx, conn, env.Payload)
	default:
		return roomerr.New(roomerr.Validation, "unknown event")
	}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, roomerr.New(roomerr.Validation, "malformed payload")
	}
	return v, nil
}

func (h *Handler) verifyHost(authToken string) (string, error) {
	return h.verifier.VerifyHostToken(authToken)
}

// withHostPIN decodes a PINPayload, verifies its AuthToken, and calls
// fn with the PIN and resolved host user id. Every host-verb event
// whose only argument is a PIN (start_game, end_answering, ...) goes
// through this one helper.
func (h *Handler) withHostPIN(raw json.RawMessage, fn func(pinStr, hostUserID string) error) error {
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
	return fn(payload.PIN, hostUserID)
}
