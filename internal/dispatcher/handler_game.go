package dispatcher

import (
	"context"
	"encoding/json"

	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/protocol"
	"github.com/kwizo/quizroom/internal/roomerr"
)

func (h *Handler) handleSubmitAnswer(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.SubmitAnswerPayload](raw)
	if err != nil {
		return err
	}
	return h.game.SubmitAnswer(ctx, conn.ID, payload.AnswerIndex)
}

func (h *Handler) handleTimerSync(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.PINPayload](raw)
	if err != nil {
		return err
	}
	if !pin.IsValid(payload.PIN) {
		return roomerr.New(roomerr.Validation, "invalid pin")
	}
	sync, ok, err := h.game.RequestTimerSync(ctx, payload.PIN)
	if err != nil {
		return err
	}
	if !ok {
		h.hub.ToSocket(conn.ID, protocol.EventTimerSync, protocol.TimerTickPayload{})
		return nil
	}
	h.hub.ToSocket(conn.ID, protocol.EventTimerSync, protocol.TimerTickPayload{
		ServerTime:  sync.ServerTime.UnixMilli(),
		EndTime:     sync.EndTime.UnixMilli(),
		RemainingMs: sync.RemainingMs,
		Remaining:   int(sync.RemainingMs / 1000),
	})
	return nil
}

func (h *Handler) handleGetResults(ctx context.Context, conn *Connection, raw json.RawMessage) error {
	payload, err := decode[protocol.PINPayload](raw)
	if err != nil {
		return err
	}
	entries, err := h.game.GetResults(ctx, payload.PIN)
	if err != nil {
		return err
	}
	views := make([]protocol.LeaderboardEntryView, len(entries))
	for i, e := range entries {
		views[i] = protocol.LeaderboardEntryView{PlayerID: e.PlayerID, Nickname: e.Nickname, Score: e.Score, Rank: e.Rank}
	}
	h.hub.ToSocket(conn.ID, protocol.EventLeaderboard, protocol.LeaderboardPayload{Entries: views})
	return nil
}
