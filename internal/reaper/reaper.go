// Package reaper implements the periodic sweep (spec.md §4.9): closing
// rooms whose host grace period has elapsed, hard-removing players
// whose disconnect grace period has elapsed, and sweeping the
// process-wide join-lock map. Grounded on the teacher's matchmaker
// cleanup goroutine (internal/matchmaker/matchmaker.go's ticker-driven
// sweep), adapted from a single in-memory map walk to a repository-wide
// AllRooms() scan so it works against both the in-memory and Redis
// repositories.
package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kwizo/quizroom/config"
	"github.com/kwizo/quizroom/internal/metrics"
	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/protocol"
	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/usecase"
)

// rooms is the narrow surface the reaper needs from RoomUseCases, kept
// as an interface so tests can exercise the sweep loop against a fake.
type rooms interface {
	AllRooms(ctx context.Context) ([]*room.Room, error)
	ForceCloseRoom(ctx context.Context, r *room.Room, reason string) error
	ExpirePlayerGrace(ctx context.Context, r *room.Room, playerID string) error
	SweepJoinLocks()
	Config() *config.RoomConfig
	Broadcast() usecase.Broadcaster
}

// Reaper runs the background sweep on a fixed interval until Stop is
// called.
type Reaper struct {
	uc                rooms
	interval          time.Duration
	playerGracePeriod time.Duration
	hostGracePeriod   time.Duration
	log               zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}

	warnedMu sync.Mutex
	warned   map[pin.PIN]time.Time // pin -> disconnectedAt already warned for
}

// New builds a Reaper reading its grace periods from cfg (spec.md §6.3
// defaults: 120s player grace, 300s host grace, 10s sweep interval).
func New(uc rooms, log zerolog.Logger) *Reaper {
	cfg := uc.Config()
	return &Reaper{
		uc:                uc,
		interval:          cfg.ReaperInterval,
		playerGracePeriod: cfg.PlayerGracePeriod,
		hostGracePeriod:   cfg.HostGracePeriod,
		log:               log,
		stopCh:            make(chan struct{}),
		doneCh:            make(chan struct{}),
		warned:            make(map[pin.PIN]time.Time),
	}
}

// Start runs the sweep loop in its own goroutine. Call Stop to end it.
func (rp *Reaper) Start() {
	go rp.run()
}

// Stop blocks until the current sweep (if any) finishes and the loop
// goroutine exits.
func (rp *Reaper) Stop() {
	close(rp.stopCh)
	<-rp.doneCh
}

func (rp *Reaper) run() {
	defer close(rp.doneCh)
	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()
	for {
		select {
		case <-rp.stopCh:
			return
		case <-ticker.C:
			rp.sweepOnce(context.Background())
		}
	}
}

// sweepOnce performs one pass over every room, closing rooms whose host
// grace has expired and hard-removing players whose disconnect grace
// has expired. Failures are logged and suppressed (spec.md §7) so one
// bad room never stalls the sweep.
func (rp *Reaper) sweepOnce(ctx context.Context) {
	rp.uc.SweepJoinLocks()

	all, err := rp.uc.AllRooms(ctx)
	if err != nil {
		rp.log.Error().Err(err).Msg("reaper: failed to list rooms")
		return
	}

	now := time.Now()
	for _, r := range all {
		if closed := rp.closeIfHostGraceExpired(ctx, r, now); closed {
			continue
		}
		rp.warnIfHostGraceHalfElapsed(r, now)
		rp.expireStalePlayers(ctx, r, now)
	}
}

func (rp *Reaper) closeIfHostGraceExpired(ctx context.Context, r *room.Room, now time.Time) bool {
	r.RLock()
	disconnectedAt := r.HostDisconnectedAt
	r.RUnlock()
	if disconnectedAt == nil || now.Sub(*disconnectedAt) < rp.hostGracePeriod {
		return false
	}

	if err := rp.uc.ForceCloseRoom(ctx, r, "Host reconnection timeout"); err != nil {
		rp.log.Error().Err(err).Str("pin", string(r.PIN)).Msg("reaper: failed to close room on host grace expiry")
		return false
	}
	rp.warnedMu.Lock()
	delete(rp.warned, r.PIN)
	rp.warnedMu.Unlock()
	metrics.ReaperClosuresTotal.Inc()
	rp.log.Info().Str("pin", string(r.PIN)).Msg("reaper: closed room, host grace expired")
	return true
}

// warnIfHostGraceHalfElapsed emits host_disconnected_warning once a given
// disconnect episode has run half the host grace period, and at most once
// per episode (keyed by the specific HostDisconnectedAt value so a
// reconnect-then-disconnect cycle re-arms the warning).
func (rp *Reaper) warnIfHostGraceHalfElapsed(r *room.Room, now time.Time) {
	r.RLock()
	disconnectedAt := r.HostDisconnectedAt
	r.RUnlock()
	if disconnectedAt == nil {
		rp.warnedMu.Lock()
		delete(rp.warned, r.PIN)
		rp.warnedMu.Unlock()
		return
	}
	if now.Sub(*disconnectedAt) < rp.hostGracePeriod/2 {
		return
	}

	rp.warnedMu.Lock()
	if already, ok := rp.warned[r.PIN]; ok && already.Equal(*disconnectedAt) {
		rp.warnedMu.Unlock()
		return
	}
	rp.warned[r.PIN] = *disconnectedAt
	rp.warnedMu.Unlock()

	rp.uc.Broadcast().ToRoom(r.PIN, protocol.EventHostDisconnectedWarn, protocol.PINPayload{PIN: string(r.PIN)})
	rp.log.Info().Str("pin", string(r.PIN)).Msg("reaper: warned room of pending host grace expiry")
}

func (rp *Reaper) expireStalePlayers(ctx context.Context, r *room.Room, now time.Time) {
	r.RLock()
	var stale []string
	for _, snap := range r.Players() {
		p, ok := r.Player(snap.ID)
		if !ok || p.DisconnectedAt == nil {
			continue
		}
		if now.Sub(*p.DisconnectedAt) >= rp.playerGracePeriod {
			stale = append(stale, snap.ID)
		}
	}
	r.RUnlock()

	for _, playerID := range stale {
		if err := rp.uc.ExpirePlayerGrace(ctx, r, playerID); err != nil {
			rp.log.Error().Err(err).Str("pin", string(r.PIN)).Str("playerId", playerID).Msg("reaper: failed to expire player")
			continue
		}
		metrics.ReaperPlayerRemovalsTotal.Inc()
	}
}
