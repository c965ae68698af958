// Package timer implements the per-room authoritative countdown
// (spec.md §4.7): one active timer per PIN, a 1 Hz tick broadcast, and
// a one-shot expiry callback into the game use-cases. The tick loop
// follows the teacher's gameLoop goroutine-plus-select-plus-stopChan
// shape (FenixDeveloper-vector-racer-v2/server/internal/game/room.go),
// generalized from a 60 Hz physics/20 Hz broadcast pair to a single 1 Hz
// broadcast tick with an absolute deadline.
package timer

import (
	"sync"
	"time"

	"github.com/kwizo/quizroom/internal/pin"
)

// Sync is the clock-correction payload spec.md §4.7 broadcasts:
// absolute serverTime and endTime so a client can compute
// remaining = endTime - (localNow - (localNow - serverTime)) regardless
// of clock skew.
type Sync struct {
	ServerTime  time.Time
	EndTime     time.Time
	RemainingMs int64
	DurationMs  int64
}

func newSync(start, end time.Time) Sync {
	remaining := time.Until(end).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	return Sync{
		ServerTime:  time.Now(),
		EndTime:     end,
		RemainingMs: remaining,
		DurationMs:  end.Sub(start).Milliseconds(),
	}
}

type entry struct {
	startTime time.Time
	endTime   time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func (e *entry) stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Service runs at most one timer per PIN.
type Service struct {
	mu         sync.Mutex
	timers     map[pin.PIN]*entry
	tickPeriod time.Duration
}

// NewService builds a timer Service broadcasting ticks at tickPeriod
// (spec.md §6.3 timerTickMs, default 1s).
func NewService(tickPeriod time.Duration) *Service {
	if tickPeriod <= 0 {
		tickPeriod = time.Second
	}
	return &Service{timers: make(map[pin.PIN]*entry), tickPeriod: tickPeriod}
}

// Start stops any existing timer for p, then starts a new one lasting
// duration. onTick is called at tickPeriod cadence (and once
// immediately) with the current Sync; onExpire is called exactly once
// when the deadline passes, unless Stop is called first. The immediate
// onTick runs on the caller's goroutine; later ticks and onExpire run
// on the timer's own goroutine. Callbacks must not block for long, since the caller is expected to briefly acquire the room's
// write lock inside them (spec.md §5: "Timer callbacks ... MUST
// acquire the same room lock before calling any use-case").
func (s *Service) Start(p pin.PIN, duration time.Duration, onTick func(Sync), onExpire func()) Sync {
	s.Stop(p)

	now := time.Now()
	e := &entry{startTime: now, endTime: now.Add(duration), stopCh: make(chan struct{})}

	s.mu.Lock()
	s.timers[p] = e
	s.mu.Unlock()

	initial := newSync(e.startTime, e.endTime)
	go s.run(p, e, onTick, onExpire)
	if onTick != nil {
		onTick(initial)
	}
	return initial
}

func (s *Service) run(p pin.PIN, e *entry, onTick func(Sync), onExpire func()) {
	ticker := time.NewTicker(s.tickPeriod)
	defer ticker.Stop()

	deadline := time.NewTimer(time.Until(e.endTime))
	defer deadline.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-deadline.C:
			s.mu.Lock()
			if s.timers[p] == e {
				delete(s.timers, p)
			}
			s.mu.Unlock()
			if onExpire != nil {
				onExpire()
			}
			return
		case <-ticker.C:
			if onTick != nil {
				onTick(newSync(e.startTime, e.endTime))
			}
		}
	}
}

// Stop cancels p's timer if one is running. Idempotent and safe
// against late ticks: the entry's stopCh close guards the goroutine,
// and a stale entry pointer can never win the delete race in run().
func (s *Service) Stop(p pin.PIN) {
	s.mu.Lock()
	e, ok := s.timers[p]
	if ok {
		delete(s.timers, p)
	}
	s.mu.Unlock()
	if ok {
		e.stop()
	}
}

// Sync returns the current countdown state for a reconnecting client,
// and false if no timer is running for p.
func (s *Service) Sync(p pin.PIN) (Sync, bool) {
	s.mu.Lock()
	e, ok := s.timers[p]
	s.mu.Unlock()
	if !ok {
		return Sync{}, false
	}
	return newSync(e.startTime, e.endTime), true
}

// StopAll cancels every running timer, for process shutdown (spec.md
// §9: "Module-level timer/room maps ... stopAll() on shutdown to
// guarantee callbacks cease").
func (s *Service) StopAll() {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.timers))
	for p, e := range s.timers {
		entries = append(entries, e)
		delete(s.timers, p)
	}
	s.mu.Unlock()
	for _, e := range entries {
		e.stop()
	}
}
