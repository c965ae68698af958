package usecase

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kwizo/quizroom/config"
	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/quiz"
	"github.com/kwizo/quizroom/internal/roomrepo"
	"github.com/kwizo/quizroom/internal/timer"
)

// recordedEvent captures one call into a fakeBroadcaster, room-wide or
// unicast, for assertions in use-case tests.
type recordedEvent struct {
	target  string // pin string for ToRoom, socketID for ToSocket
	event   string
	payload any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeBroadcaster) ToRoom(p pin.PIN, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{target: string(p), event: event, payload: payload})
}

func (f *fakeBroadcaster) ToSocket(socketID string, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{target: socketID, event: event, payload: payload})
}

func (f *fakeBroadcaster) since(from int) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedEvent, len(f.events)-from)
	copy(out, f.events[from:])
	return out
}

func (f *fakeBroadcaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeBroadcaster) hasEvent(event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.event == event {
			return true
		}
	}
	return false
}

func testCfg() *config.RoomConfig {
	return &config.RoomConfig{
		PlayerGracePeriod: 120 * time.Second,
		HostGracePeriod:   300 * time.Second,
		JoinLockTTL:       10 * time.Second,
		PinMaxAttempts:    50,
		ReaperInterval:    10 * time.Second,
		TimerTick:         50 * time.Millisecond,
	}
}

func oneQuestionQuiz(id string, points, timeLimitSec int) quiz.Quiz {
	return quiz.Quiz{
		ID:             id,
		Title:          "Test Quiz",
		TotalQuestions: 1,
		Questions: []quiz.Question{
			{Text: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1, TimeLimitSeconds: timeLimitSec, Points: points},
		},
	}
}

func twoQuestionQuiz(id string) quiz.Quiz {
	return quiz.Quiz{
		ID:             id,
		Title:          "Two Question Quiz",
		TotalQuestions: 2,
		Questions: []quiz.Question{
			{Text: "2+2?", Options: []string{"3", "4"}, CorrectIndex: 1, TimeLimitSeconds: 10, Points: 1000},
			{Text: "3+3?", Options: []string{"6", "7"}, CorrectIndex: 0, TimeLimitSeconds: 10, Points: 1000},
		},
	}
}

// testHarness wires a RoomUseCases + GameUseCases pair sharing a
// repository, quiz set, broadcaster and timer service.
type testHarness struct {
	repo    *roomrepo.Memory
	quizzes *quiz.StaticRepository
	bc      *fakeBroadcaster
	timers  *timer.Service
	rooms   *RoomUseCases
	game    *GameUseCases
}

func newHarness(cfg *config.RoomConfig, quizzes ...quiz.Quiz) *testHarness {
	repo := roomrepo.NewMemory()
	qr := quiz.NewStaticRepository(quizzes...)
	bc := &fakeBroadcaster{}
	timers := timer.NewService(cfg.TimerTick)
	log := zerolog.Nop()
	return &testHarness{
		repo:    repo,
		quizzes: qr,
		bc:      bc,
		timers:  timers,
		rooms:   NewRoomUseCases(repo, qr, bc, timers, cfg, log),
		game:    NewGameUseCases(repo, qr, bc, timers, cfg, log),
	}
}
