// Package usecase implements the Room use-cases (C5) and Game
// use-cases (C6) of spec.md §4.5-§4.6: orchestration that mutates a
// Room through its invariant-preserving methods, persists through the
// repository, and emits outbound socket events while still holding
// the room's write lock (spec.md §4.8, §5 and §9: "outbound events are
// emitted before releasing the lock to preserve ordering").
package usecase

import "github.com/kwizo/quizroom/internal/pin"

// Broadcaster is the narrow emission contract use-cases depend on,
// implemented by the socket dispatcher (C8). Keeping it here (rather
// than importing the dispatcher) avoids a dependency cycle: the
// dispatcher depends on usecase, not the other way around.
type Broadcaster interface {
	// ToRoom emits event/payload to every socket joined to pin's group.
	ToRoom(p pin.PIN, event string, payload any)
	// ToSocket emits event/payload to exactly one socket.
	ToSocket(socketID string, event string, payload any)
}
