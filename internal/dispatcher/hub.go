// Package dispatcher implements C8 (spec.md §4.8): the WebSocket
// transport layer that wraps already-upgraded connections (the HTTP
// upgrade itself happens in cmd/quizroomd), reads/writes the JSON
// envelope protocol, enforces per-socket rate limiting and host JWT
// auth, and fans outbound events out to the right sockets. Grounded on
// the teacher's cmd/gameserver/main.go `ClientConnection` (buffered
// sendChan, readPump/writePump goroutine pair, ping/pong keepalive),
// generalized from a single global connection map to one that also
// tracks per-PIN broadcast groups, since a quiz room (unlike a car
// race room) broadcasts to an audience that spans three roles.
package dispatcher

import (
	"encoding/json"
	"sync"

	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/protocol"
)

// Hub tracks every live connection and which room's broadcast group
// each belongs to. It implements usecase.Broadcaster.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Connection    // socketID -> connection
	rooms map[pin.PIN]map[string]struct{} // pin -> set of socketIDs
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*Connection),
		rooms: make(map[pin.PIN]map[string]struct{}),
	}
}

// Register adds a newly-upgraded connection to the registry.
func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID] = c
}

// Unregister removes a connection from the registry and every room
// group it belonged to. Safe to call more than once.
func (h *Hub) Unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.ID)
	for p, members := range h.rooms {
		if _, ok := members[c.ID]; ok {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, p)
			}
		}
	}
}

// JoinRoom adds socketID to p's broadcast group.
func (h *Hub) JoinRoom(p pin.PIN, socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[p]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[p] = members
	}
	members[socketID] = struct{}{}
}

// LeaveRoom removes socketID from p's broadcast group.
func (h *Hub) LeaveRoom(p pin.PIN, socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[p]
	if !ok {
		return
	}
	delete(members, socketID)
	if len(members) == 0 {
		delete(h.rooms, p)
	}
}

// ToRoom implements usecase.Broadcaster: emits event/payload to every
// socket currently joined to p's group.
func (h *Hub) ToRoom(p pin.PIN, event string, payload any) {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for socketID := range h.rooms[p] {
		if c, ok := h.conns[socketID]; ok {
			c.enqueue(data)
		}
	}
}

// ToSocket implements usecase.Broadcaster: emits event/payload to
// exactly one socket, a no-op if that socket is no longer connected.
func (h *Hub) ToSocket(socketID string, event string, payload any) {
	data, err := encodeEnvelope(event, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	c, ok := h.conns[socketID]
	h.mu.RUnlock()
	if ok {
		c.enqueue(data)
	}
}

func encodeEnvelope(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(protocol.Envelope{Event: event, Payload: raw})
}
