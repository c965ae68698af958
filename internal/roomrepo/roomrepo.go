// Package roomrepo defines the Room repository contract (spec.md §4.4)
// and an in-memory implementation with O(1) indexes. A Redis-backed
// alternate implementation lives in redis.go so a distributed backing
// store can be substituted without touching the use-case layer
// (spec.md §1 Non-goals: "a Room repository interface is specified so
// a distributed backing store can be substituted").
package roomrepo

import (
	"context"
	"sync"

	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/kwizo/quizroom/internal/token"
)

// Role identifies which participant a socket id resolves to.
type Role string

const (
	RoleHost      Role = "host"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// SocketBinding is what findBySocketId resolves to.
type SocketBinding struct {
	Room *room.Room
	Role Role
	// ParticipantID is empty for RoleHost.
	ParticipantID string
}

// Repository is the contract consumed by the use-case layers (C5/C6)
// and the reaper (C9). Implementations must update every index
// atomically with Save, while the caller already holds the room's
// write lock (spec.md §4.4, §5).
type Repository interface {
	Save(ctx context.Context, r *room.Room) error
	Delete(ctx context.Context, p pin.PIN) error
	Exists(ctx context.Context, p pin.PIN) bool

	FindByPIN(ctx context.Context, p pin.PIN) (*room.Room, error)
	FindBySocketID(ctx context.Context, socketID string) (*room.Room, SocketBinding, error)
	FindByHostToken(ctx context.Context, t token.Token) (*room.Room, error)
	FindByPlayerToken(ctx context.Context, t token.Token) (*room.Room, *room.Player, error)
	FindBySpectatorToken(ctx context.Context, t token.Token) (*room.Room, *room.Spectator, error)
	// FindByHostUserID is a linear scan over AllRooms, used only by the
	// rare get_my_room/force_close_room verbs (spec.md §6.1) that a
	// host invokes by JWT identity alone, with no PIN in hand.
	FindByHostUserID(ctx context.Context, hostUserID string) (*room.Room, error)

	AllRooms(ctx context.Context) ([]*room.Room, error)
}

// pin.Existence adapter so the PIN allocator can query a Repository
// directly without importing roomrepo (avoids an import cycle: pin is
// a leaf package).
type existenceAdapter struct {
	ctx  context.Context
	repo Repository
}

func (a existenceAdapter) Exists(p pin.PIN) bool { return a.repo.Exists(a.ctx, p) }

// AsExistence adapts a Repository to pin.Existence for PIN allocation.
func AsExistence(ctx context.Context, repo Repository) existenceAdapter {
	return existenceAdapter{ctx: ctx, repo: repo}
}

// Memory is the default in-memory Repository, holding the O(1) index
// maps spec.md §4.4 calls out. All index maintenance happens under idxMu,
// held only for the short duration of map mutation (spec.md §5), never
// across I/O.
type Memory struct {
	idxMu sync.Mutex

	rooms         map[pin.PIN]*room.Room
	bySocket      map[string]socketEntry
	byHostToken   map[token.Token]pin.PIN
	byPlayerToken map[token.Token]playerTokenEntry
	bySpecToken   map[token.Token]specTokenEntry
}

type socketEntry struct {
	pin           pin.PIN
	role          Role
	participantID string
}

type playerTokenEntry struct {
	pin      pin.PIN
	playerID string
}

type specTokenEntry struct {
	pin         pin.PIN
	spectatorID string
}

// NewMemory constructs an empty Memory repository.
func NewMemory() *Memory {
	return &Memory{
		rooms:         make(map[pin.PIN]*room.Room),
		bySocket:      make(map[string]socketEntry),
		byHostToken:   make(map[token.Token]pin.PIN),
		byPlayerToken: make(map[token.Token]playerTokenEntry),
		bySpecToken:   make(map[token.Token]specTokenEntry),
	}
}

// Save upserts the room and rebuilds every index derived from its
// current mutable fields. Caller must hold the room's write lock.
func (m *Memory) Save(_ context.Context, r *room.Room) error {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()

	m.rooms[r.PIN] = r
	m.reindexLocked(r)
	return nil
}

func (m *Memory) reindexLocked(r *room.Room) {
	for sock, entry := range m.bySocket {
		if entry.pin == r.PIN {
			delete(m.bySocket, sock)
		}
	}
	for tok, p := range m.byHostToken {
		if p == r.PIN {
			delete(m.byHostToken, tok)
		}
	}
	for tok, entry := range m.byPlayerToken {
		if entry.pin == r.PIN {
			delete(m.byPlayerToken, tok)
		}
	}
	for tok, entry := range m.bySpecToken {
		if entry.pin == r.PIN {
			delete(m.bySpecToken, tok)
		}
	}

	m.byHostToken[r.HostToken] = r.PIN
	if r.HostSocketID != "" {
		m.bySocket[r.HostSocketID] = socketEntry{pin: r.PIN, role: RoleHost}
	}
	for _, snap := range r.Players() {
		p, ok := r.Player(snap.ID)
		if !ok {
			continue
		}
		m.byPlayerToken[p.Token] = playerTokenEntry{pin: r.PIN, playerID: p.ID}
		if p.SocketID != "" {
			m.bySocket[p.SocketID] = socketEntry{pin: r.PIN, role: RolePlayer, participantID: p.ID}
		}
	}
	for _, snap := range r.Spectators() {
		s, ok := r.Spectator(snap.ID)
		if !ok {
			continue
		}
		m.bySpecToken[s.Token] = specTokenEntry{pin: r.PIN, spectatorID: s.ID}
		if s.SocketID != "" {
			m.bySocket[s.SocketID] = socketEntry{pin: r.PIN, role: RoleSpectator, participantID: s.ID}
		}
	}
}

// Delete removes the room and every index entry derived from it.
func (m *Memory) Delete(_ context.Context, p pin.PIN) error {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()

	r, ok := m.rooms[p]
	if !ok {
		return nil
	}
	delete(m.rooms, p)
	for sock, entry := range m.bySocket {
		if entry.pin == p {
			delete(m.bySocket, sock)
		}
	}
	for tok, pp := range m.byHostToken {
		if pp == p {
			delete(m.byHostToken, tok)
		}
	}
	for tok, entry := range m.byPlayerToken {
		if entry.pin == p {
			delete(m.byPlayerToken, tok)
		}
	}
	for tok, entry := range m.bySpecToken {
		if entry.pin == p {
			delete(m.bySpecToken, tok)
		}
	}
	_ = r
	return nil
}

func (m *Memory) Exists(_ context.Context, p pin.PIN) bool {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	_, ok := m.rooms[p]
	return ok
}

func (m *Memory) FindByPIN(_ context.Context, p pin.PIN) (*room.Room, error) {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	r, ok := m.rooms[p]
	if !ok {
		return nil, roomerr.New(roomerr.NotFound, "room not found")
	}
	return r, nil
}

func (m *Memory) FindBySocketID(_ context.Context, socketID string) (*room.Room, SocketBinding, error) {
	m.idxMu.Lock()
	entry, ok := m.bySocket[socketID]
	m.idxMu.Unlock()
	if !ok {
		return nil, SocketBinding{}, roomerr.New(roomerr.NotFound, "socket not bound to a room")
	}
	r, ok := m.rooms[entry.pin]
	if !ok {
		return nil, SocketBinding{}, roomerr.New(roomerr.NotFound, "room not found")
	}
	return r, SocketBinding{Room: r, Role: entry.role, ParticipantID: entry.participantID}, nil
}

func (m *Memory) FindByHostToken(_ context.Context, t token.Token) (*room.Room, error) {
	m.idxMu.Lock()
	p, ok := m.byHostToken[t]
	m.idxMu.Unlock()
	if !ok {
		return nil, roomerr.New(roomerr.NotFound, "unknown host token")
	}
	r, ok := m.rooms[p]
	if !ok {
		return nil, roomerr.New(roomerr.NotFound, "room not found")
	}
	return r, nil
}

func (m *Memory) FindByPlayerToken(_ context.Context, t token.Token) (*room.Room, *room.Player, error) {
	m.idxMu.Lock()
	entry, ok := m.byPlayerToken[t]
	m.idxMu.Unlock()
	if !ok {
		return nil, nil, roomerr.New(roomerr.NotFound, "unknown player token")
	}
	r, ok := m.rooms[entry.pin]
	if !ok {
		return nil, nil, roomerr.New(roomerr.NotFound, "room not found")
	}
	p, ok := r.Player(entry.playerID)
	if !ok {
		return nil, nil, roomerr.New(roomerr.NotFound, "player not found")
	}
	return r, p, nil
}

func (m *Memory) FindBySpectatorToken(_ context.Context, t token.Token) (*room.Room, *room.Spectator, error) {
	m.idxMu.Lock()
	entry, ok := m.bySpecToken[t]
	m.idxMu.Unlock()
	if !ok {
		return nil, nil, roomerr.New(roomerr.NotFound, "unknown spectator token")
	}
	r, ok := m.rooms[entry.pin]
	if !ok {
		return nil, nil, roomerr.New(roomerr.NotFound, "room not found")
	}
	s, ok := r.Spectator(entry.spectatorID)
	if !ok {
		return nil, nil, roomerr.New(roomerr.NotFound, "spectator not found")
	}
	return r, s, nil
}

func (m *Memory) AllRooms(_ context.Context) ([]*room.Room, error) {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	out := make([]*room.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out, nil
}

// FindByHostUserID reads HostID without taking the room lock: HostID is
// set once at construction and never mutated afterward, so it carries
// no data race even though other fields on the same Room do.
func (m *Memory) FindByHostUserID(_ context.Context, hostUserID string) (*room.Room, error) {
	m.idxMu.Lock()
	defer m.idxMu.Unlock()
	for _, r := range m.rooms {
		if r.HostID == hostUserID {
			return r, nil
		}
	}
	return nil, roomerr.New(roomerr.NotFound, "no room for host")
}
