package roomrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kwizo/quizroom/internal/pin"
	"github.com/kwizo/quizroom/internal/room"
	"github.com/kwizo/quizroom/internal/roomerr"
	"github.com/kwizo/quizroom/internal/token"
)

// Redis is an alternate Repository backed by a shared Redis instance,
// satisfying the same interface as Memory so the use-case layer never
// needs to know which backing store is active (spec.md §1: "a Room
// repository interface is specified so a distributed backing store
// can be substituted"). Rooms are stored as a single JSON blob per
// PIN; tokens and socket ids are indexed as separate string keys
// pointing back at the PIN, following the key-per-lookup convention
// the pack's Redis-using services use for presence and scheduling
// data (e.g. sorted-set members keyed by round-trip id).
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

const (
	roomKeyPrefix        = "quizroom:room:"
	socketKeyPrefix      = "quizroom:sock:"
	hostTokenKeyPrefix   = "quizroom:htok:"
	playerTokenKeyPrefix = "quizroom:ptok:"
	specTokenKeyPrefix   = "quizroom:stok:"
)

// NewRedis dials url (a redis:// connection string) and returns a
// Repository. ttl bounds how long an idle room's keys survive a Redis
// eviction; 0 disables expiry.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opt), ttl: ttl}, nil
}

func (r *Redis) roomKey(p pin.PIN) string     { return roomKeyPrefix + string(p) }
func (r *Redis) sockKey(id string) string     { return socketKeyPrefix + id }
func (r *Redis) hTokKey(t token.Token) string { return hostTokenKeyPrefix + string(t) }
func (r *Redis) pTokKey(t token.Token) string { return playerTokenKeyPrefix + string(t) }
func (r *Redis) sTokKey(t token.Token) string { return specTokenKeyPrefix + string(t) }

// indexKeysOf returns the set of index keys (host/player/spectator
// token keys and socket keys) that rm's current fields resolve to.
// Used by Save to diff against the previously-persisted room and clear
// index entries whose value has since changed, mirroring
// Memory.reindexLocked's clear-then-rewrite approach.
func (r *Redis) indexKeysOf(rm *room.Room) map[string]struct{} {
	keys := make(map[string]struct{})
	keys[r.hTokKey(rm.HostToken)] = struct{}{}
	if rm.HostSocketID != "" {
		keys[r.sockKey(rm.HostSocketID)] = struct{}{}
	}
	for _, snap := range rm.Players() {
		p, ok := rm.Player(snap.ID)
		if !ok {
			continue
		}
		keys[r.pTokKey(p.Token)] = struct{}{}
		if p.SocketID != "" {
			keys[r.sockKey(p.SocketID)] = struct{}{}
		}
	}
	for _, snap := range rm.Spectators() {
		s, ok := rm.Spectator(snap.ID)
		if !ok {
			continue
		}
		keys[r.sTokKey(s.Token)] = struct{}{}
		if s.SocketID != "" {
			keys[r.sockKey(s.SocketID)] = struct{}{}
		}
	}
	return keys
}

func (r *Redis) Save(ctx context.Context, rm *room.Room) error {
	dto := rm.Export()
	blob, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}

	var staleKeys map[string]struct{}
	if previous, err := r.FindByPIN(ctx, rm.PIN); err == nil {
		staleKeys = r.indexKeysOf(previous)
	} else if roomerr.KindOf(err) != roomerr.NotFound {
		return fmt.Errorf("reading previous room %s for reindex: %w", rm.PIN, err)
	}
	freshKeys := r.indexKeysOf(rm)

	pipe := r.client.TxPipeline()
	for key := range staleKeys {
		if _, stillLive := freshKeys[key]; !stillLive {
			pipe.Del(ctx, key)
		}
	}
	pipe.Set(ctx, r.roomKey(rm.PIN), blob, r.ttl)
	pipe.Set(ctx, r.hTokKey(rm.HostToken), string(rm.PIN), r.ttl)
	if rm.HostSocketID != "" {
		pipe.Set(ctx, r.sockKey(rm.HostSocketID), socketIndexValue(rm.PIN, RoleHost, ""), r.ttl)
	}
	for _, snap := range rm.Players() {
		p, ok := rm.Player(snap.ID)
		if !ok {
			continue
		}
		pipe.Set(ctx, r.pTokKey(p.Token), playerIndexValue(rm.PIN, p.ID), r.ttl)
		if p.SocketID != "" {
			pipe.Set(ctx, r.sockKey(p.SocketID), socketIndexValue(rm.PIN, RolePlayer, p.ID), r.ttl)
		}
	}
	for _, snap := range rm.Spectators() {
		s, ok := rm.Spectator(snap.ID)
		if !ok {
			continue
		}
		pipe.Set(ctx, r.sTokKey(s.Token), playerIndexValue(rm.PIN, s.ID), r.ttl)
		if s.SocketID != "" {
			pipe.Set(ctx, r.sockKey(s.SocketID), socketIndexValue(rm.PIN, RoleSpectator, s.ID), r.ttl)
		}
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("saving room %s: %w", rm.PIN, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, p pin.PIN) error {
	rm, err := r.FindByPIN(ctx, p)
	if err != nil {
		if roomerr.KindOf(err) == roomerr.NotFound {
			return nil
		}
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.roomKey(p))
	pipe.Del(ctx, r.hTokKey(rm.HostToken))
	if rm.HostSocketID != "" {
		pipe.Del(ctx, r.sockKey(rm.HostSocketID))
	}
	for _, snap := range rm.Players() {
		if pl, ok := rm.Player(snap.ID); ok {
			pipe.Del(ctx, r.pTokKey(pl.Token))
			if pl.SocketID != "" {
				pipe.Del(ctx, r.sockKey(pl.SocketID))
			}
		}
	}
	for _, snap := range rm.Spectators() {
		if sp, ok := rm.Spectator(snap.ID); ok {
			pipe.Del(ctx, r.sTokKey(sp.Token))
			if sp.SocketID != "" {
				pipe.Del(ctx, r.sockKey(sp.SocketID))
			}
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Exists(ctx context.Context, p pin.PIN) bool {
	n, err := r.client.Exists(ctx, r.roomKey(p)).Result()
	return err == nil && n > 0
}

func (r *Redis) FindByPIN(ctx context.Context, p pin.PIN) (*room.Room, error) {
	blob, err := r.client.Get(ctx, r.roomKey(p)).Bytes()
	if err == redis.Nil {
		return nil, roomerr.New(roomerr.NotFound, "room not found")
	}
	if err != nil {
		return nil, fmt.Errorf("fetching room %s: %w", p, err)
	}
	var dto room.DTO
	if err := json.Unmarshal(blob, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", p, err)
	}
	return room.Restore(dto), nil
}

func (r *Redis) FindBySocketID(ctx context.Context, socketID string) (*room.Room, SocketBinding, error) {
	raw, err := r.client.Get(ctx, r.sockKey(socketID)).Result()
	if err == redis.Nil {
		return nil, SocketBinding{}, roomerr.New(roomerr.NotFound, "socket not bound to a room")
	}
	if err != nil {
		return nil, SocketBinding{}, fmt.Errorf("fetching socket index %s: %w", socketID, err)
	}
	p, role, participantID := parseSocketIndexValue(raw)
	rm, err := r.FindByPIN(ctx, p)
	if err != nil {
		return nil, SocketBinding{}, err
	}
	return rm, SocketBinding{Room: rm, Role: role, ParticipantID: participantID}, nil
}

func (r *Redis) FindByHostToken(ctx context.Context, t token.Token) (*room.Room, error) {
	p, err := r.client.Get(ctx, r.hTokKey(t)).Result()
	if err == redis.Nil {
		return nil, roomerr.New(roomerr.NotFound, "unknown host token")
	}
	if err != nil {
		return nil, fmt.Errorf("fetching host token index: %w", err)
	}
	return r.FindByPIN(ctx, pin.PIN(p))
}

func (r *Redis) FindByPlayerToken(ctx context.Context, t token.Token) (*room.Room, *room.Player, error) {
	raw, err := r.client.Get(ctx, r.pTokKey(t)).Result()
	if err == redis.Nil {
		return nil, nil, roomerr.New(roomerr.NotFound, "unknown player token")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("fetching player token index: %w", err)
	}
	p, playerID := parsePlayerIndexValue(raw)
	rm, err := r.FindByPIN(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	pl, ok := rm.Player(playerID)
	if !ok {
		return nil, nil, roomerr.New(roomerr.NotFound, "player not found")
	}
	return rm, pl, nil
}

func (r *Redis) FindBySpectatorToken(ctx context.Context, t token.Token) (*room.Room, *room.Spectator, error) {
	raw, err := r.client.Get(ctx, r.sTokKey(t)).Result()
	if err == redis.Nil {
		return nil, nil, roomerr.New(roomerr.NotFound, "unknown spectator token")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("fetching spectator token index: %w", err)
	}
	p, spectatorID := parsePlayerIndexValue(raw)
	rm, err := r.FindByPIN(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	sp, ok := rm.Spectator(spectatorID)
	if !ok {
		return nil, nil, roomerr.New(roomerr.NotFound, "spectator not found")
	}
	return rm, sp, nil
}

// AllRooms scans the room-key namespace. Its callers are the reaper's
// 10s sweep (spec.md §4.9), FindByHostUserID and the /stats endpoint,
// so a SCAN-based sweep is cheap enough to avoid KEYS's O(n) blocking
// behavior.
func (r *Redis) AllRooms(ctx context.Context) ([]*room.Room, error) {
	var rooms []*room.Room
	iter := r.client.Scan(ctx, 0, roomKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		blob, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var dto room.DTO
		if err := json.Unmarshal(blob, &dto); err != nil {
			continue
		}
		rooms = append(rooms, room.Restore(dto))
	}
	return rooms, iter.Err()
}

// FindByHostUserID scans every room blob, same caveat as AllRooms:
// fine for the rare get_my_room/force_close_room verbs, not for a hot
// path.
func (r *Redis) FindByHostUserID(ctx context.Context, hostUserID string) (*room.Room, error) {
	all, err := r.AllRooms(ctx)
	if err != nil {
		return nil, err
	}
	for _, rm := range all {
		if rm.HostID == hostUserID {
			return rm, nil
		}
	}
	return nil, roomerr.New(roomerr.NotFound, "no room for host")
}

func socketIndexValue(p pin.PIN, role Role, participantID string) string {
	return string(p) + "|" + string(role) + "|" + participantID
}

func parseSocketIndexValue(raw string) (pin.PIN, Role, string) {
	var p, role, participantID string
	parts := splitN3(raw)
	p, role, participantID = parts[0], parts[1], parts[2]
	return pin.PIN(p), Role(role), participantID
}

func playerIndexValue(p pin.PIN, participantID string) string {
	return string(p) + "|" + participantID
}

func parsePlayerIndexValue(raw string) (pin.PIN, string) {
	parts := splitN2(raw)
	return pin.PIN(parts[0]), parts[1]
}

// splitN2/splitN3 avoid pulling in strings.SplitN for a two/three-field
// "|"-joined index value.
func splitN2(s string) [2]string {
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			return [2]string{s[:i], s[i+1:]}
		}
	}
	return [2]string{s, ""}
}

func splitN3(s string) [3]string {
	first := splitN2(s)
	rest := splitN2(first[1])
	return [3]string{first[0], rest[0], rest[1]}
}
