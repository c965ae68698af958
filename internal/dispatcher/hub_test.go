package dispatcher

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwizo/quizroom/internal/pin"
)

func newTestConnection(id string) *Connection {
	return &Connection{
		ID:   id,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		log:  zerolog.Nop(),
	}
}

func drain(t *testing.T, c *Connection) map[string]json.RawMessage {
	t.Helper()
	var env struct {
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}
	select {
	case msg := <-c.send:
		require.NoError(t, json.Unmarshal(msg, &env))
	default:
		t.Fatalf("expected a queued message for %s, got none", c.ID)
	}
	return map[string]json.RawMessage{env.Event: env.Payload}
}

func TestHub_ToRoom_FansOutToEveryMember(t *testing.T) {
	h := NewHub()
	a := newTestConnection("a")
	b := newTestConnection("b")
	outsider := newTestConnection("outsider")
	h.Register(a)
	h.Register(b)
	h.Register(outsider)

	h.JoinRoom(pin.PIN("111111"), "a")
	h.JoinRoom(pin.PIN("111111"), "b")

	h.ToRoom(pin.PIN("111111"), "game_started", nil)

	assert.Contains(t, drain(t, a), "game_started")
	assert.Contains(t, drain(t, b), "game_started")
	select {
	case <-outsider.send:
		t.Fatal("outsider should not have received the room broadcast")
	default:
	}
}

func TestHub_ToSocket_DeliversToExactlyOneSocket(t *testing.T) {
	h := NewHub()
	a := newTestConnection("a")
	b := newTestConnection("b")
	h.Register(a)
	h.Register(b)

	h.ToSocket("a", "room_created", nil)

	assert.Contains(t, drain(t, a), "room_created")
	select {
	case <-b.send:
		t.Fatal("b should not have received a's unicast")
	default:
	}
}

func TestHub_Unregister_RemovesFromEveryRoomGroup(t *testing.T) {
	h := NewHub()
	a := newTestConnection("a")
	h.Register(a)
	h.JoinRoom(pin.PIN("222222"), "a")

	h.Unregister(a)

	h.ToRoom(pin.PIN("222222"), "room_closed", nil)
	select {
	case <-a.send:
		t.Fatal("unregistered connection should not receive further broadcasts")
	default:
	}
}

func TestHub_LeaveRoom_StopsFutureBroadcasts(t *testing.T) {
	h := NewHub()
	a := newTestConnection("a")
	h.Register(a)
	h.JoinRoom(pin.PIN("333333"), "a")
	h.LeaveRoom(pin.PIN("333333"), "a")

	h.ToRoom(pin.PIN("333333"), "room_closed", nil)
	select {
	case <-a.send:
		t.Fatal("left connection should not receive the room broadcast")
	default:
	}
}

func TestHub_ToSocket_NoopForUnknownSocket(t *testing.T) {
	h := NewHub()
	assert.NotPanics(t, func() {
		h.ToSocket("ghost", "error", nil)
	})
}
