package dispatcher

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kwizo/quizroom/internal/pin"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Connection wraps one upgraded WebSocket, grounded on the teacher's
// ClientConnection: a buffered outbound channel drained by its own
// writePump goroutine, so a slow client never blocks the hub.
type Connection struct {
	ID   string
	ws   *websocket.Conn
	hub  *Hub
	send chan []byte
	done chan struct{}

	// RoomPIN is the room this socket currently belongs to, empty when
	// not joined to any room. Only the connection's own readPump
	// goroutine and the handler invoked from it mutate this field.
	RoomPIN pin.PIN

	log zerolog.Logger
}

// NewConnection wraps an upgraded websocket.Conn with a fresh socket ID.
func NewConnection(id string, ws *websocket.Conn, hub *Hub, log zerolog.Logger) *Connection {
	return &Connection{
		ID:   id,
		ws:   ws,
		hub:  hub,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
		log:  log,
	}
}

// enqueue queues data for delivery, dropping it if the connection's
// buffer is full rather than blocking the caller (spec.md §4.8: a slow
// client must never stall broadcasts to the rest of the room).
func (c *Connection) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.log.Warn().Str("socketId", c.ID).Msg("dispatcher: dropped message, send buffer full")
	}
}

// Close is idempotent; safe to call from any goroutine.
func (c *Connection) Close() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.ws.Close()
}

// WritePump drains the send buffer to the socket and pings periodically
// to detect dead connections. Runs until Close is called or a write
// fails.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads inbound envelopes and hands each to onMessage. Runs
// until Close is called or the socket errs.
func (c *Connection) ReadPump(onMessage func(*Connection, []byte)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Str("socketId", c.ID).Msg("dispatcher: unexpected close")
			}
			return
		}
		onMessage(c, data)
	}
}
