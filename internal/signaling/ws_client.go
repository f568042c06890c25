package signaling

import (
	"context"
	"sync"
	"time"

	"konferans/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Upgrade parameters for the HTTP layer. SDP offers rarely exceed a few KB.
const (
	HandshakeTimeout = 10 * time.Second
	FrameBufferSize  = 4096
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	ID      string
	Conn    *websocket.Conn
	Relay   *Relay
	Manager *Manager

	send chan models.Envelope
	log  zerolog.Logger

	mu       sync.Mutex
	closed   bool
	roomID   string
	username string
	joined   bool
}

// NewWebSocketClient wraps conn with a fresh connection id.
func NewWebSocketClient(conn *websocket.Conn, relay *Relay, manager *Manager, logger zerolog.Logger) *WebSocketClient {
	id := uuid.New().String()
	return &WebSocketClient{
		ID:      id,
		Conn:    conn,
		Relay:   relay,
		Manager: manager,
		send:    make(chan models.Envelope, sendBufferSize),
		log:     logger.With().Str("client_id", id).Logger(),
	}
}

func (c *WebSocketClient) GetClientID() string { return c.ID }

func (c *WebSocketClient) GetMembership() (string, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.username, c.joined
}

func (c *WebSocketClient) SetMembership(roomID, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.username, c.joined = roomID, username, true
}

func (c *WebSocketClient) ClearMembership() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID, c.username, c.joined = "", "", false
}

func (c *WebSocketClient) Send(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// Run starts the pumps. The read pump runs on the caller's goroutine so the
// HTTP handler returns only when the connection is done.
func (c *WebSocketClient) Run() {
	go c.writePump()
	c.readPump()
}

// Close closes the send channel, which makes writePump close the socket.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Relay.Disconnect(context.Background(), c)
		if c.Manager != nil {
			c.Manager.Unregister(c)
		} else {
			c.Close()
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("Unexpected websocket close")
			}
			return
		}
		c.Relay.Handle(context.Background(), c, message)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The manager closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(env); err != nil {
				c.log.Debug().Err(err).Str("event", env.Event).Msg("Write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
