package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"realtime-service/internal/auth"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Outbound buffer per connection. Overflow closes the connection.
	sendBufferSize = 256
)

// socket is the subset of *websocket.Conn the pumps use. Tests substitute a
// fake.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Conn is a single authenticated WebSocket session inside one namespace. It
// is created only after a successful handshake and purged from every registry
// and room on disconnect. Never persisted.
type Conn struct {
	id   string
	user auth.UserCredential
	ns   *namespace
	sock socket
	send chan []byte

	ctx        context.Context
	cancel     context.CancelFunc
	closed     int32
	sendClosed int32

	wg sync.WaitGroup
}

func newConn(ns *namespace, sock socket, user auth.UserCredential) *Conn {
	ctx, cancel := context.WithCancel(context.Background())

	return &Conn{
		id:     uuid.New().String(),
		user:   user,
		ns:     ns,
		sock:   sock,
		send:   make(chan []byte, sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Conn) ID() string                { return c.id }
func (c *Conn) UserID() string            { return c.user.ID }
func (c *Conn) User() auth.UserCredential { return c.user }
func (c *Conn) UserType() auth.UserType   { return c.user.UserType }

func (c *Conn) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// close marks the connection as closed and cancels its context. Idempotent.
func (c *Conn) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.cancel()
		slog.Debug("Connection marked as closed", "connID", c.id, "userID", c.user.ID)
	}
}

func (c *Conn) closeSendChannel() {
	if atomic.CompareAndSwapInt32(&c.sendClosed, 0, 1) {
		close(c.send)
	}
}

// Emit queues an outbound frame for this connection. Delivery is best-effort:
// a full buffer closes the connection rather than blocking the caller.
func (c *Conn) Emit(event string, payload interface{}) error {
	if c.isClosed() {
		return ErrConnClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return err
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrConnClosed
	default:
		slog.Warn("Send buffer full, closing connection", "connID", c.id, "userID", c.user.ID)
		c.close()
		c.closeSendChannel()
		return ErrConnClosed
	}
}

func (c *Conn) readPump() {
	c.wg.Add(1)
	defer func() {
		c.wg.Done()
		c.close()

		select {
		case c.ns.unregister <- c:
		case <-time.After(5 * time.Second):
			slog.Warn("Timeout sending unregister request", "connID", c.id, "userID", c.user.ID)
		}

		if err := c.sock.Close(); err != nil {
			slog.Debug("Error closing connection", "connID", c.id, "error", err)
		}
	}()

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		if c.isClosed() {
			return websocket.ErrCloseSent
		}
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		_, raw, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "connID", c.id, "userID", c.user.ID, "error", err)
			} else {
				slog.Debug("WebSocket connection closed", "connID", c.id, "userID", c.user.ID)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			slog.Error("Failed to unmarshal frame", "connID", c.id, "userID", c.user.ID, "error", err)
			c.Emit(EventError, map[string]string{"code": "INVALID_MESSAGE", "message": "invalid message format"})
			continue
		}
		if frame.Event == "" {
			c.Emit(EventError, map[string]string{"code": "INVALID_MESSAGE", "message": "missing event name"})
			continue
		}

		select {
		case c.ns.inbound <- &inboundEvent{conn: c, frame: &frame}:
		case <-time.After(5 * time.Second):
			slog.Warn("Timeout forwarding event to namespace", "connID", c.id, "event", frame.Event)
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Conn) writePump() {
	c.wg.Add(1)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		c.wg.Done()
		ticker.Stop()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.sock.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("Error writing frame", "connID", c.id, "userID", c.user.ID, "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("Error sending ping", "connID", c.id, "userID", c.user.ID, "error", err)
				c.close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
