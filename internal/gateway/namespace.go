package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrClosed     = errors.New("gateway closed")
)

// StatusMirror reflects register/unregister transitions into an external
// online-status store. Calls run off the namespace loop and are best-effort.
type StatusMirror interface {
	SetUserOnline(ctx context.Context, userID string) error
	SetUserOffline(ctx context.Context, userID string) error
}

// EventHandler processes one inbound event for a connection. A returned error
// is acknowledged back to the originating connection only.
type EventHandler func(conn *Conn, data json.RawMessage) error

type inboundEvent struct {
	conn  *Conn
	frame *Frame
}

type registration struct {
	conn     *Conn
	admitted chan bool
}

// namespace owns the registry and room membership for one logical channel and
// processes its lifecycle and inbound events through a single run loop, so
// handlers mutate shared state one event at a time.
type namespace struct {
	name     string
	registry *Registry
	rooms    *Rooms
	handlers map[string]EventHandler

	register   chan *registration
	unregister chan *Conn
	inbound    chan *inboundEvent

	ctx    context.Context
	cancel context.CancelFunc
	closed int32

	status StatusMirror

	// Per-namespace lifecycle hooks
	onConnect    func(conn *Conn)
	onDisconnect func(conn *Conn)
}

func newNamespace(name string, status StatusMirror) *namespace {
	ctx, cancel := context.WithCancel(context.Background())

	return &namespace{
		name:       name,
		registry:   NewRegistry(),
		rooms:      NewRooms(),
		handlers:   make(map[string]EventHandler),
		register:   make(chan *registration),
		unregister: make(chan *Conn),
		inbound:    make(chan *inboundEvent, 64),
		ctx:        ctx,
		cancel:     cancel,
		status:     status,
	}
}

func (ns *namespace) handle(event string, handler EventHandler) {
	ns.handlers[event] = handler
}

func (ns *namespace) run() {
	slog.Info("Namespace started", "namespace", ns.name)

	for {
		select {
		case reg := <-ns.register:
			reg.admitted <- ns.admitConn(reg.conn)

		case conn := <-ns.unregister:
			ns.teardownConn(conn)

		case evt := <-ns.inbound:
			ns.dispatch(evt)

		case <-ns.ctx.Done():
			slog.Info("Namespace shutting down", "namespace", ns.name)
			return
		}
	}
}

// admit registers the connection through the run loop and blocks until the
// registration has been processed, so no inbound event can be handled before
// the connection is fully admitted.
func (ns *namespace) admit(conn *Conn) error {
	if ns.isClosed() {
		return ErrClosed
	}

	reg := &registration{conn: conn, admitted: make(chan bool, 1)}

	select {
	case ns.register <- reg:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout registering connection %s", conn.id)
	case <-ns.ctx.Done():
		return ErrClosed
	}

	select {
	case ok := <-reg.admitted:
		if !ok {
			return ErrConnClosed
		}
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout admitting connection %s", conn.id)
	}
}

func (ns *namespace) admitConn(conn *Conn) bool {
	// A disconnect may have raced the handshake; never register a dead
	// connection.
	if conn.isClosed() {
		slog.Debug("Skipping registration of closed connection", "namespace", ns.name, "connID", conn.id)
		return false
	}

	ns.registry.Register(conn)
	ns.rooms.Join(conn, userRoom(conn.user.ID))
	ns.rooms.Join(conn, userTypeRoom(string(conn.user.UserType)))

	slog.Info("User connected", "namespace", ns.name, "userID", conn.user.ID, "userType", conn.user.UserType, "connID", conn.id)

	if ns.status != nil {
		go func(userID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := ns.status.SetUserOnline(ctx, userID); err != nil {
				slog.Error("Failed to mirror user online", "namespace", ns.name, "userID", userID, "error", err)
			}
		}(conn.user.ID)
	}

	if ns.onConnect != nil {
		ns.onConnect(conn)
	}
	return true
}

func (ns *namespace) teardownConn(conn *Conn) {
	current := ns.registry.Unregister(conn)
	ns.rooms.Drop(conn)

	if ns.onDisconnect != nil {
		ns.onDisconnect(conn)
	}

	conn.close()
	conn.closeSendChannel()

	slog.Info("User disconnected", "namespace", ns.name, "userID", conn.user.ID, "connID", conn.id)

	// A superseded connection disconnecting must not mark the user offline.
	if current && ns.status != nil {
		go func(userID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := ns.status.SetUserOffline(ctx, userID); err != nil {
				slog.Error("Failed to mirror user offline", "namespace", ns.name, "userID", userID, "error", err)
			}
		}(conn.user.ID)
	}
}

// dispatch routes one inbound event to its handler. Handler panics and errors
// are contained per event: they are logged, acknowledged to the originating
// connection, and never affect the namespace or other connections.
func (ns *namespace) dispatch(evt *inboundEvent) {
	if evt.conn.isClosed() {
		return
	}

	handler, ok := ns.handlers[evt.frame.Event]
	if !ok {
		slog.Warn("Unknown event", "namespace", ns.name, "event", evt.frame.Event, "userID", evt.conn.user.ID)
		evt.conn.Emit(EventError, map[string]string{"code": "UNKNOWN_EVENT", "message": "unknown event: " + evt.frame.Event})
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Handler panic", "namespace", ns.name, "event", evt.frame.Event, "userID", evt.conn.user.ID, "panic", r)
			evt.conn.Emit(EventError, map[string]string{"code": "EVENT_FAILED", "message": "internal error handling " + evt.frame.Event})
		}
	}()

	if err := handler(evt.conn, evt.frame.Data); err != nil {
		slog.Error("Handler error", "namespace", ns.name, "event", evt.frame.Event, "userID", evt.conn.user.ID, "error", err)
		evt.conn.Emit(EventError, map[string]string{"code": "EVENT_FAILED", "message": err.Error()})
	}
}

func (ns *namespace) isClosed() bool {
	return atomic.LoadInt32(&ns.closed) == 1
}

// close tears the namespace down synchronously: every connection is closed
// and the run loop stops. No further events are accepted.
func (ns *namespace) close() {
	if !atomic.CompareAndSwapInt32(&ns.closed, 0, 1) {
		return
	}

	for _, conn := range ns.registry.Snapshot() {
		conn.close()
		conn.closeSendChannel()
		conn.sock.Close()
	}
	ns.cancel()
}

func (ns *namespace) connectedCount() int {
	return ns.registry.Count()
}
