package gateway

import (
	"log/slog"
	"sync"
)

// Registry maps each user to the single active connection in one namespace.
// Registering a new connection for a user unconditionally supersedes the
// previous mapping; the superseded connection stays alive at the transport
// level until it disconnects on its own, but the registry no longer reaches
// it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
	}
}

// Register stores the mapping for conn's user, overwriting any existing one.
// Last connection wins.
func (r *Registry) Register(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[conn.user.ID]; ok && old != conn {
		slog.Info("Superseding existing connection", "userID", conn.user.ID, "oldConnID", old.id, "newConnID", conn.id)
	}
	r.conns[conn.user.ID] = conn
}

// Unregister removes the mapping only if it still points at conn, guarding a
// stale disconnect racing a newer connect for the same user.
func (r *Registry) Unregister(conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[conn.user.ID]; ok && current == conn {
		delete(r.conns, conn.user.ID)
		return true
	}
	return false
}

func (r *Registry) Get(userID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[userID]
	return conn, ok
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.conns[userID]
	return ok
}

// EmitToUser pushes one event to the user's live connection. Returns false
// when no mapping exists; the event is then dropped without further effect.
func (r *Registry) EmitToUser(userID, event string, payload interface{}) bool {
	conn, ok := r.Get(userID)
	if !ok {
		return false
	}
	return conn.Emit(event, payload) == nil
}

// EmitToAll pushes one event to every registered connection.
func (r *Registry) EmitToAll(event string, payload interface{}) {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.Emit(event, payload)
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

// Snapshot returns the currently registered connections.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}
