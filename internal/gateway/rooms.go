package gateway

import "sync"

// Rooms tracks the many-to-many membership of connections in named ephemeral
// groups and provides the fan-out primitive. A room exists only while at
// least one member is joined. Join and Leave are idempotent.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[*Conn]struct{}
	joined  map[*Conn]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[*Conn]struct{}),
		joined:  make(map[*Conn]map[string]struct{}),
	}
}

func (r *Rooms) Join(conn *Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[room] == nil {
		r.members[room] = make(map[*Conn]struct{})
	}
	r.members[room][conn] = struct{}{}

	if r.joined[conn] == nil {
		r.joined[conn] = make(map[string]struct{})
	}
	r.joined[conn][room] = struct{}{}
}

func (r *Rooms) Leave(conn *Conn, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(conn, room)
}

func (r *Rooms) leaveLocked(conn *Conn, room string) {
	if members, ok := r.members[room]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[conn]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, conn)
		}
	}
}

// Drop removes the connection from every room it joined and returns the rooms
// it left. Called once on disconnect.
func (r *Rooms) Drop(conn *Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := make([]string, 0, len(r.joined[conn]))
	for room := range r.joined[conn] {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.leaveLocked(conn, room)
	}
	return rooms
}

func (r *Rooms) Contains(conn *Conn, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[room][conn]
	return ok
}

func (r *Rooms) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members[room])
}

// Broadcast delivers one event to every connection currently joined to the
// room. Fire-and-forget, at-most-once per current member; an empty room is
// not an error.
func (r *Rooms) Broadcast(room, event string, payload interface{}) {
	r.broadcast(room, nil, event, payload)
}

// BroadcastExcept is Broadcast minus the originating connection, used for
// events the sender should not receive back (typing indicators, join/leave
// announcements).
func (r *Rooms) BroadcastExcept(room string, except *Conn, event string, payload interface{}) {
	r.broadcast(room, except, event, payload)
}

func (r *Rooms) broadcast(room string, except *Conn, event string, payload interface{}) {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.members[room]))
	for conn := range r.members[room] {
		if conn != except {
			conns = append(conns, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.Emit(event, payload)
	}
}
