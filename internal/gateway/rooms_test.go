package gateway

import (
	"testing"

	"realtime-service/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomsJoinLeaveIdempotent(t *testing.T) {
	ns := newNamespace("test", nil)
	rooms := NewRooms()
	conn := newTestConn(ns, "user-1", auth.UserTypeClient)

	rooms.Join(conn, "room-a")
	rooms.Join(conn, "room-a")
	rooms.Join(conn, "room-a")

	assert.True(t, rooms.Contains(conn, "room-a"))
	assert.Equal(t, 1, rooms.MemberCount("room-a"))

	rooms.Leave(conn, "room-a")
	rooms.Leave(conn, "room-a")

	assert.False(t, rooms.Contains(conn, "room-a"))
	assert.Equal(t, 0, rooms.MemberCount("room-a"))
}

func TestRoomsLeaveWithoutJoinIsNoop(t *testing.T) {
	ns := newNamespace("test", nil)
	rooms := NewRooms()
	conn := newTestConn(ns, "user-1", auth.UserTypeClient)

	rooms.Leave(conn, "never-joined")

	assert.Equal(t, 0, rooms.MemberCount("never-joined"))
}

func TestRoomsBroadcastReachesOnlyCurrentMembers(t *testing.T) {
	ns := newNamespace("test", nil)
	rooms := NewRooms()
	connA := newTestConn(ns, "user-a", auth.UserTypeClient)
	connB := newTestConn(ns, "user-b", auth.UserTypeDeveloper)
	connC := newTestConn(ns, "user-c", auth.UserTypeDeveloper)

	rooms.Join(connA, "room-1")
	rooms.Join(connB, "room-1")
	rooms.Join(connC, "room-2")

	rooms.Broadcast("room-1", "test:event", map[string]string{"x": "y"})

	require.Len(t, drainFrames(t, connA), 1)
	require.Len(t, drainFrames(t, connB), 1)
	assert.Empty(t, drainFrames(t, connC))
}

func TestRoomsBroadcastExceptSkipsSender(t *testing.T) {
	ns := newNamespace("test", nil)
	rooms := NewRooms()
	connA := newTestConn(ns, "user-a", auth.UserTypeClient)
	connB := newTestConn(ns, "user-b", auth.UserTypeDeveloper)

	rooms.Join(connA, "room-1")
	rooms.Join(connB, "room-1")

	rooms.BroadcastExcept("room-1", connA, "test:event", nil)

	assert.Empty(t, drainFrames(t, connA))
	assert.Len(t, drainFrames(t, connB), 1)
}

func TestRoomsBroadcastToEmptyRoomIsNoop(t *testing.T) {
	rooms := NewRooms()

	// Must not panic or error.
	rooms.Broadcast("empty-room", "test:event", nil)
}

func TestRoomsDropRemovesAllMemberships(t *testing.T) {
	ns := newNamespace("test", nil)
	rooms := NewRooms()
	conn := newTestConn(ns, "user-1", auth.UserTypeClient)

	rooms.Join(conn, "room-a")
	rooms.Join(conn, "room-b")
	rooms.Join(conn, "room-c")

	left := rooms.Drop(conn)

	assert.ElementsMatch(t, []string{"room-a", "room-b", "room-c"}, left)
	assert.False(t, rooms.Contains(conn, "room-a"))
	assert.False(t, rooms.Contains(conn, "room-b"))
	assert.False(t, rooms.Contains(conn, "room-c"))
}
