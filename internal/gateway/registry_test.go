package gateway

import (
	"testing"

	"realtime-service/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	ns := newNamespace("test", nil)
	registry := NewRegistry()
	conn := newTestConn(ns, "user-1", auth.UserTypeClient)

	registry.Register(conn)

	assert.True(t, registry.IsOnline("user-1"))
	assert.False(t, registry.IsOnline("user-2"))
	assert.Equal(t, 1, registry.Count())

	got, ok := registry.Get("user-1")
	require.True(t, ok)
	assert.Same(t, conn, got)
}

func TestRegistryLastConnectionWins(t *testing.T) {
	ns := newNamespace("test", nil)
	registry := NewRegistry()
	connA := newTestConn(ns, "user-1", auth.UserTypeClient)
	connB := newTestConn(ns, "user-1", auth.UserTypeClient)

	registry.Register(connA)
	registry.Register(connB)

	got, ok := registry.Get("user-1")
	require.True(t, ok)
	assert.Same(t, connB, got)
	assert.Equal(t, 1, registry.Count())

	// Delivery reaches only the superseding connection.
	require.True(t, registry.EmitToUser("user-1", "test:event", map[string]string{"k": "v"}))
	assert.Empty(t, drainFrames(t, connA))
	framesB := drainFrames(t, connB)
	require.Len(t, framesB, 1)
	assert.Equal(t, "test:event", framesB[0].Event)
}

func TestRegistryUnregisterOnlyRemovesCurrentMapping(t *testing.T) {
	ns := newNamespace("test", nil)
	registry := NewRegistry()
	connA := newTestConn(ns, "user-1", auth.UserTypeClient)
	connB := newTestConn(ns, "user-1", auth.UserTypeClient)

	registry.Register(connA)
	registry.Register(connB)

	// A stale disconnect from the superseded connection must not evict B.
	assert.False(t, registry.Unregister(connA))
	assert.True(t, registry.IsOnline("user-1"))

	assert.True(t, registry.Unregister(connB))
	assert.False(t, registry.IsOnline("user-1"))
}

func TestRegistryEmitToUnknownUserHasNoEffect(t *testing.T) {
	registry := NewRegistry()

	delivered := registry.EmitToUser("missing", "test:event", nil)

	assert.False(t, delivered)
	assert.Equal(t, 0, registry.Count())
}

func TestRegistryEmitToAll(t *testing.T) {
	ns := newNamespace("test", nil)
	registry := NewRegistry()
	connA := newTestConn(ns, "user-1", auth.UserTypeClient)
	connB := newTestConn(ns, "user-2", auth.UserTypeDeveloper)

	registry.Register(connA)
	registry.Register(connB)

	registry.EmitToAll("test:event", map[string]string{"hello": "world"})

	assert.Len(t, drainFrames(t, connA), 1)
	assert.Len(t, drainFrames(t, connB), 1)
}
