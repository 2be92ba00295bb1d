package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceTypingLifecycle(t *testing.T) {
	presence := NewPresence()

	assert.False(t, presence.IsTyping("conv-1", "user-1"))

	presence.StartTyping("conv-1", "user-1")
	assert.True(t, presence.IsTyping("conv-1", "user-1"))
	assert.False(t, presence.IsTyping("conv-2", "user-1"))

	assert.True(t, presence.StopTyping("conv-1", "user-1"))
	assert.False(t, presence.IsTyping("conv-1", "user-1"))
}

func TestPresenceStopWithoutStart(t *testing.T) {
	presence := NewPresence()

	assert.False(t, presence.StopTyping("conv-1", "user-1"))

	presence.StartTyping("conv-1", "user-2")
	assert.False(t, presence.StopTyping("conv-1", "user-1"))
	assert.True(t, presence.IsTyping("conv-1", "user-2"))
}

func TestPresenceClearReturnsAffectedConversations(t *testing.T) {
	presence := NewPresence()

	presence.StartTyping("conv-1", "user-1")
	presence.StartTyping("conv-2", "user-1")
	presence.StartTyping("conv-2", "user-2")

	affected := presence.Clear("user-1")

	assert.ElementsMatch(t, []string{"conv-1", "conv-2"}, affected)
	assert.False(t, presence.IsTyping("conv-1", "user-1"))
	assert.False(t, presence.IsTyping("conv-2", "user-1"))
	assert.True(t, presence.IsTyping("conv-2", "user-2"))

	assert.Empty(t, presence.Clear("user-1"))
}
