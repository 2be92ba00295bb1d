package gateway

import "sync"

// Presence holds the ephemeral typing state per conversation: a user appears
// only between a typing start and the next stop, leave, or disconnect for
// that conversation.
type Presence struct {
	mu     sync.RWMutex
	typing map[string]map[string]struct{} // conversationID -> set of userID
}

func NewPresence() *Presence {
	return &Presence{
		typing: make(map[string]map[string]struct{}),
	}
}

func (p *Presence) StartTyping(conversationID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.typing[conversationID] == nil {
		p.typing[conversationID] = make(map[string]struct{})
	}
	p.typing[conversationID][userID] = struct{}{}
}

// StopTyping removes the user's typing mark and reports whether it was set.
func (p *Presence) StopTyping(conversationID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.typing[conversationID]
	if !ok {
		return false
	}
	if _, present := users[userID]; !present {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.typing, conversationID)
	}
	return true
}

func (p *Presence) IsTyping(conversationID, userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.typing[conversationID][userID]
	return ok
}

// Clear removes the user from every conversation's typing set and returns the
// conversations that were affected, so callers can synthesize the implicit
// stop-typing fan-out on disconnect.
func (p *Presence) Clear(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var affected []string
	for conversationID, users := range p.typing {
		if _, ok := users[userID]; ok {
			delete(users, userID)
			if len(users) == 0 {
				delete(p.typing, conversationID)
			}
			affected = append(affected, conversationID)
		}
	}
	return affected
}
