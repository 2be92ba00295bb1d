package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"realtime-service/internal/store"

	"github.com/google/uuid"
)

const (
	defaultMessagePage  = 1
	defaultMessageLimit = 50
)

// Messaging is the messaging namespace: conversation rooms, message fan-out,
// typing presence, and the direct-message dispatcher. Message durability is
// the external store's concern; correlation ids generated here are UI hints,
// not durable identities.
type Messaging struct {
	ns       *namespace
	presence *Presence
	messages store.MessageStore
}

func newMessaging(status StatusMirror, messageStore store.MessageStore) *Messaging {
	m := &Messaging{
		ns:       newNamespace("messaging", status),
		presence: NewPresence(),
		messages: messageStore,
	}

	m.ns.onConnect = m.onConnect
	m.ns.onDisconnect = m.onDisconnect
	m.ns.handle(EventMessageJoinConversation, m.handleJoinConversation)
	m.ns.handle(EventMessageLeaveConversation, m.handleLeaveConversation)
	m.ns.handle(EventMessageSend, m.handleSend)
	m.ns.handle(EventMessageTyping, m.handleTyping)
	m.ns.handle(EventMessageStopTyping, m.handleStopTyping)
	m.ns.handle(EventMessageMarkAsRead, m.handleMarkAsRead)
	m.ns.handle(EventMessageDelete, m.handleDelete)
	m.ns.handle(EventMessageEdit, m.handleEdit)
	m.ns.handle(EventMessageReact, m.handleReact)
	m.ns.handle(EventMessageGetMessages, m.handleGetMessages)

	return m
}

func (m *Messaging) onConnect(conn *Conn) {
	conn.Emit(EventMessageConnected, map[string]interface{}{
		"message":   "Connected to messaging",
		"userId":    conn.user.ID,
		"userType":  conn.user.UserType,
		"timestamp": nowTimestamp(),
	})

	m.broadcastUserStatus(conn.user.ID, "online")
}

func (m *Messaging) onDisconnect(conn *Conn) {
	// Synthesize the stop-typing fan-out for every conversation the user was
	// typing in, so remaining members never see a stuck indicator.
	for _, conversationID := range m.presence.Clear(conn.user.ID) {
		m.ns.rooms.Broadcast(conversationRoom(conversationID), EventMessageUserStoppedTyping, map[string]interface{}{
			"userId":         conn.user.ID,
			"conversationId": conversationID,
		})
	}

	m.broadcastUserStatus(conn.user.ID, "offline")
}

// Event handlers

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

func (m *Messaging) handleJoinConversation(conn *Conn, data json.RawMessage) error {
	var req conversationRef
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid joinConversation payload")
	}

	m.ns.rooms.Join(conn, conversationRoom(req.ConversationID))

	slog.Info("User joined conversation", "userID", conn.user.ID, "conversationID", req.ConversationID)

	conn.Emit(EventMessageJoinedConversation, map[string]interface{}{
		"conversationId": req.ConversationID,
		"success":        true,
	})

	m.ns.rooms.BroadcastExcept(conversationRoom(req.ConversationID), conn, EventMessageUserJoined, map[string]interface{}{
		"userId":         conn.user.ID,
		"conversationId": req.ConversationID,
		"timestamp":      nowTimestamp(),
	})
	return nil
}

func (m *Messaging) handleLeaveConversation(conn *Conn, data json.RawMessage) error {
	var req conversationRef
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid leaveConversation payload")
	}

	// Leaving while typing synthesizes the stop-typing fan-out first.
	if m.presence.StopTyping(req.ConversationID, conn.user.ID) {
		m.ns.rooms.BroadcastExcept(conversationRoom(req.ConversationID), conn, EventMessageUserStoppedTyping, map[string]interface{}{
			"userId":         conn.user.ID,
			"conversationId": req.ConversationID,
		})
	}

	m.ns.rooms.Leave(conn, conversationRoom(req.ConversationID))

	slog.Info("User left conversation", "userID", conn.user.ID, "conversationID", req.ConversationID)

	conn.Emit(EventMessageLeftConversation, map[string]interface{}{
		"conversationId": req.ConversationID,
		"success":        true,
	})

	m.ns.rooms.Broadcast(conversationRoom(req.ConversationID), EventMessageUserLeft, map[string]interface{}{
		"userId":         conn.user.ID,
		"conversationId": req.ConversationID,
		"timestamp":      nowTimestamp(),
	})
	return nil
}

func (m *Messaging) handleSend(conn *Conn, data json.RawMessage) error {
	var req struct {
		ConversationID string      `json:"conversationId"`
		Message        string      `json:"message"`
		Attachments    interface{} `json:"attachments,omitempty"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid send payload")
	}

	// Correlation id only; the durable id comes from the persistence tier.
	messageID := "msg_" + uuid.New().String()
	attachments := req.Attachments
	if attachments == nil {
		attachments = []interface{}{}
	}

	payload := map[string]interface{}{
		"messageId":      messageID,
		"conversationId": req.ConversationID,
		"senderId":       conn.user.ID,
		"senderName":     conn.user.Email,
		"message":        req.Message,
		"attachments":    attachments,
		"timestamp":      nowTimestamp(),
		"isRead":         false,
	}

	m.ns.rooms.Broadcast(conversationRoom(req.ConversationID), EventMessageNew, payload)

	conn.Emit(EventMessageSendSuccess, map[string]interface{}{
		"messageId": messageID,
		"success":   true,
	})
	return nil
}

func (m *Messaging) handleTyping(conn *Conn, data json.RawMessage) error {
	var req conversationRef
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid typing payload")
	}

	m.presence.StartTyping(req.ConversationID, conn.user.ID)

	m.ns.rooms.BroadcastExcept(conversationRoom(req.ConversationID), conn, EventMessageUserTyping, map[string]interface{}{
		"userId":         conn.user.ID,
		"userName":       conn.user.Email,
		"conversationId": req.ConversationID,
	})
	return nil
}

func (m *Messaging) handleStopTyping(conn *Conn, data json.RawMessage) error {
	var req conversationRef
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid stopTyping payload")
	}

	m.presence.StopTyping(req.ConversationID, conn.user.ID)

	m.ns.rooms.BroadcastExcept(conversationRoom(req.ConversationID), conn, EventMessageUserStoppedTyping, map[string]interface{}{
		"userId":         conn.user.ID,
		"conversationId": req.ConversationID,
	})
	return nil
}

func (m *Messaging) handleMarkAsRead(conn *Conn, data json.RawMessage) error {
	var req struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid markAsRead payload")
	}

	m.ns.rooms.Broadcast(conversationRoom(req.ConversationID), EventMessageRead, map[string]interface{}{
		"messageId":      req.MessageID,
		"conversationId": req.ConversationID,
		"readBy":         conn.user.ID,
		"timestamp":      nowTimestamp(),
	})
	return nil
}

func (m *Messaging) handleDelete(conn *Conn, data json.RawMessage) error {
	var req struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid delete payload")
	}

	m.ns.rooms.Broadcast(conversationRoom(req.ConversationID), EventMessageDeleted, map[string]interface{}{
		"messageId":      req.MessageID,
		"conversationId": req.ConversationID,
		"deletedBy":      conn.user.ID,
		"timestamp":      nowTimestamp(),
	})
	return nil
}

func (m *Messaging) handleEdit(conn *Conn, data json.RawMessage) error {
	var req struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
		NewMessage     string `json:"newMessage"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid edit payload")
	}

	m.ns.rooms.Broadcast(conversationRoom(req.ConversationID), EventMessageEdited, map[string]interface{}{
		"messageId":      req.MessageID,
		"conversationId": req.ConversationID,
		"newMessage":     req.NewMessage,
		"editedBy":       conn.user.ID,
		"timestamp":      nowTimestamp(),
	})
	return nil
}

func (m *Messaging) handleReact(conn *Conn, data json.RawMessage) error {
	var req struct {
		ConversationID string `json:"conversationId"`
		MessageID      string `json:"messageId"`
		Reaction       string `json:"reaction"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid react payload")
	}

	m.ns.rooms.Broadcast(conversationRoom(req.ConversationID), EventMessageReaction, map[string]interface{}{
		"messageId":      req.MessageID,
		"conversationId": req.ConversationID,
		"userId":         conn.user.ID,
		"reaction":       req.Reaction,
		"timestamp":      nowTimestamp(),
	})
	return nil
}

func (m *Messaging) handleGetMessages(conn *Conn, data json.RawMessage) error {
	var req struct {
		ConversationID string `json:"conversationId"`
		Page           int64  `json:"page"`
		Limit          int64  `json:"limit"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return fmt.Errorf("invalid getMessages payload")
	}
	if req.Page < 1 {
		req.Page = defaultMessagePage
	}
	if req.Limit < 1 {
		req.Limit = defaultMessageLimit
	}

	messages := []store.Message{}
	hasMore := false
	if m.messages != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fetched, more, err := m.messages.Fetch(ctx, req.ConversationID, req.Page, req.Limit)
		if err != nil {
			slog.Error("Failed to fetch messages", "userID", conn.user.ID, "conversationID", req.ConversationID, "error", err)
		} else {
			messages = fetched
			hasMore = more
		}
	}

	conn.Emit(EventMessageList, map[string]interface{}{
		"conversationId": req.ConversationID,
		"messages":       messages,
		"page":           req.Page,
		"hasMore":        hasMore,
	})
	return nil
}

// Helpers

func (m *Messaging) broadcastUserStatus(userID, status string) {
	m.ns.registry.EmitToAll(EventMessageUserStatusChanged, map[string]interface{}{
		"userId":    userID,
		"status":    status,
		"timestamp": nowTimestamp(),
	})
}

// Dispatcher operations, called from the REST tier.

// DirectMessage is the payload the REST tier pushes to a single recipient.
type DirectMessage struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	SenderName     string `json:"senderName"`
	Message        string `json:"message"`
	Timestamp      string `json:"timestamp"`
}

// SendDirect pushes a direct message to one user's live connection. Returns
// false when the user is offline.
func (m *Messaging) SendDirect(userID string, message DirectMessage) bool {
	if m.ns.isClosed() {
		return false
	}
	if message.Timestamp == "" {
		message.Timestamp = nowTimestamp()
	}
	return m.ns.registry.EmitToUser(userID, EventMessageDirect, message)
}

// NotifyNewConversation tells a user a conversation was created for them.
func (m *Messaging) NotifyNewConversation(userID string, conversation map[string]interface{}) bool {
	if m.ns.isClosed() {
		return false
	}
	payload := make(map[string]interface{}, len(conversation)+1)
	for k, v := range conversation {
		payload[k] = v
	}
	payload["timestamp"] = nowTimestamp()
	return m.ns.registry.EmitToUser(userID, EventMessageNewConversation, payload)
}

// ConnectedCount reports the number of users connected to this namespace.
func (m *Messaging) ConnectedCount() int {
	return m.ns.connectedCount()
}

// IsUserOnline reports whether the user has a live connection here.
func (m *Messaging) IsUserOnline(userID string) bool {
	return m.ns.registry.IsOnline(userID)
}
