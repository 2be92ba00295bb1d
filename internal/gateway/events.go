package gateway

import (
	"encoding/json"
	"time"
)

// Frame is the wire format for every event crossing a WebSocket connection,
// in both directions: an event name plus a JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Notifications namespace events.
const (
	// Inbound
	EventNotificationRead        = "notification:read"
	EventNotificationReadAll     = "notification:readAll"
	EventNotificationDelete      = "notification:delete"
	EventNotificationUnreadCount = "notification:getUnreadCount"
	EventNotificationSubscribe   = "notification:subscribe"
	EventNotificationUnsubscribe = "notification:unsubscribe"

	// Outbound
	EventNotificationConnected          = "notification:connected"
	EventNotificationReadSuccess        = "notification:readSuccess"
	EventNotificationReadAllSuccess     = "notification:readAllSuccess"
	EventNotificationDeleteSuccess      = "notification:deleteSuccess"
	EventNotificationSubscribeSuccess   = "notification:subscribeSuccess"
	EventNotificationUnsubscribeSuccess = "notification:unsubscribeSuccess"
	EventNotificationUnreadCountPush    = "notification:unreadCount"
	EventNotificationNew                = "notification:new"
)

// Messaging namespace events.
const (
	// Inbound
	EventMessageJoinConversation  = "message:joinConversation"
	EventMessageLeaveConversation = "message:leaveConversation"
	EventMessageSend              = "message:send"
	EventMessageTyping            = "message:typing"
	EventMessageStopTyping        = "message:stopTyping"
	EventMessageMarkAsRead        = "message:markAsRead"
	EventMessageDelete            = "message:delete"
	EventMessageEdit              = "message:edit"
	EventMessageReact             = "message:react"
	EventMessageGetMessages       = "message:getMessages"

	// Outbound
	EventMessageConnected          = "message:connected"
	EventMessageJoinedConversation = "message:joinedConversation"
	EventMessageUserJoined         = "message:userJoined"
	EventMessageLeftConversation   = "message:leftConversation"
	EventMessageUserLeft           = "message:userLeft"
	EventMessageNew                = "message:new"
	EventMessageSendSuccess        = "message:sendSuccess"
	EventMessageUserTyping         = "message:userTyping"
	EventMessageUserStoppedTyping  = "message:userStoppedTyping"
	EventMessageRead               = "message:read"
	EventMessageDeleted            = "message:deleted"
	EventMessageEdited             = "message:edited"
	EventMessageReaction           = "message:reaction"
	EventMessageList               = "message:messagesList"
	EventMessageUserStatusChanged  = "message:userStatusChanged"
	EventMessageDirect             = "message:direct"
	EventMessageNewConversation    = "message:newConversation"

	// Error acknowledgement for a failed inbound event
	EventError = "error"
)

// NotificationEnvelope is the immutable unit of payload crossing the
// notification dispatcher boundary.
type NotificationEnvelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Fixed room naming. Rooms exist only while at least one member is joined.
func userRoom(userID string) string       { return "user:" + userID }
func userTypeRoom(userType string) string { return "userType:" + userType }
func topicRoom(topic string) string       { return "notification:" + topic }

func conversationRoom(conversationID string) string { return "conversation:" + conversationID }
