// Package store defines the narrow read contracts the gateway consumes from
// the durable persistence tier. The system of record itself lives outside
// this service; the gateway never fabricates non-empty results.
package store

import "context"

// Message is one durable chat message as the persistence tier returns it.
type Message struct {
	ID             string      `json:"messageId" bson:"_id"`
	ConversationID string      `json:"conversationId" bson:"conversationId"`
	SenderID       string      `json:"senderId" bson:"senderId"`
	SenderName     string      `json:"senderName" bson:"senderName"`
	Message        string      `json:"message" bson:"message"`
	Attachments    interface{} `json:"attachments,omitempty" bson:"attachments,omitempty"`
	IsRead         bool        `json:"isRead" bson:"isRead"`
	CreatedAt      string      `json:"timestamp" bson:"createdAt"`
}

// MessageStore is the paged read contract behind message:getMessages.
type MessageStore interface {
	Fetch(ctx context.Context, conversationID string, page, limit int64) (messages []Message, hasMore bool, err error)
}

// NotificationStore is the durable notification-state collaborator. The
// gateway forwards mutations and echoes acknowledgements; it holds no
// notification state of its own.
type NotificationStore interface {
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID, notificationID string) error
}
