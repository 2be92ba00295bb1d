package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"realtime-service/internal/store"
)

// Notifications is the notifications namespace: real-time notification
// delivery plus the read/delete/unread-count echoes. Durable notification
// state lives in the external store; this namespace only forwards and echoes.
type Notifications struct {
	ns    *namespace
	store store.NotificationStore
}

func newNotifications(status StatusMirror, notificationStore store.NotificationStore) *Notifications {
	n := &Notifications{
		ns:    newNamespace("notifications", status),
		store: notificationStore,
	}

	n.ns.onConnect = n.onConnect
	n.ns.handle(EventNotificationRead, n.handleRead)
	n.ns.handle(EventNotificationReadAll, n.handleReadAll)
	n.ns.handle(EventNotificationDelete, n.handleDelete)
	n.ns.handle(EventNotificationUnreadCount, n.handleGetUnreadCount)
	n.ns.handle(EventNotificationSubscribe, n.handleSubscribe)
	n.ns.handle(EventNotificationUnsubscribe, n.handleUnsubscribe)

	return n
}

func (n *Notifications) onConnect(conn *Conn) {
	conn.Emit(EventNotificationConnected, map[string]interface{}{
		"message":   "Connected to notifications",
		"userId":    conn.user.ID,
		"userType":  conn.user.UserType,
		"timestamp": nowTimestamp(),
	})

	n.sendUnreadCount(conn)
}

// Event handlers

func (n *Notifications) handleRead(conn *Conn, data json.RawMessage) error {
	var req struct {
		NotificationID string `json:"notificationId"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid read payload: %w", err)
	}

	n.forward(func(ctx context.Context) error {
		return n.store.MarkRead(ctx, conn.user.ID, req.NotificationID)
	})

	conn.Emit(EventNotificationReadSuccess, map[string]interface{}{
		"notificationId": req.NotificationID,
		"success":        true,
	})

	n.sendUnreadCount(conn)
	return nil
}

func (n *Notifications) handleReadAll(conn *Conn, _ json.RawMessage) error {
	n.forward(func(ctx context.Context) error {
		return n.store.MarkAllRead(ctx, conn.user.ID)
	})

	conn.Emit(EventNotificationReadAllSuccess, map[string]interface{}{
		"success": true,
	})

	n.sendUnreadCount(conn)
	return nil
}

func (n *Notifications) handleDelete(conn *Conn, data json.RawMessage) error {
	var req struct {
		NotificationID string `json:"notificationId"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid delete payload: %w", err)
	}

	n.forward(func(ctx context.Context) error {
		return n.store.Delete(ctx, conn.user.ID, req.NotificationID)
	})

	conn.Emit(EventNotificationDeleteSuccess, map[string]interface{}{
		"notificationId": req.NotificationID,
		"success":        true,
	})
	return nil
}

func (n *Notifications) handleGetUnreadCount(conn *Conn, _ json.RawMessage) error {
	n.sendUnreadCount(conn)
	return nil
}

// Topic rooms are joined and left on demand; membership is not persisted
// anywhere.
func (n *Notifications) handleSubscribe(conn *Conn, data json.RawMessage) error {
	var req struct {
		Types []string `json:"types"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid subscribe payload: %w", err)
	}

	for _, t := range req.Types {
		n.ns.rooms.Join(conn, topicRoom(t))
	}
	slog.Info("User subscribed to notification types", "userID", conn.user.ID, "types", req.Types)

	conn.Emit(EventNotificationSubscribeSuccess, map[string]interface{}{
		"types":   req.Types,
		"success": true,
	})
	return nil
}

func (n *Notifications) handleUnsubscribe(conn *Conn, data json.RawMessage) error {
	var req struct {
		Types []string `json:"types"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("invalid unsubscribe payload: %w", err)
	}

	for _, t := range req.Types {
		n.ns.rooms.Leave(conn, topicRoom(t))
	}
	slog.Info("User unsubscribed from notification types", "userID", conn.user.ID, "types", req.Types)

	conn.Emit(EventNotificationUnsubscribeSuccess, map[string]interface{}{
		"types":   req.Types,
		"success": true,
	})
	return nil
}

// Helpers

func (n *Notifications) sendUnreadCount(conn *Conn) {
	var count int64
	if n.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		c, err := n.store.UnreadCount(ctx, conn.user.ID)
		if err != nil {
			slog.Error("Failed to fetch unread count", "userID", conn.user.ID, "error", err)
		} else {
			count = c
		}
	}

	conn.Emit(EventNotificationUnreadCountPush, map[string]interface{}{
		"count":     count,
		"timestamp": nowTimestamp(),
	})
}

// forward runs a store mutation when a store is configured. Failures are
// logged and never surface to the client; the durable tier reconciles.
func (n *Notifications) forward(op func(ctx context.Context) error) {
	if n.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := op(ctx); err != nil {
		slog.Error("Notification store operation failed", "error", err)
	}
}

// Dispatcher operations, called from the REST tier.

// NotifyUser pushes an envelope to one user's live connection. Returns false
// when the user is offline; there is no other observable effect then.
func (n *Notifications) NotifyUser(userID string, envelope NotificationEnvelope) bool {
	if n.ns.isClosed() {
		return false
	}
	if envelope.Timestamp == "" {
		envelope.Timestamp = nowTimestamp()
	}
	return n.ns.registry.EmitToUser(userID, EventNotificationNew, envelope)
}

// NotifyUserType broadcasts an envelope to every connected user of one type.
// Type room membership is established at handshake; no subscription needed.
func (n *Notifications) NotifyUserType(userType string, envelope NotificationEnvelope) {
	if n.ns.isClosed() {
		return
	}
	if envelope.Timestamp == "" {
		envelope.Timestamp = nowTimestamp()
	}
	n.ns.rooms.Broadcast(userTypeRoom(userType), EventNotificationNew, envelope)
}

// NotifyTopic broadcasts an envelope to current topic subscribers. An empty
// topic room is not an error.
func (n *Notifications) NotifyTopic(topic string, envelope NotificationEnvelope) {
	if n.ns.isClosed() {
		return
	}
	envelope.Type = topic
	if envelope.Timestamp == "" {
		envelope.Timestamp = nowTimestamp()
	}
	n.ns.rooms.Broadcast(topicRoom(topic), EventNotificationNew, envelope)
}

// ConnectedCount reports the number of users connected to this namespace.
func (n *Notifications) ConnectedCount() int {
	return n.ns.connectedCount()
}

// IsUserOnline reports whether the user has a live connection here.
func (n *Notifications) IsUserOnline(userID string) bool {
	return n.ns.registry.IsOnline(userID)
}
