package handlers

import (
	"net/http"

	"realtime-service/internal/gateway"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DispatchHandler is the surface the REST tier calls to push real-time events
// through the gateway. Delivery is strictly best-effort: an offline target
// yields delivered=false with a 200, never an error that would roll back the
// caller's own business operation.
type DispatchHandler struct {
	gw *gateway.Gateway
}

func NewDispatchHandler(gw *gateway.Gateway) *DispatchHandler {
	return &DispatchHandler{gw: gw}
}

type notificationRequest struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Title   string      `json:"title" binding:"required"`
	Message string      `json:"message" binding:"required"`
	Data    interface{} `json:"data,omitempty"`
}

func (r *notificationRequest) envelope() gateway.NotificationEnvelope {
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	return gateway.NotificationEnvelope{
		ID:      id,
		Type:    r.Type,
		Title:   r.Title,
		Message: r.Message,
		Data:    r.Data,
	}
}

// NotifyUser pushes a notification to one user's live connection.
func (h *DispatchHandler) NotifyUser(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delivered := h.gw.Notifications().NotifyUser(c.Param("id"), req.envelope())
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// NotifyUserType broadcasts a notification to every connected user of a type.
func (h *DispatchHandler) NotifyUserType(c *gin.Context) {
	if !h.available(c) {
		return
	}

	userType := c.Param("userType")
	if userType != "client" && userType != "developer" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userType must be client or developer"})
		return
	}

	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.gw.Notifications().NotifyUserType(userType, req.envelope())
	c.JSON(http.StatusOK, gin.H{"delivered": true})
}

// NotifyTopic broadcasts a notification to current topic subscribers.
func (h *DispatchHandler) NotifyTopic(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.gw.Notifications().NotifyTopic(c.Param("topic"), req.envelope())
	c.JSON(http.StatusOK, gin.H{"delivered": true})
}

// SendDirectMessage pushes a direct message to one user's live connection.
func (h *DispatchHandler) SendDirectMessage(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var req gateway.DirectMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delivered := h.gw.Messaging().SendDirect(c.Param("id"), req)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

// NotifyNewConversation tells a user a conversation was created for them.
func (h *DispatchHandler) NotifyNewConversation(c *gin.Context) {
	if !h.available(c) {
		return
	}

	var conversation map[string]interface{}
	if err := c.ShouldBindJSON(&conversation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	delivered := h.gw.Messaging().NotifyNewConversation(c.Param("id"), conversation)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

func (h *DispatchHandler) available(c *gin.Context) bool {
	if h.gw == nil || h.gw.Closed() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "gateway not available"})
		return false
	}
	return true
}
