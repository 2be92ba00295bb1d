package handlers

import (
	"net/http"

	"realtime-service/internal/gateway"

	"github.com/gin-gonic/gin"
)

// RealtimeHandler exposes the WebSocket entry points and the status query.
type RealtimeHandler struct {
	gw *gateway.Gateway
}

func NewRealtimeHandler(gw *gateway.Gateway) *RealtimeHandler {
	return &RealtimeHandler{gw: gw}
}

// HandleNotificationsWS hands the request to the notifications namespace.
// Handshake authentication happens inside the gateway, before the upgrade.
func (h *RealtimeHandler) HandleNotificationsWS(c *gin.Context) {
	h.gw.HandleNotifications(c.Writer, c.Request)
}

// HandleMessagingWS hands the request to the messaging namespace.
func (h *RealtimeHandler) HandleMessagingWS(c *gin.Context) {
	h.gw.HandleMessaging(c.Writer, c.Request)
}

// GetStatus reports aggregate and per-namespace connected counts.
func (h *RealtimeHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connections": h.gw.Status()})
}
