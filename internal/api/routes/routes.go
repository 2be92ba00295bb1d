package routes

import (
	"realtime-service/internal/api/handlers"
	"realtime-service/internal/api/middleware"
	"realtime-service/internal/gateway"

	"github.com/gin-gonic/gin"
)

type Router struct {
	engine          *gin.Engine
	realtimeHandler *handlers.RealtimeHandler
	dispatchHandler *handlers.DispatchHandler
}

// NewRouter wires the gateway into the HTTP layer. The gateway arrives as an
// explicit dependency; nothing here reaches for a global.
func NewRouter(gw *gateway.Gateway) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogApi())

	return &Router{
		engine:          engine,
		realtimeHandler: handlers.NewRealtimeHandler(gw),
		dispatchHandler: handlers.NewDispatchHandler(gw),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// WebSocket entry points, one per namespace
	r.engine.GET("/ws/notifications", r.realtimeHandler.HandleNotificationsWS)
	r.engine.GET("/ws/messaging", r.realtimeHandler.HandleMessagingWS)

	api := r.engine.Group("/api/v1/realtime")
	{
		api.GET("/status", r.realtimeHandler.GetStatus)

		// Dispatch endpoints for the REST tier
		api.POST("/notifications/user/:id", r.dispatchHandler.NotifyUser)
		api.POST("/notifications/type/:userType", r.dispatchHandler.NotifyUserType)
		api.POST("/notifications/topic/:topic", r.dispatchHandler.NotifyTopic)
		api.POST("/messages/direct/:id", r.dispatchHandler.SendDirectMessage)
		api.POST("/conversations/notify/:id", r.dispatchHandler.NotifyNewConversation)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
