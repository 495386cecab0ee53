package v1

import (
	"github.com/gin-gonic/gin"

	"nuvia-server/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches the webhook endpoints and the v1 API.
func (r *Routes) Register(router gin.IRouter) {
	router.GET("/webhook/:tenant", r.handlers.Webhook.Verify)
	router.POST("/webhook/:tenant", r.handlers.Webhook.Receive)

	group := router.Group("/v1/tenants/:tenant")
	group.POST("/agent/messages", r.handlers.Agent.SendMessage)
	group.PATCH("/customers/:id/auto-reply", r.handlers.Agent.SetAutoReply)
	group.POST("/sessions/:id/close", r.handlers.Agent.CloseSession)

	group.POST("/knowledge/documents", r.handlers.Knowledge.IngestDocument)
	group.PUT("/knowledge/documents/:id", r.handlers.Knowledge.ReindexDocument)
	group.GET("/knowledge/documents", r.handlers.Knowledge.ListDocuments)
	group.DELETE("/knowledge/documents/:id", r.handlers.Knowledge.DeleteDocument)
	group.POST("/knowledge/search", r.handlers.Knowledge.Search)
}
