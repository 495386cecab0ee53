package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nuvia-server/internal/domain/customer"
	"nuvia-server/internal/domain/session"
	"nuvia-server/internal/domain/turn"
	"nuvia-server/internal/interfaces/httpserver/requests"
	"nuvia-server/internal/interfaces/httpserver/responses"
)

// AgentHandler exposes the human-agent side of a conversation.
type AgentHandler struct {
	orchestrator *turn.Orchestrator
	customers    *customer.Service
	sessions     *session.Service
	log          zerolog.Logger
}

func NewAgentHandler(orchestrator *turn.Orchestrator, customers *customer.Service, sessions *session.Service, log zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		orchestrator: orchestrator,
		customers:    customers,
		sessions:     sessions,
		log:          log.With().Str("component", "agent-handler").Logger(),
	}
}

// SendMessage delivers a human agent's reply to a customer.
func (h *AgentHandler) SendMessage(c *gin.Context) {
	var req requests.AgentMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.orchestrator.SendAgentReply(c.Request.Context(), c.Param("tenant"), req.CustomerID, req.Channel, req.Text)
	if err != nil {
		responses.HandleError(c, err, "failed to send agent message")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message_id":  msg.ID,
		"external_id": msg.ExternalID,
		"status":      msg.Status,
	})
}

// SetAutoReply toggles automated replies for a customer.
func (h *AgentHandler) SetAutoReply(c *gin.Context) {
	customerID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
		return
	}

	var req requests.AutoReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.customers.SetAutoReply(c.Request.Context(), uint(customerID), *req.Enabled); err != nil {
		responses.HandleError(c, err, "failed to update auto-reply flag")
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer_id": customerID, "auto_reply": *req.Enabled})
}

// CloseSession ends a conversation window.
func (h *AgentHandler) CloseSession(c *gin.Context) {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	sess, err := h.sessions.Close(c.Request.Context(), uint(sessionID))
	if err != nil {
		responses.HandleError(c, err, "failed to close session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sess.ID,
		"status":     sess.Status,
		"closed_at":  sess.ClosedAt,
	})
}
