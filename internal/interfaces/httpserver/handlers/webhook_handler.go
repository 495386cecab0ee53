package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nuvia-server/internal/domain/delivery"
	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/domain/turn"
	"nuvia-server/internal/interfaces/httpserver/requests"
)

// WebhookHandler receives channel callbacks: the subscription
// verification handshake and the combined message/status payloads.
type WebhookHandler struct {
	orchestrator *turn.Orchestrator
	reconciler   *delivery.Reconciler
	verifyToken  string
	log          zerolog.Logger
}

func NewWebhookHandler(orchestrator *turn.Orchestrator, reconciler *delivery.Reconciler, verifyToken string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		orchestrator: orchestrator,
		reconciler:   reconciler,
		verifyToken:  verifyToken,
		log:          log.With().Str("component", "webhook-handler").Logger(),
	}
}

// Verify answers the channel's subscription handshake.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		c.String(http.StatusForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, challenge)
}

// Receive ingests one webhook delivery. The channel retries anything
// not answered 200, so every per-event failure is absorbed after
// logging; only malformed payloads are rejected.
func (h *WebhookHandler) Receive(c *gin.Context) {
	tenantSlug := c.Param("tenant")

	var payload requests.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			h.handleMessages(c, tenantSlug, change.Value)
			for _, st := range change.Value.Statuses {
				ev := delivery.StatusEvent{
					TenantSlug:     tenantSlug,
					ExternalID:     st.ID,
					ProviderStatus: st.Status,
					Timestamp:      parseUnixSeconds(st.Timestamp),
				}
				if len(st.Errors) > 0 {
					ev.ErrorCode = strconv.Itoa(st.Errors[0].Code)
					ev.ErrorDetail = st.Errors[0].Title
				}
				if err := h.reconciler.Apply(ctx, ev); err != nil {
					h.log.Error().Err(err).Str("external_id", st.ID).Msg("status callback processing failed")
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (h *WebhookHandler) handleMessages(c *gin.Context, tenantSlug string, value requests.WebhookValue) {
	profileNames := make(map[string]string, len(value.Contacts))
	for _, contact := range value.Contacts {
		profileNames[contact.WaID] = contact.Profile.Name
	}

	for _, msg := range value.Messages {
		ev := turn.InboundEvent{
			TenantSlug:   tenantSlug,
			Channel:      "whatsapp",
			Direction:    message.DirectionInbound,
			ExternalID:   msg.ID,
			From:         msg.From,
			ProfileName:  profileNames[msg.From],
			ProviderType: msg.Type,
			Text:         msg.Body(),
			Timestamp:    parseUnixSeconds(msg.Timestamp),
		}
		if media := msg.Media(); media != nil {
			ev.MediaID = media.ID
			ev.MediaMime = media.MimeType
		}

		outcome, err := h.orchestrator.HandleInbound(c.Request.Context(), ev)
		if err != nil {
			h.log.Error().Err(err).Str("external_id", msg.ID).Msg("inbound turn failed")
			continue
		}
		h.log.Info().
			Str("external_id", msg.ID).
			Str("action", string(outcome.Action)).
			Uint("session_id", outcome.SessionID).
			Msg("inbound turn processed")
	}
}

func parseUnixSeconds(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
