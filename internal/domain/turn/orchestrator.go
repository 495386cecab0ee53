package turn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nuvia-server/internal/domain/assistant"
	"nuvia-server/internal/domain/customer"
	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/domain/session"
	"nuvia-server/internal/domain/tenant"
	"nuvia-server/internal/infrastructure/metrics"
	"nuvia-server/internal/utils/platformerrors"
)

// Orchestrator runs one conversational turn end to end: dedup, session
// resolution, retrieval, completion, and reply delivery.
type Orchestrator struct {
	tenants   tenant.Repository
	customers *customer.Service
	sessions  *session.Service
	ledger    *message.Ledger
	retriever Retriever
	answerer  Answerer
	sender    ChannelSender
	archiver  MediaArchiver

	defaultChatModel      string
	defaultEmbeddingModel string
	turnTimeout           time.Duration

	log zerolog.Logger
}

type OrchestratorParams struct {
	Tenants   tenant.Repository
	Customers *customer.Service
	Sessions  *session.Service
	Ledger    *message.Ledger
	Retriever Retriever
	Answerer  Answerer
	Sender    ChannelSender
	Archiver  MediaArchiver

	DefaultChatModel      string
	DefaultEmbeddingModel string
	TurnTimeout           time.Duration
}

func NewOrchestrator(p OrchestratorParams, log zerolog.Logger) *Orchestrator {
	if p.TurnTimeout <= 0 {
		p.TurnTimeout = 90 * time.Second
	}
	return &Orchestrator{
		tenants:               p.Tenants,
		customers:             p.Customers,
		sessions:              p.Sessions,
		ledger:                p.Ledger,
		retriever:             p.Retriever,
		answerer:              p.Answerer,
		sender:                p.Sender,
		archiver:              p.Archiver,
		defaultChatModel:      p.DefaultChatModel,
		defaultEmbeddingModel: p.DefaultEmbeddingModel,
		turnTimeout:           p.TurnTimeout,
		log:                   log.With().Str("component", "turn-orchestrator").Logger(),
	}
}

// HandleInbound processes one normalized channel event. Persistence
// failures abort the turn; retrieval, archival and notification
// failures degrade it.
func (o *Orchestrator) HandleInbound(ctx context.Context, ev InboundEvent) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	started := time.Now()
	outcome, err := o.handleInbound(ctx, ev)
	metrics.TurnDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.TurnsTotal.WithLabelValues(string(outcome.Action)).Inc()
	return outcome, nil
}

func (o *Orchestrator) handleInbound(ctx context.Context, ev InboundEvent) (*Outcome, error) {
	if ev.Direction != "" && ev.Direction != message.DirectionInbound {
		o.log.Debug().Str("external_id", ev.ExternalID).Msg("ignoring outbound echo")
		return &Outcome{Action: ActionIgnored}, nil
	}
	if ev.ExternalID == "" || ev.From == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "event is missing external id or sender", nil, "")
	}

	tn, err := o.tenants.FindBySlug(ctx, ev.TenantSlug)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "resolve tenant")
	}
	cfg := tn.ResolveConfig(o.defaultChatModel, o.defaultEmbeddingModel)

	cust, err := o.customers.Resolve(ctx, tn.ID, ev.From, ev.ProfileName)
	if err != nil {
		return nil, err
	}

	sess, err := o.sessions.EnsureOpen(ctx, tn.ID, cust.ID, ev.From, ev.Channel)
	if err != nil {
		return nil, err
	}

	kind := message.ContentKindFromProvider(ev.ProviderType)
	inbound, created, err := o.ledger.Record(ctx, &message.Message{
		TenantID:   tn.ID,
		SessionID:  sess.ID,
		CustomerID: cust.ID,
		ExternalID: ev.ExternalID,
		Direction:  message.DirectionInbound,
		Kind:       kind,
		Body:       ev.Text,
		SentAt:     ev.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return &Outcome{Action: ActionDuplicate, SessionID: sess.ID, InboundID: inbound.ID}, nil
	}

	if kind.IsMedia() && o.archiver != nil {
		if url, aerr := o.archiver.Archive(ctx, ev, inbound); aerr != nil {
			o.log.Warn().Err(aerr).Str("external_id", ev.ExternalID).Msg("media archival failed")
		} else if uerr := o.ledger.AttachMedia(ctx, inbound, url); uerr != nil {
			o.log.Warn().Err(uerr).Msg("persisting media url failed")
		}
	}

	if !cust.AutoReply {
		o.log.Debug().Uint("customer_id", cust.ID).Msg("auto-reply disabled, message saved without reply")
		return &Outcome{Action: ActionSavedSilent, SessionID: sess.ID, InboundID: inbound.ID}, nil
	}
	if ev.Text == "" {
		return &Outcome{Action: ActionSavedSilent, SessionID: sess.ID, InboundID: inbound.ID}, nil
	}

	history, err := o.ledger.Transcript(ctx, sess.ID, cfg.HistoryWindowSize+1)
	if err != nil {
		return nil, err
	}
	history = dropMessage(history, inbound.ID)

	chunks := o.retriever.Retrieve(ctx, tn.ID, cfg.EmbeddingModel, ev.Text)
	metrics.RetrievalChunks.Observe(float64(len(chunks)))

	input := assistant.AnswerInput{
		Config:          cfg,
		SessionID:       sess.ID,
		CustomerID:      cust.ID,
		CustomerAddress: ev.From,
		Question:        ev.Text,
		History:         history,
		Context:         chunks,
	}
	if inbound.Kind == message.ContentKindImage && inbound.MediaURL != "" {
		input.ImageURLs = []string{inbound.MediaURL}
	}
	answer := o.answerer.Answer(ctx, input)
	if answer.Fallback {
		metrics.CompletionFallbacks.Inc()
	}
	if answer.TicketID != "" {
		if terr := o.sessions.AttachTicket(ctx, sess.ID, answer.TicketID); terr != nil {
			o.log.Warn().Err(terr).Uint("session_id", sess.ID).Msg("attaching ticket to session failed")
		}
	}

	outbound, err := o.recordAndSend(ctx, tn.ID, sess.ID, cust.ID, ev.From, ev.ExternalID, answer.Text)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Action:     ActionReplied,
		SessionID:  sess.ID,
		InboundID:  inbound.ID,
		OutboundID: outbound.ID,
		ReplyText:  answer.Text,
		Fallback:   answer.Fallback,
	}, nil
}

// SendAgentReply records and delivers a message typed by a human agent.
// A human stepping in silences the bot for that customer until a tenant
// operator re-enables auto-reply.
func (o *Orchestrator) SendAgentReply(ctx context.Context, tenantSlug string, customerID uint, channel, text string) (*message.Message, error) {
	if text == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "reply text is empty", nil, "")
	}

	tn, err := o.tenants.FindBySlug(ctx, tenantSlug)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "resolve tenant")
	}

	cust, err := o.customers.Get(ctx, customerID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "resolve customer")
	}

	if channel == "" {
		channel = "whatsapp"
	}
	sess, err := o.sessions.EnsureOpen(ctx, tn.ID, cust.ID, cust.Address, channel)
	if err != nil {
		return nil, err
	}

	if cust.AutoReply {
		if serr := o.customers.SetAutoReply(ctx, cust.ID, false); serr != nil {
			o.log.Warn().Err(serr).Uint("customer_id", cust.ID).Msg("disabling auto-reply failed")
		}
	}

	return o.recordAndSend(ctx, tn.ID, sess.ID, cust.ID, cust.Address, "", text)
}

// recordAndSend persists the outbound entry first, then pushes it to
// the channel. A send failure is advisory: the row stays at SENT with
// its local id and the status callbacks never arrive for it.
func (o *Orchestrator) recordAndSend(ctx context.Context, tenantID, sessionID, customerID uint, to, replyTo, text string) (*message.Message, error) {
	outbound, _, err := o.ledger.Record(ctx, &message.Message{
		TenantID:          tenantID,
		SessionID:         sessionID,
		CustomerID:        customerID,
		ExternalID:        fmt.Sprintf("out-%s", uuid.NewString()),
		Direction:         message.DirectionOutbound,
		Kind:              message.ContentKindText,
		Body:              text,
		ReplyToExternalID: replyTo,
		Status:            message.StatusSent,
	})
	if err != nil {
		return nil, err
	}

	channelID, err := o.sender.SendText(ctx, to, text)
	if err != nil {
		o.log.Error().Err(err).Uint("session_id", sessionID).Msg("channel send failed, reply kept in ledger")
		return outbound, nil
	}
	if perr := o.ledger.PromoteExternalID(ctx, outbound, channelID); perr != nil {
		o.log.Warn().Err(perr).Msg("promoting channel message id failed")
	}
	return outbound, nil
}

func dropMessage(msgs []*message.Message, id uint) []*message.Message {
	out := msgs[:0]
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
