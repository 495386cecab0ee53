package turn

import (
	"context"
	"time"

	"nuvia-server/internal/domain/assistant"
	"nuvia-server/internal/domain/knowledge"
	"nuvia-server/internal/domain/message"
)

// InboundEvent is a channel webhook message normalized into the shape
// the engine works with, independent of provider payload layout.
type InboundEvent struct {
	TenantSlug  string
	Channel     string
	ExternalID  string
	From        string
	ProfileName string

	// Direction is set by the webhook layer. Providers can echo the
	// business's own outbound messages back through the webhook; those
	// must never trigger a reply.
	Direction message.Direction

	// ProviderType is the raw payload type string from the channel
	// ("text", "image", "voice", ...).
	ProviderType string
	Text         string

	// MediaID identifies a downloadable attachment at the provider.
	MediaID   string
	MediaMime string

	Timestamp time.Time
}

// Action says how a turn ended.
type Action string

const (
	// ActionReplied means the bot answered and the reply was recorded.
	ActionReplied Action = "replied"
	// ActionSavedSilent means the message was recorded but no reply
	// was generated (auto-reply off, or non-text content).
	ActionSavedSilent Action = "saved_silent"
	// ActionDuplicate means the external id was already recorded and
	// the event was dropped without side effects.
	ActionDuplicate Action = "duplicate"
	// ActionIgnored means the event was not an inbound customer
	// message (an outbound echo) and was dropped unrecorded.
	ActionIgnored Action = "ignored"
)

// Outcome reports what a turn did, for handler responses and logs.
type Outcome struct {
	Action     Action
	SessionID  uint
	InboundID  uint
	OutboundID uint
	ReplyText  string
	Fallback   bool
}

// Retriever is the slice of the knowledge retriever the turn needs.
type Retriever interface {
	Retrieve(ctx context.Context, tenantID uint, embeddingModel, query string) []*knowledge.ScoredChunk
}

// Answerer produces the reply for a customer question.
type Answerer interface {
	Answer(ctx context.Context, in assistant.AnswerInput) assistant.AnswerResult
}

// ChannelSender pushes outbound messages to the messaging channel. The
// returned id is the channel-assigned message id; an empty id with nil
// error means the channel accepted the send without acknowledging one.
type ChannelSender interface {
	SendText(ctx context.Context, to, text string) (string, error)
}

// MediaArchiver downloads a message attachment from the channel and
// stores a durable copy, returning its URL. Archival is advisory; a
// failure never fails the turn.
type MediaArchiver interface {
	Archive(ctx context.Context, ev InboundEvent, m *message.Message) (string, error)
}
