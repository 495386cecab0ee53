package message

import (
	"context"
	"time"
)

// Direction distinguishes customer messages from bot/agent replies.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// ContentKind is the closed set of payload kinds the ledger records.
// Provider payload types outside this set map to ContentKindUnsupported.
type ContentKind string

const (
	ContentKindText        ContentKind = "text"
	ContentKindImage       ContentKind = "image"
	ContentKindAudio       ContentKind = "audio"
	ContentKindVideo       ContentKind = "video"
	ContentKindDocument    ContentKind = "document"
	ContentKindSticker     ContentKind = "sticker"
	ContentKindLocation    ContentKind = "location"
	ContentKindUnsupported ContentKind = "unsupported"
)

// providerContentKinds maps channel payload type strings onto the
// closed ContentKind set.
var providerContentKinds = map[string]ContentKind{
	"text":     ContentKindText,
	"image":    ContentKindImage,
	"audio":    ContentKindAudio,
	"voice":    ContentKindAudio,
	"video":    ContentKindVideo,
	"document": ContentKindDocument,
	"sticker":  ContentKindSticker,
	"location": ContentKindLocation,
}

// ContentKindFromProvider resolves a provider payload type. Unknown
// types resolve to ContentKindUnsupported rather than failing the turn.
func ContentKindFromProvider(providerType string) ContentKind {
	if kind, ok := providerContentKinds[providerType]; ok {
		return kind
	}
	return ContentKindUnsupported
}

// IsMedia reports whether the kind carries a downloadable attachment.
func (k ContentKind) IsMedia() bool {
	switch k {
	case ContentKindImage, ContentKindAudio, ContentKindVideo, ContentKindDocument, ContentKindSticker:
		return true
	}
	return false
}

// DeliveryStatus is the channel-reported delivery state of an outbound
// message. Statuses advance along SENT < DELIVERED < READ; FAILED is
// terminal and reachable from any non-terminal state.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "SENT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusRead      DeliveryStatus = "READ"
	StatusFailed    DeliveryStatus = "FAILED"
)

// statusRanks orders the progressive statuses. FAILED sits outside the
// ladder and is handled separately.
var statusRanks = map[DeliveryStatus]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Rank returns the ordinal position of a progressive status, or 0 for
// statuses outside the ladder.
func (s DeliveryStatus) Rank() int {
	return statusRanks[s]
}

func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusRead || s == StatusFailed
}

// Message is one ledger entry: a customer message or a reply, keyed by
// the channel's external message id for idempotent ingestion.
type Message struct {
	ID         uint
	TenantID   uint
	SessionID  uint
	CustomerID uint

	// ExternalID is the channel-assigned message id (wamid for
	// WhatsApp). Locally originated replies carry a generated
	// "out-<uuid>" id until the channel acknowledges a real one.
	ExternalID string
	Direction  Direction
	Kind       ContentKind
	Body       string

	// ReplyToExternalID links an outbound reply to the inbound
	// message that triggered it.
	ReplyToExternalID string

	// MediaURL points at the archived copy of an attachment, when one
	// was downloaded and stored.
	MediaURL string

	Status      DeliveryStatus
	StatusAt    *time.Time
	FailureCode string

	SentAt    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists ledger entries.
type Repository interface {
	// UpsertByExternalID inserts the message, or returns the existing
	// row untouched when the external id is already recorded for the
	// tenant. The bool reports whether a new row was created.
	UpsertByExternalID(ctx context.Context, m *Message) (*Message, bool, error)

	FindByExternalID(ctx context.Context, tenantID uint, externalID string) (*Message, error)
	Update(ctx context.Context, m *Message) error

	// RecentBySession returns up to limit messages of the session,
	// oldest first.
	RecentBySession(ctx context.Context, sessionID uint, limit int) ([]*Message, error)
}
