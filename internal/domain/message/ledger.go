package message

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nuvia-server/internal/utils/platformerrors"
)

// Notifier observes ledger changes so interested parties (live dashboards)
// can follow a conversation. Implementations must not block the turn;
// failures are the notifier's problem, not the ledger's.
type Notifier interface {
	MessageRecorded(ctx context.Context, m *Message)
	StatusChanged(ctx context.Context, m *Message)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) MessageRecorded(context.Context, *Message) {}
func (NopNotifier) StatusChanged(context.Context, *Message)   {}

// Ledger is the append-mostly record of everything said in a session.
// It owns the idempotent ingest and the delivery-status state machine.
type Ledger struct {
	repo     Repository
	notifier Notifier
	log      zerolog.Logger
}

func NewLedger(repo Repository, notifier Notifier, log zerolog.Logger) *Ledger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Ledger{
		repo:     repo,
		notifier: notifier,
		log:      log.With().Str("component", "message-ledger").Logger(),
	}
}

// Record writes a message keyed by its external id. Replays of an
// already recorded id return the existing row with created=false, so
// webhook redeliveries never duplicate ledger entries.
func (l *Ledger) Record(ctx context.Context, m *Message) (*Message, bool, error) {
	if m.ExternalID == "" {
		return nil, false, platformerrors.NewError(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "message requires an external id", nil, "")
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now().UTC()
	}

	stored, created, err := l.repo.UpsertByExternalID(ctx, m)
	if err != nil {
		return nil, false, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "record message")
	}
	if !created {
		l.log.Debug().
			Str("external_id", m.ExternalID).
			Msg("duplicate message ignored")
		return stored, false, nil
	}

	l.notifier.MessageRecorded(ctx, stored)
	return stored, true, nil
}

// ApplyStatus advances the delivery status of the message identified by
// externalID. The ladder SENT < DELIVERED < READ only moves forward;
// FAILED is accepted from any non-terminal state and records the
// failure code. A regression (for example DELIVERED arriving after
// READ) returns a Stale error and leaves the row untouched.
func (l *Ledger) ApplyStatus(ctx context.Context, tenantID uint, externalID string, status DeliveryStatus, failureCode string, at time.Time) (*Message, error) {
	m, err := l.repo.FindByExternalID(ctx, tenantID, externalID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "find message for status update")
	}

	switch status {
	case StatusFailed:
		if m.Status.IsTerminal() {
			return nil, staleStatus(ctx, m, status)
		}
		m.FailureCode = failureCode
	case StatusSent, StatusDelivered, StatusRead:
		if m.Status == StatusFailed || status.Rank() <= m.Status.Rank() {
			return nil, staleStatus(ctx, m, status)
		}
	default:
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
			platformerrors.ErrorTypeValidation, "unknown delivery status", nil, "",
			map[string]any{"status": string(status)})
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	m.Status = status
	m.StatusAt = &at
	if err := l.repo.Update(ctx, m); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "persist status update")
	}

	l.notifier.StatusChanged(ctx, m)
	return m, nil
}

// Transcript returns the session's recent history, oldest first, capped
// at limit entries.
func (l *Ledger) Transcript(ctx context.Context, sessionID uint, limit int) ([]*Message, error) {
	msgs, err := l.repo.RecentBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load session transcript")
	}
	return msgs, nil
}

// AttachMedia records the archived attachment URL on the message.
func (l *Ledger) AttachMedia(ctx context.Context, m *Message, url string) error {
	if url == "" {
		return nil
	}
	m.MediaURL = url
	if err := l.repo.Update(ctx, m); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "attach media url")
	}
	return nil
}

// PromoteExternalID swaps a locally generated "out-<uuid>" id for the
// channel-acknowledged one once the send succeeds.
func (l *Ledger) PromoteExternalID(ctx context.Context, m *Message, channelID string) error {
	if channelID == "" || channelID == m.ExternalID {
		return nil
	}
	m.ExternalID = channelID
	if err := l.repo.Update(ctx, m); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "promote external id")
	}
	return nil
}

func staleStatus(ctx context.Context, m *Message, incoming DeliveryStatus) *platformerrors.PlatformError {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain,
		platformerrors.ErrorTypeStale, "delivery status regression", nil, "",
		map[string]any{
			"external_id": m.ExternalID,
			"current":     string(m.Status),
			"incoming":    string(incoming),
		})
}
