package delivery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/domain/tenant"
	"nuvia-server/internal/infrastructure/metrics"
	"nuvia-server/internal/utils/platformerrors"
)

// StatusEvent is one delivery-status callback from the channel,
// normalized out of the provider payload.
type StatusEvent struct {
	TenantSlug     string
	ExternalID     string
	ProviderStatus string
	ErrorCode      string
	ErrorDetail    string
	Timestamp      time.Time
}

// providerStatuses maps the channel's status vocabulary onto the
// ledger's. Anything outside this map is ignored.
var providerStatuses = map[string]message.DeliveryStatus{
	"sent":      message.StatusSent,
	"delivered": message.StatusDelivered,
	"read":      message.StatusRead,
	"failed":    message.StatusFailed,
}

// Reconciler applies asynchronous status callbacks to the ledger.
// Callbacks race with message persistence and with each other; the
// reconciler absorbs every race without retries: unknown references and
// stale statuses are logged and dropped.
type Reconciler struct {
	tenants tenant.Repository
	ledger  *message.Ledger
	log     zerolog.Logger
}

func NewReconciler(tenants tenant.Repository, ledger *message.Ledger, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		tenants: tenants,
		ledger:  ledger,
		log:     log.With().Str("component", "delivery-reconciler").Logger(),
	}
}

// Apply processes one status callback. It only returns an error for
// tenant resolution or storage failures; every per-event anomaly is
// absorbed so the webhook can always be acknowledged.
func (r *Reconciler) Apply(ctx context.Context, ev StatusEvent) error {
	status, ok := providerStatuses[ev.ProviderStatus]
	if !ok {
		r.log.Info().
			Str("provider_status", ev.ProviderStatus).
			Str("external_id", ev.ExternalID).
			Msg("unknown delivery status, ignoring")
		metrics.StatusUpdatesTotal.WithLabelValues("unknown_status").Inc()
		return nil
	}

	tn, err := r.tenants.FindBySlug(ctx, ev.TenantSlug)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "resolve tenant for status callback")
	}

	failureCode := ""
	if status == message.StatusFailed {
		failureCode = ev.ErrorCode
		r.log.Warn().
			Str("external_id", ev.ExternalID).
			Str("error_code", ev.ErrorCode).
			Str("error_detail", ev.ErrorDetail).
			Msg("channel reported delivery failure")
	}

	_, err = r.ledger.ApplyStatus(ctx, tn.ID, ev.ExternalID, status, failureCode, ev.Timestamp)
	switch {
	case err == nil:
		metrics.StatusUpdatesTotal.WithLabelValues("applied").Inc()
		return nil
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
		// The callback can outrun message persistence, or reference a
		// message sent outside this system. Not worth retrying.
		r.log.Warn().
			Str("external_id", ev.ExternalID).
			Str("status", ev.ProviderStatus).
			Msg("status callback for unknown message, dropping")
		metrics.StatusUpdatesTotal.WithLabelValues("unknown_reference").Inc()
		return nil
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeStale):
		r.log.Debug().
			Str("external_id", ev.ExternalID).
			Str("status", ev.ProviderStatus).
			Msg("stale status callback discarded")
		metrics.StatusUpdatesTotal.WithLabelValues("stale").Inc()
		return nil
	default:
		return err
	}
}
