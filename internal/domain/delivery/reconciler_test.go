package delivery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/domain/tenant"
	"nuvia-server/internal/infrastructure/logger"
	"nuvia-server/internal/utils/platformerrors"
)

type fakeTenantRepo struct{}

func (fakeTenantRepo) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	if slug != "acme" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
			platformerrors.ErrorTypeNotFound, "tenant not found", nil, "")
	}
	return &tenant.Tenant{ID: 1, Slug: "acme"}, nil
}

func (fakeTenantRepo) EnsureBySlug(ctx context.Context, slug, _ string) (*tenant.Tenant, error) {
	return &tenant.Tenant{ID: 1, Slug: slug}, nil
}

type fakeMessageRepo struct {
	rows map[string]*message.Message
}

func (r *fakeMessageRepo) key(tenantID uint, externalID string) string {
	return fmt.Sprintf("%d/%s", tenantID, externalID)
}

func (r *fakeMessageRepo) UpsertByExternalID(_ context.Context, m *message.Message) (*message.Message, bool, error) {
	k := r.key(m.TenantID, m.ExternalID)
	if existing, ok := r.rows[k]; ok {
		return existing, false, nil
	}
	m.ID = uint(len(r.rows) + 1)
	r.rows[k] = m
	return m, true, nil
}

func (r *fakeMessageRepo) FindByExternalID(ctx context.Context, tenantID uint, externalID string) (*message.Message, error) {
	if m, ok := r.rows[r.key(tenantID, externalID)]; ok {
		return m, nil
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository,
		platformerrors.ErrorTypeNotFound, "message not found", nil, "")
}

func (r *fakeMessageRepo) Update(_ context.Context, m *message.Message) error {
	r.rows[r.key(m.TenantID, m.ExternalID)] = m
	return nil
}

func (r *fakeMessageRepo) RecentBySession(context.Context, uint, int) ([]*message.Message, error) {
	return nil, nil
}

func newReconcilerWithMessage(t *testing.T, externalID string) (*Reconciler, *fakeMessageRepo) {
	t.Helper()
	repo := &fakeMessageRepo{rows: make(map[string]*message.Message)}
	ledger := message.NewLedger(repo, nil, logger.GetLogger())
	_, _, err := ledger.Record(context.Background(), &message.Message{
		TenantID:   1,
		SessionID:  7,
		ExternalID: externalID,
		Direction:  message.DirectionOutbound,
		Kind:       message.ContentKindText,
		Body:       "respuesta",
		Status:     message.StatusSent,
	})
	require.NoError(t, err)
	return NewReconciler(fakeTenantRepo{}, ledger, logger.GetLogger()), repo
}

func statusEvent(externalID, status string) StatusEvent {
	return StatusEvent{
		TenantSlug:     "acme",
		ExternalID:     externalID,
		ProviderStatus: status,
		Timestamp:      time.Now().UTC(),
	}
}

func TestApplyAdvancesStatus(t *testing.T) {
	r, repo := newReconcilerWithMessage(t, "wamid.OUT1")
	ctx := context.Background()

	require.NoError(t, r.Apply(ctx, statusEvent("wamid.OUT1", "delivered")))
	require.NoError(t, r.Apply(ctx, statusEvent("wamid.OUT1", "read")))

	m, err := repo.FindByExternalID(ctx, 1, "wamid.OUT1")
	require.NoError(t, err)
	assert.Equal(t, message.StatusRead, m.Status)
}

func TestApplyOutOfOrderCallbacksConverge(t *testing.T) {
	r, repo := newReconcilerWithMessage(t, "wamid.OUT1")
	ctx := context.Background()

	// read arrives before delivered; the late delivered must not rewind.
	require.NoError(t, r.Apply(ctx, statusEvent("wamid.OUT1", "read")))
	require.NoError(t, r.Apply(ctx, statusEvent("wamid.OUT1", "delivered")))
	require.NoError(t, r.Apply(ctx, statusEvent("wamid.OUT1", "sent")))

	m, err := repo.FindByExternalID(ctx, 1, "wamid.OUT1")
	require.NoError(t, err)
	assert.Equal(t, message.StatusRead, m.Status)
}

func TestApplyFailureRecordsErrorCode(t *testing.T) {
	r, repo := newReconcilerWithMessage(t, "wamid.OUT1")
	ctx := context.Background()

	ev := statusEvent("wamid.OUT1", "failed")
	ev.ErrorCode = "131047"
	ev.ErrorDetail = "Re-engagement message"
	require.NoError(t, r.Apply(ctx, ev))

	m, err := repo.FindByExternalID(ctx, 1, "wamid.OUT1")
	require.NoError(t, err)
	assert.Equal(t, message.StatusFailed, m.Status)
	assert.Equal(t, "131047", m.FailureCode)
}

func TestApplyUnknownStatusIgnored(t *testing.T) {
	r, repo := newReconcilerWithMessage(t, "wamid.OUT1")

	require.NoError(t, r.Apply(context.Background(), statusEvent("wamid.OUT1", "warning")))

	m, err := repo.FindByExternalID(context.Background(), 1, "wamid.OUT1")
	require.NoError(t, err)
	assert.Equal(t, message.StatusSent, m.Status)
}

func TestApplyUnknownReferenceDropped(t *testing.T) {
	r, _ := newReconcilerWithMessage(t, "wamid.OUT1")

	err := r.Apply(context.Background(), statusEvent("wamid.MISSING", "delivered"))
	assert.NoError(t, err, "unknown references are dropped, not retried")
}

func TestApplyUnknownTenant(t *testing.T) {
	r, _ := newReconcilerWithMessage(t, "wamid.OUT1")

	ev := statusEvent("wamid.OUT1", "delivered")
	ev.TenantSlug = "nadie"
	err := r.Apply(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
}
