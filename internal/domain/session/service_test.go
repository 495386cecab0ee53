package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuvia-server/internal/infrastructure/logger"
	"nuvia-server/internal/utils/platformerrors"
)

type fakeSessionRepo struct {
	sessions map[uint]*Session
	nextID   uint
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uint]*Session), nextID: 1}
}

func (r *fakeSessionRepo) FindOpen(ctx context.Context, tenantID, customerID uint, channel string) (*Session, error) {
	for _, s := range r.sessions {
		if s.TenantID == tenantID && s.CustomerID == customerID && s.Channel == channel && s.Status == StatusOpen {
			return s, nil
		}
	}
	return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "open session not found", nil, "")
}

func (r *fakeSessionRepo) CreateIfAbsent(ctx context.Context, s *Session) (*Session, error) {
	if existing, err := r.FindOpen(ctx, s.TenantID, s.CustomerID, s.Channel); err == nil {
		return existing, nil
	}
	s.ID = r.nextID
	r.nextID++
	r.sessions[s.ID] = s
	return s, nil
}

func (r *fakeSessionRepo) FindByID(ctx context.Context, id uint) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "session not found", nil, "")
	}
	return s, nil
}

func (r *fakeSessionRepo) Update(ctx context.Context, s *Session) error {
	r.sessions[s.ID] = s
	return nil
}

func TestEnsureOpenCreatesOnce(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, logger.GetLogger())
	ctx := context.Background()

	first, err := svc.EnsureOpen(ctx, 1, 10, "5215550001111", "whatsapp")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, StatusOpen, first.Status)
	assert.False(t, first.OpenedAt.IsZero())

	second, err := svc.EnsureOpen(ctx, 1, 10, "5215550001111", "whatsapp")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.sessions, 1)
}

func TestEnsureOpenSeparatesChannels(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, logger.GetLogger())
	ctx := context.Background()

	wa, err := svc.EnsureOpen(ctx, 1, 10, "5215550001111", "whatsapp")
	require.NoError(t, err)
	tg, err := svc.EnsureOpen(ctx, 1, 10, "5215550001111", "telegram")
	require.NoError(t, err)
	assert.NotEqual(t, wa.ID, tg.ID)
}

func TestCloseIsIdempotent(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, logger.GetLogger())
	ctx := context.Background()

	sess, err := svc.EnsureOpen(ctx, 1, 10, "5215550001111", "whatsapp")
	require.NoError(t, err)

	closed, err := svc.Close(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	firstClosedAt := *closed.ClosedAt
	again, err := svc.Close(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, again.Status)
	assert.Equal(t, firstClosedAt, *again.ClosedAt)
}

func TestCloseThenEnsureOpensNewSession(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, logger.GetLogger())
	ctx := context.Background()

	first, err := svc.EnsureOpen(ctx, 1, 10, "5215550001111", "whatsapp")
	require.NoError(t, err)
	_, err = svc.Close(ctx, first.ID)
	require.NoError(t, err)

	second, err := svc.EnsureOpen(ctx, 1, 10, "5215550001111", "whatsapp")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StatusOpen, second.Status)
}

func TestAttachTicket(t *testing.T) {
	repo := newFakeSessionRepo()
	svc := NewService(repo, logger.GetLogger())
	ctx := context.Background()

	sess, err := svc.EnsureOpen(ctx, 1, 10, "5215550001111", "whatsapp")
	require.NoError(t, err)

	require.NoError(t, svc.AttachTicket(ctx, sess.ID, "TK-482"))

	got, err := repo.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "TK-482", got.LastTicketID)
	require.NotNil(t, got.LastTicketAt)
}
