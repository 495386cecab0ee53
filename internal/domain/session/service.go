package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nuvia-server/internal/utils/platformerrors"
)

// Service manages the session lifecycle.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "session-service").Logger(),
	}
}

// EnsureOpen returns the customer's OPEN session on the given channel,
// creating one when none exists. Creation is a conditional insert, so
// two turns racing for the same customer both land on the same session.
func (s *Service) EnsureOpen(ctx context.Context, tenantID, customerID uint, address, channel string) (*Session, error) {
	existing, err := s.repo.FindOpen(ctx, tenantID, customerID, channel)
	if err != nil && !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "find open session")
	}
	if existing != nil {
		return existing, nil
	}

	created, err := s.repo.CreateIfAbsent(ctx, &Session{
		TenantID:   tenantID,
		CustomerID: customerID,
		Address:    address,
		Channel:    channel,
		Status:     StatusOpen,
		OpenedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "open session")
	}
	return created, nil
}

// Close transitions an OPEN session to CLOSED, stamping ClosedAt.
// Closing an already CLOSED session is a no-op yielding the current row.
func (s *Service) Close(ctx context.Context, sessionID uint) (*Session, error) {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "find session")
	}
	if sess.Status == StatusClosed {
		return sess, nil
	}

	now := time.Now().UTC()
	sess.Status = StatusClosed
	sess.ClosedAt = &now
	if err := s.repo.Update(ctx, sess); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "close session")
	}
	s.log.Info().Uint("session_id", sess.ID).Msg("session closed")
	return sess, nil
}

// AttachTicket records the ticket most recently raised in this session.
func (s *Service) AttachTicket(ctx context.Context, sessionID uint, ticketID string) error {
	sess, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "find session")
	}

	now := time.Now().UTC()
	sess.LastTicketID = ticketID
	sess.LastTicketAt = &now
	if err := s.repo.Update(ctx, sess); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "attach ticket")
	}
	return nil
}
