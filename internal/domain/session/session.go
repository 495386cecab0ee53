package session

import (
	"context"
	"time"
)

// Status is the lifecycle state of a conversation session.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Session is a conversation window between a customer and the bot on a
// single channel. A customer has at most one OPEN session per channel;
// the storage layer enforces this with a partial unique index.
type Session struct {
	ID         uint
	TenantID   uint
	CustomerID uint
	Address    string
	Channel    string
	Status     Status
	OpenedAt   time.Time
	ClosedAt   *time.Time

	// LastTicketID references the most recent support ticket raised
	// during this session, if any.
	LastTicketID string
	LastTicketAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) IsOpen() bool {
	return s.Status == StatusOpen
}

// Repository persists sessions.
type Repository interface {
	// FindOpen returns the OPEN session for (tenantID, customerID,
	// channel), or a NotFound error when none exists.
	FindOpen(ctx context.Context, tenantID, customerID uint, channel string) (*Session, error)

	// CreateIfAbsent inserts an OPEN session unless one already exists
	// for the same (tenantID, customerID, channel). It returns the
	// surviving row either way, so concurrent callers converge on a
	// single session.
	CreateIfAbsent(ctx context.Context, s *Session) (*Session, error)

	FindByID(ctx context.Context, id uint) (*Session, error)
	Update(ctx context.Context, s *Session) error
}
