package customer

import (
	"context"

	"github.com/rs/zerolog"

	"nuvia-server/internal/utils/platformerrors"
)

// Service resolves customers per (tenant, address) and manages the
// auto-reply flag.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "customer-service").Logger(),
	}
}

// Resolve returns the customer for (tenantID, address), creating one on
// first contact. profileName is the channel-supplied display name and
// may be empty.
func (s *Service) Resolve(ctx context.Context, tenantID uint, address, profileName string) (*Customer, error) {
	existing, err := s.repo.FindByTenantAndAddress(ctx, tenantID, address)
	if err != nil && !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "resolve customer")
	}
	if existing != nil {
		return existing, nil
	}

	c := NewCustomer(tenantID, address, profileName)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create customer")
	}
	s.log.Info().Uint("tenant_id", tenantID).Str("address", address).Msg("customer created on first contact")
	return c, nil
}

// Get loads a customer by id.
func (s *Service) Get(ctx context.Context, id uint) (*Customer, error) {
	return s.repo.FindByID(ctx, id)
}

// SetAutoReply flips the tenant-controlled flag that allows or silences
// automated replies for this customer.
func (s *Service) SetAutoReply(ctx context.Context, id uint, enabled bool) error {
	if err := s.repo.SetAutoReply(ctx, id, enabled); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "set auto-reply flag")
	}
	s.log.Info().Uint("customer_id", id).Bool("enabled", enabled).Msg("auto-reply flag updated")
	return nil
}
