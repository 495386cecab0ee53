package customer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Customer is one end user of a tenant, identified by channel address
// (phone number). AutoReply mirrors the tenant-controlled flag that
// silences the bot for this customer.
type Customer struct {
	ID        uint
	TenantID  uint
	Name      string
	Address   string
	AutoReply bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository interface {
	FindByTenantAndAddress(ctx context.Context, tenantID uint, address string) (*Customer, error)
	FindByID(ctx context.Context, id uint) (*Customer, error)
	Create(ctx context.Context, c *Customer) error
	SetAutoReply(ctx context.Context, id uint, enabled bool) error
}

// NewCustomer builds a customer with the profile-name fallback the
// channel uses when the provider did not supply a display name.
func NewCustomer(tenantID uint, address, profileName string) *Customer {
	name := strings.TrimSpace(profileName)
	if name == "" {
		name = fmt.Sprintf("Usuario %s", address)
	}
	return &Customer{
		TenantID:  tenantID,
		Name:      name,
		Address:   address,
		AutoReply: true,
	}
}
