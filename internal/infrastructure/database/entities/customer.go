package entities

import "time"

// Customer is the persisted end user of a tenant.
type Customer struct {
	ID        uint   `gorm:"primaryKey"`
	TenantID  uint   `gorm:"not null;uniqueIndex:idx_customer_tenant_address"`
	Address   string `gorm:"type:varchar(32);not null;uniqueIndex:idx_customer_tenant_address"`
	Name      string `gorm:"type:varchar(128)"`
	AutoReply bool   `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Customer) TableName() string {
	return "customers"
}
