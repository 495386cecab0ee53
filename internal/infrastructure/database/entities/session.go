package entities

import "time"

// Session is the persisted conversation window. The partial unique
// index guaranteeing one OPEN session per (tenant, customer, channel)
// lives in migrate.go; gorm tags cannot express it.
type Session struct {
	ID           uint   `gorm:"primaryKey"`
	TenantID     uint   `gorm:"not null;index:idx_session_lookup"`
	CustomerID   uint   `gorm:"not null;index:idx_session_lookup"`
	Address      string `gorm:"type:varchar(32);not null"`
	Channel      string `gorm:"type:varchar(16);not null;index:idx_session_lookup"`
	Status       string `gorm:"type:varchar(16);not null"`
	OpenedAt     time.Time
	ClosedAt     *time.Time
	LastTicketID string `gorm:"type:varchar(64)"`
	LastTicketAt *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (Session) TableName() string {
	return "sessions"
}
