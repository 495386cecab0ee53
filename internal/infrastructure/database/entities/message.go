package entities

import "time"

// Message is the persisted ledger entry, keyed for idempotency by
// (tenant_id, external_id).
type Message struct {
	ID                uint   `gorm:"primaryKey"`
	TenantID          uint   `gorm:"not null;uniqueIndex:idx_message_tenant_external"`
	ExternalID        string `gorm:"type:varchar(128);not null;uniqueIndex:idx_message_tenant_external"`
	SessionID         uint   `gorm:"not null;index"`
	CustomerID        uint   `gorm:"not null;index"`
	Direction         string `gorm:"type:varchar(16);not null"`
	Kind              string `gorm:"type:varchar(16);not null"`
	Body              string `gorm:"type:text"`
	ReplyToExternalID string `gorm:"type:varchar(128)"`
	MediaURL          string `gorm:"type:varchar(512)"`
	Status            string `gorm:"type:varchar(16)"`
	StatusAt          *time.Time
	FailureCode       string `gorm:"type:varchar(32)"`
	SentAt            time.Time
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func (Message) TableName() string {
	return "messages"
}
