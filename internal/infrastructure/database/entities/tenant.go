package entities

import "time"

// Tenant is the persisted company record.
type Tenant struct {
	ID            uint   `gorm:"primaryKey"`
	Slug          string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name          string `gorm:"type:varchar(128);not null"`
	DisplayNumber string `gorm:"type:varchar(32)"`
	Profile       *BotProfile
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Tenant) TableName() string {
	return "tenants"
}

// BotProfile carries per-tenant prompt blocks and model parameters.
type BotProfile struct {
	ID                  uint   `gorm:"primaryKey"`
	TenantID            uint   `gorm:"uniqueIndex;not null"`
	SystemPrompt        string `gorm:"type:text"`
	ContextPrompt       string `gorm:"type:text"`
	HistoryPrompt       string `gorm:"type:text"`
	OutputStyle         string `gorm:"type:text"`
	ChatModel           string `gorm:"type:varchar(128)"`
	EmbeddingModel      string `gorm:"type:varchar(128)"`
	Temperature         float32
	TopP                float32
	PresencePenalty     float32
	FrequencyPenalty    float32
	MaxCompletionTokens int
	HistoryWindowSize   int
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (BotProfile) TableName() string {
	return "bot_profiles"
}
