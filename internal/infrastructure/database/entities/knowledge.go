package entities

import "time"

// KnowledgeDocument is a persisted knowledge source.
type KnowledgeDocument struct {
	ID        uint   `gorm:"primaryKey"`
	TenantID  uint   `gorm:"not null;index"`
	Title     string `gorm:"type:varchar(256);not null"`
	Source    string `gorm:"type:varchar(128)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}

// KnowledgeChunk is one embedded fragment. The embedding column is a
// pgvector; reads and writes go through raw SQL with a vector literal,
// so gorm only sees the other columns.
type KnowledgeChunk struct {
	ID         uint   `gorm:"primaryKey"`
	DocumentID uint   `gorm:"not null;index"`
	TenantID   uint   `gorm:"not null;index"`
	Ordinal    int    `gorm:"not null"`
	Content    string `gorm:"type:text;not null"`
	TokenCount int    `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (KnowledgeChunk) TableName() string {
	return "knowledge_chunks"
}
