package tenant

import (
	"context"
	"time"
)

// Tenant is one company served by the bot. Every piece of state in the
// engine is keyed by tenant; there is no implicit default.
type Tenant struct {
	ID            uint
	Slug          string
	Name          string
	DisplayNumber string
	Profile       *BotProfile
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BotProfile carries the per-tenant model parameters and prompt blocks
// used to assemble the system instruction for each turn.
type BotProfile struct {
	ID                  uint
	TenantID            uint
	SystemPrompt        string
	ContextPrompt       string
	HistoryPrompt       string
	OutputStyle         string
	ChatModel           string
	EmbeddingModel      string
	Temperature         float32
	TopP                float32
	PresencePenalty     float32
	FrequencyPenalty    float32
	MaxCompletionTokens int
	HistoryWindowSize   int
	UpdatedAt           time.Time
}

// Config is the resolved, read-only configuration value passed explicitly
// into the retriever and the LLM driver for one turn. It replaces any
// ambient "current tenant" lookup.
type Config struct {
	TenantID            uint
	TenantName          string
	SystemPrompt        string
	ContextPrompt       string
	HistoryPrompt       string
	OutputStyle         string
	ChatModel           string
	EmbeddingModel      string
	Temperature         float32
	TopP                float32
	PresencePenalty     float32
	FrequencyPenalty    float32
	MaxCompletionTokens int
	HistoryWindowSize   int
}

type Repository interface {
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	EnsureBySlug(ctx context.Context, slug, nameFallback string) (*Tenant, error)
}

const (
	defaultTemperature         = 0.3
	defaultTopP                = 0.9
	defaultFrequencyPenalty    = 0.2
	defaultMaxCompletionTokens = 512
	defaultHistoryWindowSize   = 10
)

// ResolveConfig merges the tenant's bot profile with engine defaults,
// producing the value object handed to every component of the turn.
func (t *Tenant) ResolveConfig(defaultChatModel, defaultEmbeddingModel string) Config {
	cfg := Config{
		TenantID:            t.ID,
		TenantName:          t.Name,
		ChatModel:           defaultChatModel,
		EmbeddingModel:      defaultEmbeddingModel,
		Temperature:         defaultTemperature,
		TopP:                defaultTopP,
		FrequencyPenalty:    defaultFrequencyPenalty,
		MaxCompletionTokens: defaultMaxCompletionTokens,
		HistoryWindowSize:   defaultHistoryWindowSize,
	}

	p := t.Profile
	if p == nil {
		return cfg
	}

	cfg.SystemPrompt = p.SystemPrompt
	cfg.ContextPrompt = p.ContextPrompt
	cfg.HistoryPrompt = p.HistoryPrompt
	cfg.OutputStyle = p.OutputStyle
	if p.ChatModel != "" {
		cfg.ChatModel = p.ChatModel
	}
	if p.EmbeddingModel != "" {
		cfg.EmbeddingModel = p.EmbeddingModel
	}
	if p.Temperature > 0 {
		cfg.Temperature = p.Temperature
	}
	if p.TopP > 0 {
		cfg.TopP = p.TopP
	}
	if p.PresencePenalty != 0 {
		cfg.PresencePenalty = p.PresencePenalty
	}
	if p.FrequencyPenalty != 0 {
		cfg.FrequencyPenalty = p.FrequencyPenalty
	}
	if p.MaxCompletionTokens > 0 {
		cfg.MaxCompletionTokens = p.MaxCompletionTokens
	}
	if p.HistoryWindowSize > 0 {
		cfg.HistoryWindowSize = p.HistoryWindowSize
	}
	return cfg
}
