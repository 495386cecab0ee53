package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for the turn engine.
type Config struct {
	// HTTP Server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Database
	DatabaseURL    string        `env:"DATABASE_URL,notEmpty"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBConnLifetime time.Duration `env:"DB_CONN_LIFETIME" envDefault:"30m"`
	AutoMigrate    bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	// Inference provider (OpenAI-compatible; Fireworks in production)
	InferenceBaseURL      string        `env:"INFERENCE_BASE_URL" envDefault:"https://api.fireworks.ai/inference/v1"`
	InferenceAPIKey       string        `env:"INFERENCE_API_KEY,notEmpty"`
	DefaultChatModel      string        `env:"CHAT_MODEL" envDefault:"accounts/fireworks/models/gpt-oss-120b"`
	DefaultEmbeddingModel string        `env:"EMBEDDING_MODEL" envDefault:"fireworks/qwen3-embedding-8b"`
	InferenceTimeout      time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"60s"`

	// Channel gateway (WhatsApp Cloud API)
	ChannelBaseURL       string `env:"CHANNEL_BASE_URL,notEmpty"`
	ChannelAccessToken   string `env:"CHANNEL_ACCESS_TOKEN"`
	ChannelVerifyToken   string `env:"CHANNEL_VERIFY_TOKEN"`
	ChannelDisplayNumber string `env:"CHANNEL_DISPLAY_NUMBER" envDefault:"BOT"`

	// CRM / tool targets
	CRMBaseURL     string `env:"CRM_API_URL"`
	InternalSecret string `env:"INTERNAL_SECRET"`

	// Object storage (S3-compatible Spaces)
	SpacesBucket    string `env:"SPACES_BUCKET"`
	SpacesRegion    string `env:"SPACES_REGION" envDefault:"nyc3"`
	SpacesEndpoint  string `env:"SPACES_ENDPOINT"`
	SpacesAccessKey string `env:"SPACES_ACCESS_KEY"`
	SpacesSecretKey string `env:"SPACES_SECRET_KEY"`
	SpacesKeyPrefix string `env:"SPACES_KEY_PREFIX" envDefault:"crm"`

	// Live updates (RabbitMQ)
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"live-updates"`

	// Turn engine
	TurnTimeout    time.Duration `env:"TURN_TIMEOUT" envDefault:"90s"`
	RetrievalLimit int           `env:"RETRIEVAL_LIMIT" envDefault:"7"`

	// Observability / Logging
	ServiceName string `env:"SERVICE_NAME" envDefault:"turn-engine"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.ChannelBaseURL); err != nil {
		return nil, fmt.Errorf("invalid CHANNEL_BASE_URL: %w", err)
	}
	if cfg.CRMBaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.CRMBaseURL); err != nil {
			return nil, fmt.Errorf("invalid CRM_API_URL: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
