package inference

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"nuvia-server/internal/utils/platformerrors"
)

const rewriteInstruction = "Reescribe la siguiente consulta de un cliente como una búsqueda corta de " +
	"palabras clave, sin saludos ni relleno, en el mismo idioma. Responde solo con la consulta reescrita."

// Client wraps the OpenAI-compatible inference provider for chat
// completions, embeddings, and retrieval query rewriting.
type Client struct {
	api *openai.Client
	log zerolog.Logger
}

// Config carries the provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		api: openai.NewClientWithConfig(apiCfg),
		log: log.With().Str("component", "inference-client").Logger(),
	}
}

// CreateChatCompletion forwards the request to the provider unchanged.
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, platformerrors.NewError(ctx,
			platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"chat completion request failed", err, "")
	}
	return resp, nil
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, model, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds several texts in one request, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, model string, texts []string) ([][]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: texts,
	})
	if err != nil {
		return nil, platformerrors.NewError(ctx,
			platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"embedding request failed", err, "")
	}
	if len(resp.Data) != len(texts) {
		return nil, platformerrors.NewError(ctx,
			platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"embedding response count mismatch", nil, "")
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// RewriteQuery condenses a long customer query into search keywords.
func (c *Client) RewriteQuery(ctx context.Context, model, query string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rewriteInstruction},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature:         0.1,
		MaxCompletionTokens: 64,
	})
	if err != nil {
		return "", platformerrors.NewError(ctx,
			platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"query rewrite request failed", err, "")
	}
	if len(resp.Choices) == 0 {
		return "", platformerrors.NewError(ctx,
			platformerrors.LayerInfrastructure, platformerrors.ErrorTypeExternal,
			"query rewrite returned no choices", nil, "")
	}
	return resp.Choices[0].Message.Content, nil
}
