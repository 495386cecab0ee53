package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"nuvia-server/internal/utils/platformerrors"
)

const (
	requestTimeout = 30 * time.Second

	// maxTextLength is the channel's hard cap on message bodies.
	maxTextLength = 4000
)

// Client talks to the WhatsApp Cloud-style messaging API.
type Client struct {
	http          *resty.Client
	accessToken   string
	displayNumber string
	log           zerolog.Logger
}

// Config carries the channel API connection settings.
type Config struct {
	BaseURL       string
	AccessToken   string
	DisplayNumber string
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(requestTimeout).
		SetHeader("Authorization", "Bearer "+cfg.AccessToken)
	return &Client{
		http:          http,
		accessToken:   cfg.AccessToken,
		displayNumber: cfg.DisplayNumber,
		log:           log.With().Str("component", "whatsapp-client").Logger(),
	}
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a text message. The body is sanitized and truncated
// to the channel limit before sending.
func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"body": sanitizeText(text),
		},
	}

	var result sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post(fmt.Sprintf("/%s/messages", c.displayNumber))
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "send text request failed", err, "")
	}
	if resp.IsError() {
		return "", platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "channel rejected text message", nil, "",
			map[string]any{"status": resp.StatusCode(), "body": resp.String()})
	}
	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}

type mediaURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// MediaURL resolves a media id to its short-lived download URL.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (string, string, error) {
	var result mediaURLResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/" + mediaID)
	if err != nil {
		return "", "", platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "media url request failed", err, "")
	}
	if resp.IsError() || result.URL == "" {
		return "", "", platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "media url not available", nil, "",
			map[string]any{"media_id": mediaID, "status": resp.StatusCode()})
	}
	return result.URL, result.MimeType, nil
}

// Download fetches the media bytes from a resolved URL. The channel
// requires the same bearer token on media downloads.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "media download failed", err, "")
	}
	if resp.IsError() {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure,
			platformerrors.ErrorTypeExternal, "media download rejected", nil, "",
			map[string]any{"status": resp.StatusCode()})
	}
	return resp.Bytes(), nil
}

// sanitizeText strips characters the channel rejects and enforces the
// length cap, cutting on a space when one is near the limit.
func sanitizeText(text string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\u00a0", " "))
	if len(text) <= maxTextLength {
		return text
	}
	cut := text[:maxTextLength]
	if i := strings.LastIndex(cut, " "); i > maxTextLength-200 {
		cut = cut[:i]
	}
	return cut
}
