package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"nuvia-server/internal/domain/message"
	"nuvia-server/internal/domain/turn"
)

// MediaFetcher resolves and downloads channel attachments.
type MediaFetcher interface {
	MediaURL(ctx context.Context, mediaID string) (url, mimeType string, err error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// MediaArchiver copies channel attachments into durable storage. Keys
// are routed by tenant, customer and session so the CRM can list a
// conversation's media without a database query.
type MediaArchiver struct {
	fetcher  MediaFetcher
	uploader Uploader
	log      zerolog.Logger
}

func NewMediaArchiver(fetcher MediaFetcher, uploader Uploader, log zerolog.Logger) *MediaArchiver {
	return &MediaArchiver{
		fetcher:  fetcher,
		uploader: uploader,
		log:      log.With().Str("component", "media-archiver").Logger(),
	}
}

func (a *MediaArchiver) Archive(ctx context.Context, ev turn.InboundEvent, m *message.Message) (string, error) {
	if ev.MediaID == "" {
		return "", nil
	}

	url, mimeType, err := a.fetcher.MediaURL(ctx, ev.MediaID)
	if err != nil {
		return "", err
	}
	if mimeType == "" {
		mimeType = ev.MediaMime
	}

	body, err := a.fetcher.Download(ctx, url)
	if err != nil {
		return "", err
	}

	key := buildKey(m, mimeType)
	stored, err := a.uploader.Upload(ctx, key, mimeType, body)
	if err != nil {
		return "", err
	}
	a.log.Debug().Str("key", key).Int("bytes", len(body)).Msg("attachment archived")
	return stored, nil
}

func buildKey(m *message.Message, mimeType string) string {
	dir := "in"
	if m.Direction == message.DirectionOutbound {
		dir = "out"
	}
	return fmt.Sprintf("tenant-%d/customer-%d/session-%d/%s/%s/%s%s",
		m.TenantID, m.CustomerID, m.SessionID, dir, m.Kind, safeName(m.ExternalID), extension(mimeType))
}

// extension maps common attachment mime types to file extensions.
var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"audio/ogg":       ".ogg",
	"audio/mpeg":      ".mp3",
	"video/mp4":       ".mp4",
	"application/pdf": ".pdf",
}

func extension(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	if ext, ok := mimeExtensions[strings.TrimSpace(base)]; ok {
		return ext
	}
	return ".bin"
}

func safeName(externalID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, externalID)
}
