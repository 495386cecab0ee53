package liveupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"nuvia-server/internal/domain/message"
)

const (
	dialAttempts = 5
	dialBaseWait = 2 * time.Second
	maxDialWait  = 60 * time.Second

	publishTimeout = 5 * time.Second
)

// Notifier publishes conversation events to a topic exchange so live
// dashboards can follow sessions in real time. Publication is fire and
// forget: a broker outage costs dashboard freshness, never a turn.
type Notifier struct {
	conn     *amqp091.Connection
	exchange string
	log      zerolog.Logger
}

// Config carries the broker connection settings.
type Config struct {
	URL      string
	Exchange string
}

// dialWithRetry connects with exponential backoff so the server can
// start while the broker is still coming up.
func dialWithRetry(ctx context.Context, url string, log zerolog.Logger) (*amqp091.Connection, error) {
	var lastErr error
	for i := 1; i <= dialAttempts; i++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			if i > 1 {
				log.Info().Int("attempt", i).Msg("broker connected")
			}
			return conn, nil
		}
		lastErr = err

		sleep := dialBaseWait * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialWait {
			sleep = maxDialWait
		}
		log.Warn().Int("attempt", i).Dur("sleep", sleep).Err(err).Msg("broker dial failed")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed to connect to broker after %d attempts: %w", dialAttempts, lastErr)
}

func NewNotifier(ctx context.Context, cfg Config, log zerolog.Logger) (*Notifier, error) {
	logger := log.With().Str("component", "liveupdate-notifier").Logger()

	conn, err := dialWithRetry(ctx, cfg.URL, logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &Notifier{conn: conn, exchange: cfg.Exchange, log: logger}, nil
}

func (n *Notifier) Close() error {
	return n.conn.Close()
}

type event struct {
	Type       string    `json:"type"`
	TenantID   uint      `json:"tenant_id"`
	SessionID  uint      `json:"session_id"`
	CustomerID uint      `json:"customer_id"`
	ExternalID string    `json:"external_id"`
	Direction  string    `json:"direction"`
	Kind       string    `json:"kind,omitempty"`
	Body       string    `json:"body,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MessageRecorded implements message.Notifier.
func (n *Notifier) MessageRecorded(ctx context.Context, m *message.Message) {
	n.publish(ctx, fmt.Sprintf("conversation.%d.message", m.TenantID), event{
		Type:       "message.recorded",
		TenantID:   m.TenantID,
		SessionID:  m.SessionID,
		CustomerID: m.CustomerID,
		ExternalID: m.ExternalID,
		Direction:  string(m.Direction),
		Kind:       string(m.Kind),
		Body:       m.Body,
		OccurredAt: time.Now().UTC(),
	})
}

// StatusChanged implements message.Notifier.
func (n *Notifier) StatusChanged(ctx context.Context, m *message.Message) {
	n.publish(ctx, fmt.Sprintf("conversation.%d.status", m.TenantID), event{
		Type:       "status.changed",
		TenantID:   m.TenantID,
		SessionID:  m.SessionID,
		CustomerID: m.CustomerID,
		ExternalID: m.ExternalID,
		Direction:  string(m.Direction),
		Status:     string(m.Status),
		OccurredAt: time.Now().UTC(),
	})
}

func (n *Notifier) publish(ctx context.Context, key string, ev event) {
	ch, err := n.conn.Channel()
	if err != nil {
		n.log.Warn().Err(err).Str("routing_key", key).Msg("live update dropped, channel unavailable")
		return
	}
	defer ch.Close()

	body, err := json.Marshal(ev)
	if err != nil {
		n.log.Warn().Err(err).Msg("live update dropped, marshal failed")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(pubCtx, n.exchange, key, false, false, amqp091.Publishing{
		ContentType: "application/json",
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		n.log.Warn().Err(err).Str("routing_key", key).Msg("live update dropped, publish failed")
	}
}
