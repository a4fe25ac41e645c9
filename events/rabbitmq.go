/*
Package events publishes domain events to RabbitMQ.

PURPOSE:
  Beneficiary changes and allocation audit breaches go out on a durable
  topic exchange as JSON so downstream services (reporting, settlement)
  can follow the ledger without polling it.

PUBLISHERS:
  Producer:  AMQP connection and channel, one topic exchange per name
  Fallback:  logs and drops; used when the broker is unreachable at startup
             or not configured at all

ROUTING KEYS:
  beneficiary.created / beneficiary.updated / beneficiary.deleted
  allocation.breach

SEE ALSO:
  - beneficiary/events.go: event bodies for the lifecycle manager
  - api/scheduler.go: audit breaches
*/
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is what Producer and Fallback have in common.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// =============================================================================
// PRODUCER
// =============================================================================

// Producer publishes JSON events to RabbitMQ topic exchanges.
type Producer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger

	mu       sync.Mutex
	declared map[string]bool
}

// NewProducer dials amqpURL and opens a channel.
func NewProducer(amqpURL string, logger *slog.Logger) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Producer{conn: conn, channel: channel, logger: logger, declared: map[string]bool{}}, nil
}

// Publish declares exchange (once per name) and sends body as JSON.
func (p *Producer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishes.
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[exchange] {
		if err := p.channel.ExchangeDeclare(
			exchange,
			"topic",
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return err
		}
		p.declared[exchange] = true
	}

	if err := p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}); err != nil {
		return err
	}

	p.logger.Debug("published event", "exchange", exchange, "routing_key", routingKey)
	return nil
}

// Close releases channel and connection resources.
func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// =============================================================================
// FALLBACK
// =============================================================================

// Fallback is a publisher that only logs.
type Fallback struct {
	Logger *slog.Logger
}

func (f *Fallback) Publish(_ context.Context, exchange, routingKey string, _ interface{}) error {
	if f.Logger != nil {
		f.Logger.Warn("event dropped, no broker connected", "exchange", exchange, "routing_key", routingKey)
	}
	return nil
}

func (f *Fallback) Close() {}

// Connect returns a Producer for amqpURL, or a Fallback when amqpURL is
// empty or the broker cannot be reached.
func Connect(amqpURL string, logger *slog.Logger) Publisher {
	if amqpURL == "" {
		logger.Info("RABBITMQ_URL not set, events will be dropped")
		return &Fallback{Logger: logger}
	}
	p, err := NewProducer(amqpURL, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, events will be dropped", "error", err)
		return &Fallback{Logger: logger}
	}
	return p
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
