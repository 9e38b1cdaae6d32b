package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/clinwave/clinwave/internal/config"
	"github.com/clinwave/clinwave/internal/message"
)

// Routing keys for relayed traffic.
const (
	KeyInbound  = "inbound_messages"
	KeyOutbound = "outbound_messages"
)

// Envelope is the payload published for every relayed message.
type Envelope struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Message   message.Message `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// Producer publishes relayed messages to a topic exchange.
type Producer interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

type rmqProducer struct {
	conn     *amqp091.Connection
	exchange string
	logger   *slog.Logger
}

// New connects and declares the topic exchange. When the queue URL is left
// unconfigured, a no-op producer is returned so the relay runs without a
// broker.
func New(cfg config.QueueConfig, log *slog.Logger) (Producer, error) {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("service", "queue"))

	if cfg.URL == "" {
		logger.Info("queue not configured, publishing disabled")
		return &noopProducer{logger: logger}, nil
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(
		cfg.Exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	return &rmqProducer{
		conn:     conn,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

func (p *rmqProducer) Publish(ctx context.Context, key string, env Envelope) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    env.ID,
			Timestamp:    env.Timestamp,
			Body:         body,
		},
	)
	if err == nil {
		p.logger.Info("published",
			slog.String("key", key), slog.String("exchange", p.exchange))
	}
	return err
}

func (p *rmqProducer) Close() error {
	return p.conn.Close()
}

type noopProducer struct {
	logger *slog.Logger
}

func (p *noopProducer) Publish(ctx context.Context, key string, env Envelope) error {
	p.logger.Debug("publish skipped", slog.String("key", key))
	return nil
}

func (p *noopProducer) Close() error { return nil }
