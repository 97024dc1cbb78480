// Package queue_publisher publishes lease events to RabbitMQ.  Errors are
// logged and returned so callers can ignore failures without interrupting
// the lease operation that produced the event.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/portfolio-lease/internal/config"
	q "github.com/iliyamo/portfolio-lease/internal/queue"
)

// Publisher keeps one broker connection open and redials after a failure.
// It is safe for concurrent use.
type Publisher struct {
	cfg  config.QueueConfig
	log  *slog.Logger
	dial func(url string) (*amqp.Connection, error)

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for cfg.  No connection is made until
// the first event is published.
func NewPublisher(cfg config.QueueConfig, logger *slog.Logger) *Publisher {
	return &Publisher{cfg: cfg, log: logger.With("component", "lease-publisher"), dial: amqp.Dial}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.dial(p.cfg.URL)
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	// Ensure the queue exists (idempotent). Durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.cfg.Queue, // name
		true,        // durable
		false,       // autoDelete
		false,       // exclusive
		false,       // noWait
		nil,         // args
	); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// PublishLeaseEvent publishes ev to the lease events queue as a persistent
// JSON message.
func (p *Publisher) PublishLeaseEvent(ctx context.Context, ev q.LeaseEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal event failed", "type", ev.Type, "error", err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.Warn("broker unavailable", "type", ev.Type, "error", err)
		p.reset()
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",          // default exchange
		p.cfg.Queue, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		pub,
	); err != nil {
		p.log.Warn("publish failed", "type", ev.Type, "error", err)
		p.reset()
		return err
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
