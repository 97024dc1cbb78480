package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/portfolio-lease/internal/config"
)

// AuditLogFile is the file, inside the configured directory, that receives
// one line per lease event.
const AuditLogFile = "lease.log"

// StartLeaseAuditConsumer connects to RabbitMQ, declares the lease events
// queue (durable) and appends each message to <dir>/lease.log.  It keeps
// reconnecting with exponential backoff until ctx is cancelled, then
// returns ctx.Err().  Malformed messages are rejected without requeue so
// a poison message cannot stall the queue.
func StartLeaseAuditConsumer(ctx context.Context, cfg config.QueueConfig, logger *slog.Logger) error {
	log := logger.With("component", "lease-audit-consumer")
	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn("failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, cfg, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.QueueConfig, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := HandleMessage(cfg.AuditLogDir, d.Body); err != nil {
			log.Error("handle message failed", "error", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes one lease event and appends it to the audit log
// in dir.
func HandleMessage(dir string, body []byte) error {
	var ev LeaseEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, AuditLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders an event as a single human-friendly line.
func FormatAuditLine(ev LeaseEvent) string {
	switch ev.Type {
	case EventReclaimed, EventReleasedAll:
		return fmt.Sprintf("[%s] %s | tenant_id=%d | holder=%q | reason=%s | count=%d\n",
			ev.OccurredAt, ev.Type, ev.TenantID, ev.Holder, ev.Reason, ev.Count)
	default:
		return fmt.Sprintf("[%s] %s | reservation_id=%s | tenant_id=%d | portfolio_id=%d | hour=%d | holder=%q\n",
			ev.OccurredAt, ev.Type, ev.ReservationID, ev.TenantID, ev.PortfolioID, ev.Hour, ev.Holder)
	}
}
