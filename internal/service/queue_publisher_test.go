package queue_publisher

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/portfolio-lease/internal/config"
	"github.com/iliyamo/portfolio-lease/internal/logging"
	q "github.com/iliyamo/portfolio-lease/internal/queue"
)

func TestPublishLeaseEventBrokerDown(t *testing.T) {
	p := NewPublisher(config.QueueConfig{URL: "amqp://nowhere/", Queue: "lease.events"}, logging.Discard())
	dials := 0
	boom := errors.New("connection refused")
	p.dial = func(string) (*amqp.Connection, error) {
		dials++
		return nil, boom
	}

	err := p.PublishLeaseEvent(context.Background(), q.LeaseEvent{Type: q.EventAcquired})
	assert.ErrorIs(t, err, boom)

	// Every publish retries the dial; nothing is cached after a failure.
	err = p.PublishLeaseEvent(context.Background(), q.LeaseEvent{Type: q.EventReleased})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, dials)
	assert.NoError(t, p.Close())
}
