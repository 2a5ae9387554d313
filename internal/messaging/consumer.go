package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/events"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/nats-io/nats.go"
)

type Consumer struct {
	conn    *nats.Conn
	sub     *nats.Subscription
	subject string
	queue   string
	handler events.Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewConsumer subscribes handler to subject within a queue group, so that
// replicas share the work.
func NewConsumer(url, subject, queue string, handler events.Handler, logger *slog.Logger, m *metrics.Metrics) (*Consumer, error) {
	nc, err := nats.Connect(url, nats.Name("payroll-consumer"))
	if err != nil {
		return nil, err
	}

	return &Consumer{
		conn:    nc,
		subject: subject,
		queue:   queue,
		handler: handler,
		logger:  logger,
		metrics: m,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.subject, c.queue, func(msg *nats.Msg) {
		start := time.Now()

		var event events.PaymentStatusChanged
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Error("failed to unmarshal message", "subject", msg.Subject, "error", err)
			c.metrics.Messaging.RecordConsume(ctx, msg.Subject, time.Since(start), err)
			return
		}

		err := c.handler.HandlePaymentEvent(ctx, event)
		c.metrics.Messaging.RecordConsume(ctx, msg.Subject, time.Since(start), err)
		if err != nil {
			c.logger.Error("failed to handle payment event", "payment_id", event.PaymentID, "error", err)
		}
	})
	if err != nil {
		return err
	}

	c.sub = sub
	c.logger.Info("NATS consumer started", "subject", c.subject, "queue", c.queue)

	<-ctx.Done()
	return ctx.Err()
}

func (c *Consumer) Close() error {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.conn.Close()
	return nil
}

// HealthCheck verifies NATS connection is healthy
func (c *Consumer) HealthCheck() error {
	if c.conn == nil {
		return nats.ErrConnectionClosed
	}
	if !c.conn.IsConnected() {
		return nats.ErrDisconnected
	}
	return nil
}
