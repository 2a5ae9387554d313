package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/events"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/IBM/sarama"
)

type Consumer struct {
	consumer sarama.ConsumerGroup
	topic    string
	handler  *ConsumerGroupHandler
	logger   *slog.Logger
}

func NewConsumer(brokers []string, topic, group string, handler events.Handler, logger *slog.Logger, m *metrics.Metrics) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumerGroup, err := sarama.NewConsumerGroup(brokers, group, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		consumer: consumerGroup,
		topic:    topic,
		handler:  &ConsumerGroupHandler{Handler: handler, Logger: logger, Metrics: m},
		logger:   logger,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := c.consumer.Consume(ctx, []string{c.topic}, c.handler); err != nil {
			c.logger.Error("error consuming messages", "error", err)
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// ConsumerGroupHandler implements sarama.ConsumerGroupHandler interface
type ConsumerGroupHandler struct {
	Handler events.Handler
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (h *ConsumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *ConsumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks every message, handled or not; failures are logged only.
func (h *ConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()

	for msg := range claim.Messages() {
		start := time.Now()

		var event events.PaymentStatusChanged
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			h.Logger.Error("failed to unmarshal message", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			h.Metrics.Messaging.RecordConsume(ctx, msg.Topic, time.Since(start), err)
			session.MarkMessage(msg, "")
			continue
		}

		err := h.Handler.HandlePaymentEvent(ctx, event)
		h.Metrics.Messaging.RecordConsume(ctx, msg.Topic, time.Since(start), err)
		if err != nil {
			h.Logger.Error("failed to handle payment event", "payment_id", event.PaymentID, "error", err)
		}

		session.MarkMessage(msg, "")
	}

	return nil
}
