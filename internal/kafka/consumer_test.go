package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/events"
	"github.com/pablotheshekpeking/payroll-system/internal/kafka"
	"github.com/pablotheshekpeking/payroll-system/internal/logger"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []events.PaymentStatusChanged
	err    error
}

func (r *recordingHandler) HandlePaymentEvent(ctx context.Context, event events.PaymentStatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func TestConsumerGroupHandler(t *testing.T) {
	t.Run("ConsumeClaim_DeliversEvents", func(t *testing.T) {
		rec := &recordingHandler{}
		handler := &kafka.ConsumerGroupHandler{Handler: rec, Logger: logger.Discard(), Metrics: metrics.NewMock()}

		value, _ := json.Marshal(events.PaymentStatusChanged{PaymentID: "pay-1", Status: "COMPLETED"})
		session := newMockSession()
		claim := &mockConsumerGroupClaim{messages: []*sarama.ConsumerMessage{
			{Topic: "test-topic", Partition: 0, Offset: 0, Key: []byte("pay-1"), Value: value, Timestamp: time.Now()},
		}}

		require.NoError(t, handler.ConsumeClaim(session, claim))

		require.Len(t, rec.events, 1)
		assert.Equal(t, "COMPLETED", rec.events[0].Status)
		assert.True(t, session.MarkedMessages["0:0"])
	})

	t.Run("ConsumeClaim_InvalidJSONIsMarked", func(t *testing.T) {
		rec := &recordingHandler{}
		handler := &kafka.ConsumerGroupHandler{Handler: rec, Logger: logger.Discard(), Metrics: metrics.NewMock()}

		session := newMockSession()
		claim := &mockConsumerGroupClaim{messages: []*sarama.ConsumerMessage{
			{Topic: "test-topic", Partition: 0, Offset: 3, Value: []byte("{not json")},
		}}

		require.NoError(t, handler.ConsumeClaim(session, claim))
		assert.Empty(t, rec.events)
		assert.True(t, session.MarkedMessages["0:3"])
	})

	t.Run("ConsumeClaim_HandlerErrorStillMarks", func(t *testing.T) {
		rec := &recordingHandler{err: errors.New("mail down")}
		handler := &kafka.ConsumerGroupHandler{Handler: rec, Logger: logger.Discard(), Metrics: metrics.NewMock()}

		value, _ := json.Marshal(events.PaymentStatusChanged{PaymentID: "pay-9", Status: "FAILED"})
		session := newMockSession()
		claim := &mockConsumerGroupClaim{messages: []*sarama.ConsumerMessage{
			{Topic: "test-topic", Partition: 1, Offset: 7, Value: value},
		}}

		require.NoError(t, handler.ConsumeClaim(session, claim))
		assert.Len(t, rec.events, 1)
		assert.True(t, session.MarkedMessages["1:7"])
	})
}

func newMockSession() *mockConsumerGroupSession {
	return &mockConsumerGroupSession{
		MarkedMessages: make(map[string]bool),
	}
}

type mockConsumerGroupSession struct {
	MarkedMessages map[string]bool
}

func (m *mockConsumerGroupSession) Claims() map[string][]int32                       { return nil }
func (m *mockConsumerGroupSession) MemberID() string                                 { return "test-member" }
func (m *mockConsumerGroupSession) GenerationID() int32                              { return 1 }
func (m *mockConsumerGroupSession) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (m *mockConsumerGroupSession) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (m *mockConsumerGroupSession) Commit()                                          {}
func (m *mockConsumerGroupSession) Context() context.Context                         { return context.Background() }

func (m *mockConsumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.MarkedMessages[fmt.Sprintf("%d:%d", msg.Partition, msg.Offset)] = true
}

type mockConsumerGroupClaim struct {
	messages []*sarama.ConsumerMessage
}

func (m *mockConsumerGroupClaim) Topic() string              { return "test-topic" }
func (m *mockConsumerGroupClaim) Partition() int32           { return 0 }
func (m *mockConsumerGroupClaim) InitialOffset() int64       { return 0 }
func (m *mockConsumerGroupClaim) HighWaterMarkOffset() int64 { return int64(len(m.messages)) }

func (m *mockConsumerGroupClaim) Messages() <-chan *sarama.ConsumerMessage {
	ch := make(chan *sarama.ConsumerMessage)
	go func() {
		defer close(ch)
		for _, msg := range m.messages {
			ch <- msg
		}
	}()
	return ch
}
