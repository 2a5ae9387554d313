package messaging_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/events"
	"github.com/pablotheshekpeking/payroll-system/internal/logger"
	"github.com/pablotheshekpeking/payroll-system/internal/messaging"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"
	"github.com/pablotheshekpeking/payroll-system/testing/testnats"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []events.PaymentStatusChanged
}

func (r *recordingHandler) HandlePaymentEvent(ctx context.Context, event events.PaymentStatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingHandler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNATSIntegration(t *testing.T) {
	natsContainer := testnats.SetupSharedNATS(t)
	defer natsContainer.Cleanup(t)

	log := logger.Discard()

	t.Run("Producer_PublishesJSONWithKey", func(t *testing.T) {
		subject := "test.payments.producer"
		conn := natsContainer.Connect(t)

		received := make(chan *nats.Msg, 1)
		sub, err := conn.ChanSubscribe(subject, received)
		require.NoError(t, err)
		defer sub.Unsubscribe()
		require.NoError(t, conn.Flush())

		producer, err := messaging.NewProducer(natsContainer.URL, subject, log, metrics.NewMock())
		require.NoError(t, err)
		defer producer.Close()
		require.NoError(t, producer.HealthCheck())

		err = producer.SendMessage(context.Background(), "pay-1", events.PaymentStatusChanged{
			PaymentID: "pay-1",
			Status:    "PROCESSING",
			Amount:    decimal.NewFromInt(100000),
		})
		require.NoError(t, err)

		select {
		case msg := <-received:
			assert.Equal(t, "pay-1", msg.Header.Get(nats.MsgIdHdr))
			var got events.PaymentStatusChanged
			require.NoError(t, json.Unmarshal(msg.Data, &got))
			assert.Equal(t, "PROCESSING", got.Status)
		case <-time.After(5 * time.Second):
			t.Fatal("message not received")
		}
	})

	t.Run("Consumer_DeliversToHandler", func(t *testing.T) {
		subject := "test.payments.consumer"
		rec := &recordingHandler{}

		consumer, err := messaging.NewConsumer(natsContainer.URL, subject, "notify", rec, log, metrics.NewMock())
		require.NoError(t, err)
		defer consumer.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go consumer.Start(ctx)
		time.Sleep(100 * time.Millisecond)

		producer, err := messaging.NewProducer(natsContainer.URL, subject, log, metrics.NewMock())
		require.NoError(t, err)
		defer producer.Close()

		for i := 0; i < 3; i++ {
			require.NoError(t, producer.SendMessage(ctx, "", events.PaymentStatusChanged{PaymentID: "p", Status: "COMPLETED"}))
		}

		assert.Eventually(t, func() bool { return rec.count() == 3 }, 5*time.Second, 50*time.Millisecond)
		assert.NoError(t, consumer.HealthCheck())
	})
}
