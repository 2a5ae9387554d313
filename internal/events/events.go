// Package events defines the payment status event and the publisher contract
// shared by the NATS and Kafka transports.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatusChanged struct {
	PaymentID      string          `json:"paymentId"`
	Reference      string          `json:"reference,omitempty"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previousStatus,omitempty"`
	TransferStatus string          `json:"transferStatus,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason,omitempty"`
	PayrollID      *int            `json:"payrollId,omitempty"`
	EmployeeID     *int            `json:"employeeId,omitempty"`
	EmployeeName   string          `json:"employeeName,omitempty"`
	EmployeeEmail  string          `json:"employeeEmail,omitempty"`
	StudentFeeID   *int            `json:"studentFeeId,omitempty"`
	OccurredAt     time.Time       `json:"occurredAt"`
}

// Producer publishes JSON-encoded values under a key.
type Producer interface {
	SendMessage(ctx context.Context, key string, value any) error
	Close() error
}

// Handler consumes decoded payment events.
type Handler interface {
	HandlePaymentEvent(ctx context.Context, event PaymentStatusChanged) error
}

// NoopProducer drops every message. Used when events.driver is "none".
type NoopProducer struct{}

func (NoopProducer) SendMessage(ctx context.Context, key string, value any) error { return nil }
func (NoopProducer) Close() error                                                 { return nil }
