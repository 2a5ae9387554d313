package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PaymentMetrics counts payment outcomes and provider traffic.
type PaymentMetrics struct {
	transfers       metric.Int64Counter
	transferredKobo metric.Int64Counter
	webhooks        metric.Int64Counter
	providerErrors  metric.Int64Counter
	payrolls        metric.Int64Counter
}

func NewPaymentMetrics(meter metric.Meter) (*PaymentMetrics, error) {
	pm := &PaymentMetrics{}

	var err error

	pm.transfers, err = meter.Int64Counter(
		"payroll.transfers",
		metric.WithDescription("Payment transfer attempts by resulting status"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		return nil, err
	}

	pm.transferredKobo, err = meter.Int64Counter(
		"payroll.transferred_amount",
		metric.WithDescription("Amount handed to the provider, in minor units"),
		metric.WithUnit("{kobo}"),
	)
	if err != nil {
		return nil, err
	}

	pm.webhooks, err = meter.Int64Counter(
		"payroll.webhooks",
		metric.WithDescription("Provider webhook events received"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	pm.providerErrors, err = meter.Int64Counter(
		"payroll.provider.errors",
		metric.WithDescription("Failed calls to the payment provider"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	pm.payrolls, err = meter.Int64Counter(
		"payroll.batches.created",
		metric.WithDescription("Payroll batches created"),
		metric.WithUnit("{payroll}"),
	)
	if err != nil {
		return nil, err
	}

	return pm, nil
}

func (pm *PaymentMetrics) RecordTransfer(ctx context.Context, status string, kobo int64) {
	if pm == nil || pm.transfers == nil {
		return
	}
	pm.transfers.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if kobo > 0 {
		pm.transferredKobo.Add(ctx, kobo)
	}
}

func (pm *PaymentMetrics) RecordWebhook(ctx context.Context, event string, valid bool) {
	if pm == nil || pm.webhooks == nil {
		return
	}
	pm.webhooks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.Bool("valid_signature", valid),
	))
}

func (pm *PaymentMetrics) RecordProviderError(ctx context.Context, operation string) {
	if pm == nil || pm.providerErrors == nil {
		return
	}
	pm.providerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (pm *PaymentMetrics) RecordPayrollCreated(ctx context.Context, employees int) {
	if pm == nil || pm.payrolls == nil {
		return
	}
	pm.payrolls.Add(ctx, 1, metric.WithAttributes(attribute.Int("employees", employees)))
}
