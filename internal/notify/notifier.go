package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pablotheshekpeking/payroll-system/internal/events"
)

// Notifier mails the employee when a salary payment is sent, settles or fails.
// Fee payments and other statuses are ignored.
type Notifier struct {
	mailer   Mailer
	currency string
	logger   *slog.Logger
}

var _ events.Handler = (*Notifier)(nil)

func NewNotifier(mailer Mailer, currency string, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer:   mailer,
		currency: currency,
		logger:   logger,
	}
}

func (n *Notifier) HandlePaymentEvent(ctx context.Context, event events.PaymentStatusChanged) error {
	if event.StudentFeeID != nil || event.EmployeeEmail == "" {
		return nil
	}

	msg, ok := n.compose(event)
	if !ok {
		return nil
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify payment %s: %w", event.PaymentID, err)
	}

	n.logger.InfoContext(ctx, "payment notification sent",
		"payment_id", event.PaymentID,
		"status", event.Status,
		"employee_id", event.EmployeeID,
	)
	return nil
}

func (n *Notifier) compose(event events.PaymentStatusChanged) (Message, bool) {
	amount := n.currency + " " + event.Amount.StringFixed(2)
	name := event.EmployeeName
	if name == "" {
		name = "there"
	}

	var subject, line string
	switch event.Status {
	case "PROCESSING":
		subject = "Your salary payment is on its way"
		line = fmt.Sprintf("A payment of %s has been sent to your bank account.", amount)
	case "COMPLETED":
		subject = "Your salary payment has been completed"
		line = fmt.Sprintf("Your payment of %s has been completed.", amount)
	case "FAILED":
		subject = "Your salary payment failed"
		line = fmt.Sprintf("Your payment of %s could not be completed.", amount)
		if event.TransferStatus == "reversed" {
			line = fmt.Sprintf("Your payment of %s was reversed by the bank.", amount)
		}
		line += " The payroll team has been informed."
	default:
		return Message{}, false
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hello %s,\n\n%s\n", name, line)
	if event.Reason != "" {
		fmt.Fprintf(&text, "\nDescription: %s\n", event.Reason)
	}
	if event.Reference != "" {
		fmt.Fprintf(&text, "Reference: %s\n", event.Reference)
	}

	return Message{
		ToName:  event.EmployeeName,
		ToEmail: event.EmployeeEmail,
		Subject: subject,
		Text:    text.String(),
	}, true
}
