package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/events"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"
	"github.com/pablotheshekpeking/payroll-system/internal/paystack"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidInput        = errors.New("invalid payment details")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrPayrollNotFound     = errors.New("payroll not found")
	ErrBankAccountNotFound = errors.New("employee bank details not found")
	ErrBalanceUnavailable  = errors.New("unable to verify available balance")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferUnavailable = errors.New("payment transfers are not available, please upgrade your Paystack account")
	ErrTransferFailed      = errors.New("failed to process payment")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrChargeNotSuccessful = errors.New("payment verification failed")
	ErrProvider            = errors.New("payment provider request failed")
	ErrNotPending          = errors.New("payment is not pending")
	ErrNotReconcilable     = errors.New("payment has no provider reference")
	ErrInvalidTransition   = errors.New("invalid payment status transition")
	ErrStaleStatus         = errors.New("payment status changed concurrently")
	ErrCurrencyMismatch    = errors.New("currency does not match the employee bank account")
)

const recentLimit = 50

// Provider is the subset of the Paystack client the payment workflows use.
type Provider interface {
	Balance(ctx context.Context) ([]paystack.Balance, error)
	CreateTransferRecipient(ctx context.Context, req paystack.RecipientRequest) (*paystack.Recipient, error)
	InitiateTransfer(ctx context.Context, req paystack.TransferRequest) (*paystack.Transfer, error)
	VerifyTransfer(ctx context.Context, reference string) (*paystack.Transfer, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// EmployeeSource loads payees with their bank account. employee.Repository satisfies it.
type EmployeeSource interface {
	GetByID(ctx context.Context, id int) (*employee.Employee, error)
	UpdateRecipientCode(ctx context.Context, accountID int, code string) error
}

type Options struct {
	Currency      string
	WebhookSecret string
}

type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*Payment, error)
	ProcessPending(ctx context.Context, id string) (*Payment, error)
	Get(ctx context.Context, id string) (*Payment, error)
	ListByPayroll(ctx context.Context, payrollID int) ([]Payment, error)
	ListRecent(ctx context.Context) ([]Payment, error)
	ListByEmployee(ctx context.Context, employeeID int) ([]Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	VerifyCharge(ctx context.Context, reference string) ([]Payment, error)
	Reconcile(ctx context.Context, id string) (*Payment, error)
}

type service struct {
	repo          Repository
	employees     EmployeeSource
	provider      Provider
	producer      events.Producer
	metrics       *metrics.Metrics
	currency      string
	webhookSecret string
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(repo Repository, employees EmployeeSource, provider Provider, producer events.Producer, m *metrics.Metrics, opts Options, logger *slog.Logger) Service {
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	if producer == nil {
		producer = events.NoopProducer{}
	}
	return &service{
		repo:          repo,
		employees:     employees,
		provider:      provider,
		producer:      producer,
		metrics:       m,
		currency:      opts.Currency,
		webhookSecret: opts.WebhookSecret,
		logger:        logger,
		now:           time.Now,
	}
}

// Initiate creates a salary payment and makes one transfer attempt for it.
func (s *service) Initiate(ctx context.Context, req InitiateRequest) (*Payment, error) {
	if req.EmployeeID <= 0 || req.PayrollID <= 0 || !req.Amount.IsPositive() {
		return nil, ErrInvalidInput
	}

	emp, err := s.employees.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if emp.BankAccount == nil {
		return nil, ErrBankAccountNotFound
	}

	payrollName, err := s.repo.PayrollName(ctx, req.PayrollID)
	if err != nil {
		return nil, err
	}

	currency, err := s.accountCurrency(emp.BankAccount, req.Currency)
	if err != nil {
		return nil, err
	}

	payment := &Payment{
		ID:         uuid.NewString(),
		Amount:     req.Amount.Round(2),
		Status:     StatusPending,
		EmployeeID: &emp.ID,
		PayrollID:  &req.PayrollID,
		Reason:     req.Description,
	}

	if req.DryRun {
		now := s.now()
		payment.Status = StatusPaid
		payment.TransferStatus = "SUCCESS"
		payment.ProcessedAt = &now
		if err := s.repo.Create(ctx, payment); err != nil {
			return nil, err
		}
		payment.Employee = emp
		s.logger.InfoContext(ctx, "dry run payment recorded", "payment_id", payment.ID, "employee_id", emp.ID)
		s.publish(ctx, payment, "")
		return payment, nil
	}

	if err := s.checkBalance(ctx, currency, payment.Amount); err != nil {
		return nil, err
	}

	payment.TransferStatus = "PENDING"
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}
	payment.Employee = emp

	if err := s.transfer(ctx, payment, emp.BankAccount, currency, payrollName); err != nil {
		return nil, err
	}
	return payment, nil
}

// ProcessPending runs the transfer steps for an existing PENDING salary row.
// Balance failures leave the row PENDING so it can be retried.
func (s *service) ProcessPending(ctx context.Context, id string) (*Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != StatusPending {
		return nil, ErrNotPending
	}
	if payment.EmployeeID == nil || payment.PayrollID == nil {
		return nil, fmt.Errorf("%w: not a salary payment", ErrInvalidInput)
	}

	emp, err := s.employees.GetByID(ctx, *payment.EmployeeID)
	if err != nil {
		return nil, err
	}
	payment.Employee = emp

	if emp.BankAccount == nil {
		payment.Status = StatusFailed
		payment.TransferStatus = "FAILED"
		if err := s.changeStatus(ctx, payment, StatusPending); err != nil {
			return nil, err
		}
		return payment, ErrBankAccountNotFound
	}

	payrollName, err := s.repo.PayrollName(ctx, *payment.PayrollID)
	if err != nil {
		return nil, err
	}

	currency, err := s.accountCurrency(emp.BankAccount, "")
	if err != nil {
		return nil, err
	}
	if err := s.checkBalance(ctx, currency, payment.Amount); err != nil {
		return nil, err
	}

	if err := s.transfer(ctx, payment, emp.BankAccount, currency, payrollName); err != nil {
		return payment, err
	}
	return payment, nil
}

// accountCurrency resolves the transfer currency. The recipient is registered
// in the bank account's currency, so a different requested currency is rejected.
func (s *service) accountCurrency(account *employee.BankAccount, requested string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(account.Currency))
	if currency == "" {
		currency = s.currency
	}
	requested = strings.ToUpper(strings.TrimSpace(requested))
	if requested != "" && requested != currency {
		return "", fmt.Errorf("%w: %s requested, account holds %s", ErrCurrencyMismatch, requested, currency)
	}
	return currency, nil
}

func (s *service) checkBalance(ctx context.Context, currency string, amount decimal.Decimal) error {
	balances, err := s.provider.Balance(ctx)
	if err != nil {
		s.metrics.Payments.RecordProviderError(ctx, "balance")
		s.logger.ErrorContext(ctx, "failed to check provider balance", "error", err)
		return ErrBalanceUnavailable
	}

	for _, b := range balances {
		if !strings.EqualFold(b.Currency, currency) {
			continue
		}
		if paystack.Subunits(amount) > b.Balance {
			return ErrInsufficientBalance
		}
		return nil
	}

	s.logger.ErrorContext(ctx, "no provider balance for currency", "currency", currency)
	return ErrBalanceUnavailable
}

// transfer claims the PENDING row, registers the recipient when needed and
// initiates the transfer. The claim moves the row to PROCESSING with its
// reference before the provider is called, so a row is sent at most once.
// Provider failures end the row FAILED.
func (s *service) transfer(ctx context.Context, payment *Payment, account *employee.BankAccount, currency, payrollName string) error {
	reference := fmt.Sprintf("PAY_%s_%d", payment.ID, s.now().UnixMilli())

	payment.Status = StatusProcessing
	payment.TransferRef = reference
	payment.TransferStatus = "INITIATING"
	if err := s.repo.UpdateStatus(ctx, payment, StatusPending); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return fmt.Errorf("%w: claimed by another run", ErrNotPending)
		}
		return err
	}

	recipientCode := account.RecipientCode
	if recipientCode == "" {
		recipient, err := s.provider.CreateTransferRecipient(ctx, paystack.RecipientRequest{
			Type:          "nuban",
			Name:          account.AccountName,
			AccountNumber: account.AccountNumber,
			BankCode:      account.BankCode,
			Currency:      currency,
		})
		if err != nil {
			return s.fail(ctx, payment, "create_recipient", err)
		}
		recipientCode = recipient.RecipientCode
		account.RecipientCode = recipientCode
		if err := s.employees.UpdateRecipientCode(ctx, account.ID, recipientCode); err != nil {
			s.logger.WarnContext(ctx, "failed to store recipient code", "bank_account_id", account.ID, "error", err)
		}
	}

	reason := payment.Reason
	if reason == "" {
		reason = "Payment for " + payrollName
	}
	kobo := paystack.Subunits(payment.Amount)

	transfer, err := s.provider.InitiateTransfer(ctx, paystack.TransferRequest{
		Source:    "balance",
		Amount:    kobo,
		Recipient: recipientCode,
		Reason:    reason,
		Reference: reference,
		Currency:  currency,
	})
	if err != nil {
		return s.fail(ctx, payment, "initiate_transfer", err)
	}
	s.metrics.Payments.RecordTransfer(ctx, string(StatusProcessing), kobo)

	now := s.now()
	payment.TransferCode = transfer.TransferCode
	payment.TransferStatus = "PROCESSING"
	payment.ProcessedAt = &now

	// The transfer is out; from here on failures are logged, not returned.
	err = s.repo.UpdateStatus(ctx, payment, StatusProcessing)
	switch {
	case errors.Is(err, ErrStaleStatus):
		s.logger.WarnContext(ctx, "payment advanced before transfer details were stored",
			"payment_id", payment.ID,
			"reference", reference,
			"transfer_code", transfer.TransferCode,
		)
		return nil
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to store transfer details",
			"payment_id", payment.ID,
			"reference", reference,
			"transfer_code", transfer.TransferCode,
			"error", err,
		)
		return nil
	}

	s.publish(ctx, payment, StatusPending)
	s.logger.InfoContext(ctx, "transfer initiated",
		"payment_id", payment.ID,
		"reference", reference,
		"transfer_code", transfer.TransferCode,
	)
	return nil
}

// fail marks a claimed row FAILED after a provider error.
func (s *service) fail(ctx context.Context, payment *Payment, operation string, cause error) error {
	s.metrics.Payments.RecordProviderError(ctx, operation)
	s.logger.ErrorContext(ctx, "transfer processing failed", "payment_id", payment.ID, "operation", operation, "error", cause)

	payment.Status = StatusFailed
	payment.TransferStatus = "FAILED"
	if err := s.changeStatus(ctx, payment, StatusProcessing); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark payment failed", "payment_id", payment.ID, "error", err)
	}
	s.metrics.Payments.RecordTransfer(ctx, string(StatusFailed), 0)

	if paystack.IsCode(cause, paystack.CodeTransferUnavailable) {
		return fmt.Errorf("%w: %v", ErrTransferUnavailable, cause)
	}
	return fmt.Errorf("%w: %v", ErrTransferFailed, cause)
}

// changeStatus persists payment.Status guarded by from and publishes the change.
func (s *service) changeStatus(ctx context.Context, payment *Payment, from Status) error {
	if !from.CanTransition(payment.Status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, payment.Status)
	}
	if err := s.repo.UpdateStatus(ctx, payment, from); err != nil {
		return err
	}
	s.publish(ctx, payment, from)
	return nil
}

func (s *service) publish(ctx context.Context, payment *Payment, previous Status) {
	event := events.PaymentStatusChanged{
		PaymentID:      payment.ID,
		Reference:      payment.TransferRef,
		Status:         string(payment.Status),
		PreviousStatus: string(previous),
		TransferStatus: payment.TransferStatus,
		Amount:         payment.Amount,
		Reason:         payment.Reason,
		PayrollID:      payment.PayrollID,
		EmployeeID:     payment.EmployeeID,
		StudentFeeID:   payment.StudentFeeID,
		OccurredAt:     s.now().UTC(),
	}
	if payment.Employee != nil {
		event.EmployeeName = payment.Employee.Name
		event.EmployeeEmail = payment.Employee.Email
	}

	if err := s.producer.SendMessage(ctx, payment.ID, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish payment event", "payment_id", payment.ID, "error", err)
	}
}

func (s *service) Get(ctx context.Context, id string) (*Payment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrPaymentNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByPayroll(ctx context.Context, payrollID int) ([]Payment, error) {
	return s.repo.ListByPayroll(ctx, payrollID)
}

func (s *service) ListRecent(ctx context.Context) ([]Payment, error) {
	return s.repo.ListRecent(ctx, recentLimit)
}

func (s *service) ListByEmployee(ctx context.Context, employeeID int) ([]Payment, error) {
	if _, err := s.employees.GetByID(ctx, employeeID); err != nil {
		return nil, err
	}
	return s.repo.ListByEmployee(ctx, employeeID)
}

// HandleWebhook verifies and applies one provider event. Unknown events are
// acknowledged without side effects.
func (s *service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if signature == "" || !paystack.VerifySignature(s.webhookSecret, body, signature) {
		s.metrics.Payments.RecordWebhook(ctx, "unknown", false)
		return ErrInvalidSignature
	}

	var event paystack.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: malformed webhook payload", ErrInvalidInput)
	}
	s.metrics.Payments.RecordWebhook(ctx, event.Event, true)

	var data paystack.EventData
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("%w: malformed webhook data", ErrInvalidInput)
		}
	}

	s.logger.InfoContext(ctx, "webhook received", "event", event.Event, "reference", data.Reference)

	switch event.Event {
	case paystack.EventTransferSuccess, paystack.EventTransferFailed, paystack.EventTransferReversed:
		next, transferStatus, _ := transferOutcome(strings.TrimPrefix(event.Event, "transfer."))
		return s.applyToReference(ctx, data.Reference, next, transferStatus, data.Reason)
	case paystack.EventChargeSuccess:
		_, err := s.settleCharge(ctx, data.Reference)
		return err
	default:
		return nil
	}
}

// transferOutcome maps a provider transfer status to the payment outcome.
func transferOutcome(providerStatus string) (Status, string, bool) {
	switch providerStatus {
	case "success":
		return StatusCompleted, "success", true
	case "failed":
		return StatusFailed, "failed", true
	case "reversed":
		return StatusFailed, "reversed", true
	default:
		return "", "", false
	}
}

func (s *service) applyToReference(ctx context.Context, reference string, next Status, transferStatus, reason string) error {
	if reference == "" {
		return nil
	}
	payments, err := s.repo.ListByReference(ctx, reference)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		s.logger.WarnContext(ctx, "no payment matches reference", "reference", reference)
		return nil
	}

	for i := range payments {
		if _, err := s.apply(ctx, &payments[i], next, transferStatus, reason); err != nil {
			return err
		}
	}
	return nil
}

// apply moves one payment to next when the transition is allowed. It reports
// whether a write happened; disallowed or lost transitions are not errors.
func (s *service) apply(ctx context.Context, payment *Payment, next Status, transferStatus, reason string) (bool, error) {
	from := payment.Status
	if !from.CanTransition(next) {
		s.logger.InfoContext(ctx, "ignoring payment transition",
			"payment_id", payment.ID,
			"from", from,
			"to", next,
		)
		return false, nil
	}

	payment.Status = next
	payment.TransferStatus = transferStatus
	if reason != "" {
		payment.Reason = reason
	}
	if payment.ProcessedAt == nil {
		now := s.now()
		payment.ProcessedAt = &now
	}

	err := s.repo.UpdateStatus(ctx, payment, from)
	if errors.Is(err, ErrStaleStatus) {
		s.logger.WarnContext(ctx, "payment changed concurrently", "payment_id", payment.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.publish(ctx, payment, from)
	return true, nil
}

func (s *service) settleCharge(ctx context.Context, reference string) ([]Payment, error) {
	if reference == "" {
		return nil, nil
	}
	payments, err := s.repo.ListByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		if payments[i].Status != StatusPending {
			continue
		}
		if _, err := s.apply(ctx, &payments[i], StatusPaid, "SUCCESS", ""); err != nil {
			return nil, err
		}
	}
	return payments, nil
}

// VerifyCharge confirms a hosted-checkout transaction and marks its pending rows PAID.
func (s *service) VerifyCharge(ctx context.Context, reference string) ([]Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", ErrInvalidInput)
	}

	transaction, err := s.provider.VerifyTransaction(ctx, reference)
	if err != nil {
		s.metrics.Payments.RecordProviderError(ctx, "verify_transaction")
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if transaction.Status != "success" {
		return nil, ErrChargeNotSuccessful
	}
	return s.settleCharge(ctx, reference)
}

// Reconcile asks the provider for the current state of a payment's transfer
// or charge and applies it.
func (s *service) Reconcile(ctx context.Context, id string) (*Payment, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.TransferRef == "" {
		return nil, ErrNotReconcilable
	}

	if payment.StudentFeeID != nil {
		transaction, err := s.provider.VerifyTransaction(ctx, payment.TransferRef)
		if err != nil {
			s.metrics.Payments.RecordProviderError(ctx, "verify_transaction")
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if transaction.Status == "success" {
			if _, err := s.apply(ctx, payment, StatusPaid, "SUCCESS", ""); err != nil {
				return nil, err
			}
		}
		return payment, nil
	}

	transfer, err := s.provider.VerifyTransfer(ctx, payment.TransferRef)
	if err != nil {
		s.metrics.Payments.RecordProviderError(ctx, "verify_transfer")
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if next, transferStatus, ok := transferOutcome(transfer.Status); ok {
		if _, err := s.apply(ctx, payment, next, transferStatus, transfer.Reason); err != nil {
			return nil, err
		}
	}
	return payment, nil
}
