package fee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pablotheshekpeking/payroll-system/internal/payment"
	"github.com/pablotheshekpeking/payroll-system/internal/paystack"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrFeeNotFound        = errors.New("fee not found")
	ErrStudentFeeNotFound = errors.New("student fee not found")
	ErrStudentNotFound    = errors.New("student not found")
	ErrFeeNotAssigned     = errors.New("fee is not assigned to this student")
	ErrInvalidInput       = errors.New("invalid input")
	ErrCheckoutFailed     = errors.New("failed to initialize payment")
)

const (
	StatementPaid    = "PAID"
	StatementPending = "PENDING"
)

// Checkout is the hosted-checkout part of the provider client.
type Checkout interface {
	InitializeTransaction(ctx context.Context, req paystack.TransactionRequest) (*paystack.TransactionInit, error)
}

// PaymentWriter stores the pending rows of a checkout. payment.Repository satisfies it.
type PaymentWriter interface {
	CreateMany(ctx context.Context, payments []payment.Payment) error
}

type Options struct {
	Currency    string
	CallbackURL string
}

type Service interface {
	ListFees(ctx context.Context) ([]Fee, error)
	CreateFee(ctx context.Context, fee *Fee) (*Fee, error)
	Assign(ctx context.Context, studentID int, req AssignRequest) (*StudentFee, error)
	ListStudentFees(ctx context.Context, studentID int) ([]StudentFee, error)
	PayerForUser(ctx context.Context, userID int) (*Payer, error)
	Statement(ctx context.Context, userID int) ([]StatementItem, error)
	Checkout(ctx context.Context, userID int, req CheckoutRequest) (*CheckoutResponse, error)
}

type service struct {
	repo        Repository
	payments    PaymentWriter
	checkout    Checkout
	currency    string
	callbackURL string
	logger      *slog.Logger
}

func NewService(repo Repository, payments PaymentWriter, checkout Checkout, opts Options, logger *slog.Logger) Service {
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	return &service{
		repo:        repo,
		payments:    payments,
		checkout:    checkout,
		currency:    opts.Currency,
		callbackURL: opts.CallbackURL,
		logger:      logger,
	}
}

func (s *service) ListFees(ctx context.Context) ([]Fee, error) {
	return s.repo.ListFees(ctx)
}

func (s *service) CreateFee(ctx context.Context, fee *Fee) (*Fee, error) {
	fee.Name = strings.TrimSpace(fee.Name)
	if fee.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !fee.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	}
	fee.ID = 0
	fee.Amount = fee.Amount.Round(2)
	fee.Currency = strings.ToUpper(fee.Currency)
	if fee.Currency == "" {
		fee.Currency = s.currency
	}

	if err := s.repo.CreateFee(ctx, fee); err != nil {
		return nil, err
	}
	return fee, nil
}

func (s *service) Assign(ctx context.Context, studentID int, req AssignRequest) (*StudentFee, error) {
	exists, err := s.repo.StudentExists(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrStudentNotFound
	}
	if _, err := s.repo.GetFee(ctx, req.FeeID); err != nil {
		return nil, err
	}

	studentFee := &StudentFee{
		StudentID: studentID,
		FeeID:     req.FeeID,
		DueDate:   req.DueDate,
	}
	if err := s.repo.Assign(ctx, studentFee); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "fee assigned", "student_id", studentID, "fee_id", req.FeeID, "student_fee_id", studentFee.ID)
	return s.repo.GetStudentFee(ctx, studentFee.ID)
}

func (s *service) ListStudentFees(ctx context.Context, studentID int) ([]StudentFee, error) {
	exists, err := s.repo.StudentExists(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrStudentNotFound
	}
	return s.repo.ListForStudent(ctx, studentID)
}

func (s *service) PayerForUser(ctx context.Context, userID int) (*Payer, error) {
	return s.repo.PayerForUser(ctx, userID)
}

// Statement lists the signed-in student's fees with what is paid and what remains.
func (s *service) Statement(ctx context.Context, userID int) ([]StatementItem, error) {
	payer, err := s.repo.PayerForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	fees, err := s.repo.ListForStudent(ctx, payer.StudentID)
	if err != nil {
		return nil, err
	}

	items := make([]StatementItem, 0, len(fees))
	for i := range fees {
		items = append(items, statementItem(&fees[i]))
	}
	return items, nil
}

func statementItem(sf *StudentFee) StatementItem {
	item := StatementItem{
		ID:         sf.ID,
		DueDate:    sf.DueDate,
		AssignedAt: sf.AssignedAt,
		TotalPaid:  sf.PaidAmount(),
		Payments:   sf.Payments,
	}
	if item.Payments == nil {
		item.Payments = []*payment.Payment{}
	}
	if sf.Fee != nil {
		item.Name = sf.Fee.Name
		item.Description = sf.Fee.Description
		item.Amount = sf.Fee.Amount
		item.Currency = sf.Fee.Currency
	}

	item.RemainingAmount = item.Amount.Sub(item.TotalPaid)
	item.Status = StatementPending
	if item.TotalPaid.GreaterThanOrEqual(item.Amount) {
		item.Status = StatementPaid
		item.RemainingAmount = decimal.Zero
	}
	return item
}

// SplitAmount divides total into n shares truncated to 2 places; the last
// share takes the remainder so the shares always sum to total.
func SplitAmount(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	share := total.Div(decimal.NewFromInt(int64(n))).Truncate(2)
	shares := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		shares[i] = share
	}
	shares[n-1] = total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	return shares
}

// Checkout starts a hosted payment towards the given fee assignments and
// records one PENDING payment per assignment under the provider reference.
func (s *service) Checkout(ctx context.Context, userID int, req CheckoutRequest) (*CheckoutResponse, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() || len(req.FeeIDs) == 0 {
		return nil, fmt.Errorf("%w: amount and fees are required", ErrInvalidInput)
	}

	payer, err := s.repo.PayerForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := uniqueIDs(req.FeeIDs)
	fees, err := s.repo.ListForStudentByIDs(ctx, payer.StudentID, ids)
	if err != nil {
		return nil, err
	}
	if len(fees) != len(ids) {
		return nil, ErrFeeNotAssigned
	}

	txn, err := s.checkout.InitializeTransaction(ctx, paystack.TransactionRequest{
		Email:       payer.Email,
		Amount:      paystack.Subunits(amount),
		Currency:    s.currency,
		CallbackURL: s.callbackURL,
		Metadata: map[string]any{
			"student_id": payer.StudentID,
			"fee_ids":    ids,
		},
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "checkout initialization failed", "student_id", payer.StudentID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}

	shares := SplitAmount(amount, len(fees))
	payments := make([]payment.Payment, 0, len(fees))
	for i := range fees {
		studentFeeID := fees[i].ID
		reason := "Fee payment"
		if fees[i].Fee != nil {
			reason += ": " + fees[i].Fee.Name
		}
		payments = append(payments, payment.Payment{
			ID:             uuid.NewString(),
			Amount:         shares[i],
			Status:         payment.StatusPending,
			StudentFeeID:   &studentFeeID,
			TransferRef:    txn.Reference,
			TransferStatus: "PENDING",
			Reason:         reason,
		})
	}
	if err := s.payments.CreateMany(ctx, payments); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout initialized",
		"student_id", payer.StudentID,
		"reference", txn.Reference,
		"fees", len(payments),
	)

	return &CheckoutResponse{
		AuthorizationURL: txn.AuthorizationURL,
		AccessCode:       txn.AccessCode,
		Reference:        txn.Reference,
	}, nil
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
