package employee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pablotheshekpeking/payroll-system/internal/paystack"
)

var (
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrBankAccountNotFound = errors.New("bank account not found")
	ErrBankAccountExists   = errors.New("employee already has a bank account registered")
	ErrEmailExists         = errors.New("an employee with this email already exists")
	ErrEmployeeHasPayments = errors.New("employee has payments and cannot be deleted")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAccountVerification = errors.New("bank account verification failed")
)

// AccountVerifier resolves bank accounts and registers transfer recipients.
type AccountVerifier interface {
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error)
	CreateTransferRecipient(ctx context.Context, req paystack.RecipientRequest) (*paystack.Recipient, error)
}

type Service interface {
	List(ctx context.Context) ([]Employee, error)
	Get(ctx context.Context, id int) (*Employee, error)
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	Delete(ctx context.Context, id int) error
	GetBankAccount(ctx context.Context, employeeID int) (*BankAccount, error)
	AddBankAccount(ctx context.Context, employeeID int, req CreateBankAccountRequest) (*BankAccount, error)
}

type service struct {
	repo     Repository
	verifier AccountVerifier
	currency string
	logger   *slog.Logger
}

func NewService(repo Repository, verifier AccountVerifier, currency string, logger *slog.Logger) Service {
	if currency == "" {
		currency = "NGN"
	}
	return &service{
		repo:     repo,
		verifier: verifier,
		currency: currency,
		logger:   logger,
	}
}

func (s *service) List(ctx context.Context) ([]Employee, error) {
	return s.repo.List(ctx)
}

func (s *service) Get(ctx context.Context, id int) (*Employee, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) Create(ctx context.Context, employee *Employee) (*Employee, error) {
	if !employee.Salary.IsPositive() {
		return nil, fmt.Errorf("%w: salary must be greater than zero", ErrInvalidInput)
	}
	if employee.Status == "" {
		employee.Status = StatusActive
	}
	employee.ID = 0
	employee.BankAccount = nil

	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, err
	}
	return employee, nil
}

func (s *service) Update(ctx context.Context, employee *Employee) (*Employee, error) {
	if employee.ID <= 0 {
		return nil, ErrInvalidInput
	}
	if !employee.Salary.IsPositive() {
		return nil, fmt.Errorf("%w: salary must be greater than zero", ErrInvalidInput)
	}
	if employee.Status == "" {
		employee.Status = StatusActive
	}
	employee.BankAccount = nil

	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, err
	}
	return employee, nil
}

func (s *service) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

// GetBankAccount returns nil without error when the employee has no account.
func (s *service) GetBankAccount(ctx context.Context, employeeID int) (*BankAccount, error) {
	account, err := s.repo.GetBankAccount(ctx, employeeID)
	if errors.Is(err, ErrBankAccountNotFound) {
		return nil, nil
	}
	return account, err
}

func (s *service) AddBankAccount(ctx context.Context, employeeID int, req CreateBankAccountRequest) (*BankAccount, error) {
	if _, err := s.repo.GetByID(ctx, employeeID); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetBankAccount(ctx, employeeID); err == nil {
		return nil, ErrBankAccountExists
	} else if !errors.Is(err, ErrBankAccountNotFound) {
		return nil, err
	}

	resolved, err := s.verifier.ResolveAccount(ctx, req.AccountNumber, req.BankCode)
	if err != nil {
		s.logger.WarnContext(ctx, "account resolution failed", "employee_id", employeeID, "bank_code", req.BankCode, "error", err)
		return nil, verificationError(err, "Invalid account details")
	}

	recipient, err := s.verifier.CreateTransferRecipient(ctx, paystack.RecipientRequest{
		Type:          "nuban",
		Name:          resolved.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		Currency:      s.currency,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "transfer recipient creation failed", "employee_id", employeeID, "error", err)
		return nil, verificationError(err, "Failed to create transfer recipient")
	}

	account := &BankAccount{
		EmployeeID:    employeeID,
		AccountNumber: req.AccountNumber,
		AccountName:   resolved.AccountName,
		BankCode:      req.BankCode,
		BankName:      req.BankName,
		Currency:      s.currency,
		RecipientCode: recipient.RecipientCode,
	}
	if err := s.repo.CreateBankAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "bank account registered", "employee_id", employeeID, "bank_code", req.BankCode)
	return account, nil
}

// verificationError keeps the provider's message when there is one.
func verificationError(err error, fallback string) error {
	var pe *paystack.Error
	if errors.As(err, &pe) && pe.Message != "" {
		return fmt.Errorf("%w: %s", ErrAccountVerification, pe.Message)
	}
	return fmt.Errorf("%w: %s", ErrAccountVerification, fallback)
}
