package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"
	"github.com/pablotheshekpeking/payroll-system/internal/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPayrollNotFound  = errors.New("payroll not found")
	ErrInvalidInput     = errors.New("invalid payroll details")
	ErrAlreadyCompleted = errors.New("payroll is already completed")
)

const defaultPeriodsPerYear = 24

type EmployeeSource interface {
	GetByIDs(ctx context.Context, ids []int) ([]employee.Employee, error)
}

// PaymentProcessor runs the transfer workflow for one pending salary row.
type PaymentProcessor interface {
	ProcessPending(ctx context.Context, id string) (*payment.Payment, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Payroll, error)
	Process(ctx context.Context, id int) (*Payroll, error)
	List(ctx context.Context) ([]Payroll, error)
	Get(ctx context.Context, id int) (*Payroll, error)
	Export(ctx context.Context, id int) (*Workbook, error)
}

type service struct {
	repo           Repository
	employees      EmployeeSource
	payments       PaymentProcessor
	periodsPerYear int64
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func NewService(repo Repository, employees EmployeeSource, payments PaymentProcessor, periodsPerYear int, m *metrics.Metrics, logger *slog.Logger) Service {
	if periodsPerYear <= 0 {
		periodsPerYear = defaultPeriodsPerYear
	}
	return &service{
		repo:           repo,
		employees:      employees,
		payments:       payments,
		periodsPerYear: int64(periodsPerYear),
		metrics:        m,
		logger:         logger,
	}
}

// PeriodAmount is one pay period's share of an annual salary.
func PeriodAmount(salary decimal.Decimal, periodsPerYear int64) decimal.Decimal {
	return salary.Div(decimal.NewFromInt(periodsPerYear)).Round(2)
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Payroll, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || len(req.EmployeeIDs) == 0 {
		return nil, ErrInvalidInput
	}
	if req.PeriodEnd.Before(req.PeriodStart) {
		return nil, fmt.Errorf("%w: period end is before period start", ErrInvalidInput)
	}

	ids := uniqueIDs(req.EmployeeIDs)
	employees, err := s.employees.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(employees) != len(ids) {
		return nil, fmt.Errorf("%w: %v", employee.ErrEmployeeNotFound, missingIDs(ids, employees))
	}

	status := StatusScheduled
	if req.ProcessImmediately {
		status = StatusProcessing
	}

	total := decimal.Zero
	payments := make([]payment.Payment, 0, len(employees))
	for i := range employees {
		emp := employees[i]
		amount := PeriodAmount(emp.Salary, s.periodsPerYear)
		total = total.Add(amount)
		payments = append(payments, payment.Payment{
			ID:         uuid.NewString(),
			Amount:     amount,
			Status:     payment.StatusPending,
			EmployeeID: &emp.ID,
			Reason:     fmt.Sprintf("%s - Salary payment for %s", req.Name, emp.Name),
		})
	}

	payroll := &Payroll{
		Name:        req.Name,
		PayDate:     req.PayDate,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		TotalAmount: total,
		Status:      status,
	}
	if err := s.repo.CreateWithPayments(ctx, payroll, payments); err != nil {
		return nil, fmt.Errorf("failed to create payroll: %w", err)
	}

	s.metrics.Payments.RecordPayrollCreated(ctx, len(payments))
	s.logger.InfoContext(ctx, "payroll created",
		"payroll_id", payroll.ID,
		"employees", len(payments),
		"total", total.StringFixed(2),
	)

	if req.ProcessImmediately {
		processed, err := s.Process(ctx, payroll.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "payroll created but processing stopped", "payroll_id", payroll.ID, "error", err)
			return s.Get(ctx, payroll.ID)
		}
		return processed, nil
	}

	return s.Get(ctx, payroll.ID)
}

// Process runs every pending payment of the payroll in order. A balance
// failure stops the run and leaves the remaining rows pending; any other
// failure is recorded on its row and the run continues.
func (s *service) Process(ctx context.Context, id int) (*Payroll, error) {
	payroll, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payroll.Status == StatusCompleted {
		return nil, ErrAlreadyCompleted
	}
	if payroll.Status == StatusScheduled {
		if err := s.repo.UpdateStatus(ctx, id, StatusProcessing); err != nil {
			return nil, err
		}
	}

	pending, err := s.repo.ListPendingPayments(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "processing payroll", "payroll_id", id, "pending", len(pending))

	var halt error
	for _, p := range pending {
		_, err := s.payments.ProcessPending(ctx, p.ID)
		if err == nil {
			continue
		}
		if errors.Is(err, payment.ErrInsufficientBalance) || errors.Is(err, payment.ErrBalanceUnavailable) {
			halt = err
			break
		}
		s.logger.WarnContext(ctx, "payroll payment failed", "payroll_id", id, "payment_id", p.ID, "error", err)
	}

	remaining, err := s.repo.ListPendingPayments(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		if err := s.repo.UpdateStatus(ctx, id, StatusCompleted); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "payroll completed", "payroll_id", id)
	}

	if halt != nil {
		return nil, halt
	}
	return s.Get(ctx, id)
}

func (s *service) List(ctx context.Context) ([]Payroll, error) {
	payrolls, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range payrolls {
		payrolls[i].EmployeeCount = employeeCount(payrolls[i].Payments)
	}
	return payrolls, nil
}

func (s *service) Get(ctx context.Context, id int) (*Payroll, error) {
	if id <= 0 {
		return nil, ErrPayrollNotFound
	}
	payroll, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	payroll.EmployeeCount = employeeCount(payroll.Payments)
	return payroll, nil
}

func (s *service) Export(ctx context.Context, id int) (*Workbook, error) {
	payroll, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildWorkbook(payroll)
}

func employeeCount(payments []*payment.Payment) int {
	seen := make(map[int]struct{}, len(payments))
	for _, p := range payments {
		if p.EmployeeID != nil {
			seen[*p.EmployeeID] = struct{}{}
		}
	}
	return len(seen)
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

func missingIDs(ids []int, found []employee.Employee) []int {
	present := make(map[int]struct{}, len(found))
	for _, e := range found {
		present[e.ID] = struct{}{}
	}
	var missing []int
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
