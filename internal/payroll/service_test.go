package payroll

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/logger"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"
	"github.com/pablotheshekpeking/payroll-system/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type memRepo struct {
	payrolls map[int]*Payroll
	payments map[string]*payment.Payment
	order    []string
	nextID   int
}

func newMemRepo() *memRepo {
	return &memRepo{payrolls: map[int]*Payroll{}, payments: map[string]*payment.Payment{}}
}

func (m *memRepo) CreateWithPayments(ctx context.Context, p *Payroll, payments []payment.Payment) error {
	m.nextID++
	p.ID = m.nextID
	m.payrolls[p.ID] = p
	for i := range payments {
		payments[i].PayrollID = &p.ID
		cp := payments[i]
		m.payments[cp.ID] = &cp
		m.order = append(m.order, cp.ID)
	}
	return nil
}

func (m *memRepo) attach(p *Payroll) *Payroll {
	cp := *p
	cp.Payments = nil
	for _, id := range m.order {
		pay := m.payments[id]
		if *pay.PayrollID == p.ID {
			cp.Payments = append(cp.Payments, pay)
		}
	}
	return &cp
}

func (m *memRepo) List(ctx context.Context) ([]Payroll, error) {
	var out []Payroll
	for id := 1; id <= m.nextID; id++ {
		out = append(out, *m.attach(m.payrolls[id]))
	}
	return out, nil
}

func (m *memRepo) GetByID(ctx context.Context, id int) (*Payroll, error) {
	p, ok := m.payrolls[id]
	if !ok {
		return nil, ErrPayrollNotFound
	}
	return m.attach(p), nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, id int, status Status) error {
	p, ok := m.payrolls[id]
	if !ok {
		return ErrPayrollNotFound
	}
	p.Status = status
	return nil
}

func (m *memRepo) ListPendingPayments(ctx context.Context, payrollID int) ([]payment.Payment, error) {
	var out []payment.Payment
	for _, id := range m.order {
		pay := m.payments[id]
		if *pay.PayrollID == payrollID && pay.Status == payment.StatusPending {
			out = append(out, *pay)
		}
	}
	return out, nil
}

type fakeEmployees map[int]employee.Employee

func (f fakeEmployees) GetByIDs(ctx context.Context, ids []int) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, id := range ids {
		if e, ok := f[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeProcessor settles rows directly in the memRepo.
type fakeProcessor struct {
	repo    *memRepo
	failFor map[string]error
	calls   []string
}

func (f *fakeProcessor) ProcessPending(ctx context.Context, id string) (*payment.Payment, error) {
	f.calls = append(f.calls, id)
	p := f.repo.payments[id]
	if err, ok := f.failFor[id]; ok {
		if err != payment.ErrInsufficientBalance {
			p.Status = payment.StatusFailed
		}
		return nil, err
	}
	p.Status = payment.StatusProcessing
	return p, nil
}

func newTestService(t *testing.T) (*service, *memRepo, *fakeProcessor) {
	t.Helper()

	repo := newMemRepo()
	employees := fakeEmployees{
		1: {ID: 1, Name: "Ada Obi", Email: "ada@co.test", Salary: decimal.NewFromInt(2400000)},
		2: {ID: 2, Name: "Bayo Ade", Email: "bayo@co.test", Salary: decimal.NewFromInt(1000000)},
	}
	processor := &fakeProcessor{repo: repo, failFor: map[string]error{}}
	svc := NewService(repo, employees, processor, 24, metrics.NewMock(), logger.Discard()).(*service)
	return svc, repo, processor
}

func createRequest(process bool, ids ...int) CreateRequest {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return CreateRequest{
		Name:               "March 2025",
		PayDate:            time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC),
		PeriodStart:        start,
		PeriodEnd:          start.AddDate(0, 0, 30),
		EmployeeIDs:        ids,
		ProcessImmediately: process,
	}
}

func TestPeriodAmount(t *testing.T) {
	assert.Equal(t, "100000", PeriodAmount(decimal.NewFromInt(2400000), 24).String())
	assert.Equal(t, "41666.67", PeriodAmount(decimal.NewFromInt(1000000), 24).String())
	assert.Equal(t, "83333.33", PeriodAmount(decimal.NewFromInt(1000000), 12).String())
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("Scheduled", func(t *testing.T) {
		svc, repo, processor := newTestService(t)

		p, err := svc.Create(ctx, createRequest(false, 1, 2, 2))
		require.NoError(t, err)

		assert.Equal(t, StatusScheduled, p.Status)
		assert.Equal(t, "141666.67", p.TotalAmount.String())
		assert.Equal(t, 2, p.EmployeeCount)
		require.Len(t, p.Payments, 2)
		assert.Equal(t, "March 2025 - Salary payment for Ada Obi", p.Payments[0].Reason)
		assert.Equal(t, payment.StatusPending, p.Payments[0].Status)
		assert.Len(t, repo.payments, 2)
		assert.Empty(t, processor.calls)
	})

	t.Run("ProcessImmediately", func(t *testing.T) {
		svc, _, processor := newTestService(t)

		p, err := svc.Create(ctx, createRequest(true, 1, 2))
		require.NoError(t, err)

		assert.Len(t, processor.calls, 2)
		assert.Equal(t, StatusCompleted, p.Status)
	})

	t.Run("UnknownEmployee", func(t *testing.T) {
		svc, repo, _ := newTestService(t)

		_, err := svc.Create(ctx, createRequest(false, 1, 9))
		assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
		assert.Empty(t, repo.payrolls)
	})

	t.Run("InvalidPeriod", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		req := createRequest(false, 1)
		req.PeriodEnd = req.PeriodStart.AddDate(0, 0, -1)
		_, err := svc.Create(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("FailedRowsDoNotBlockCompletion", func(t *testing.T) {
		svc, repo, processor := newTestService(t)
		p, err := svc.Create(ctx, createRequest(false, 1, 2))
		require.NoError(t, err)

		processor.failFor[repo.order[0]] = payment.ErrTransferFailed

		processed, err := svc.Process(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, processor.calls, 2)
		assert.Equal(t, StatusCompleted, processed.Status)
		assert.Equal(t, payment.StatusFailed, repo.payments[repo.order[0]].Status)
	})

	t.Run("InsufficientBalanceHalts", func(t *testing.T) {
		svc, repo, processor := newTestService(t)
		p, err := svc.Create(ctx, createRequest(false, 1, 2))
		require.NoError(t, err)

		processor.failFor[repo.order[0]] = payment.ErrInsufficientBalance

		_, err = svc.Process(ctx, p.ID)
		assert.ErrorIs(t, err, payment.ErrInsufficientBalance)
		assert.Len(t, processor.calls, 1)
		assert.Equal(t, StatusProcessing, repo.payrolls[p.ID].Status)
	})

	t.Run("AlreadyCompleted", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		p, err := svc.Create(ctx, createRequest(false, 1))
		require.NoError(t, err)
		repo.payrolls[p.ID].Status = StatusCompleted

		_, err = svc.Process(ctx, p.ID)
		assert.ErrorIs(t, err, ErrAlreadyCompleted)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Process(ctx, 42)
		assert.ErrorIs(t, err, ErrPayrollNotFound)
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	p, err := svc.Create(ctx, createRequest(false, 1, 2))
	require.NoError(t, err)
	for _, id := range repo.order {
		pay := repo.payments[id]
		pay.Employee = &employee.Employee{ID: *pay.EmployeeID, Name: "Employee", Email: "e@co.test"}
	}

	wb, err := svc.Export(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "payroll-1-march-2025.xlsx", wb.FileName)

	f, err := excelize.OpenReader(bytes.NewReader(wb.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 10)

	assert.Equal(t, []string{"Payroll", "March 2025"}, rows[0])
	assert.Equal(t, "Employee", rows[7][0])
	assert.Equal(t, "Transfer Reference", rows[7][7])
	assert.Equal(t, "Employee", rows[8][0])
	assert.Equal(t, "PENDING", rows[8][5])
}
