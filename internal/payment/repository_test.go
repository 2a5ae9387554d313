package payment_test

import (
	"context"
	"testing"

	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"
	"github.com/pablotheshekpeking/payroll-system/internal/payment"
	"github.com/pablotheshekpeking/payroll-system/testing/testdb"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentRepository_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	ctx := context.Background()
	repo := payment.NewRepository(pgContainer.DB, metrics.NewMock())
	employees := employee.NewRepository(pgContainer.DB, metrics.NewMock())

	seed := func(t *testing.T) (employeeID, payrollID int) {
		t.Helper()
		testdb.CleanupTables(t, pgContainer.DB)

		emp := &employee.Employee{
			Name:       "Ada Obi",
			Email:      "ada@co.test",
			Position:   "Instructor",
			Department: "Sciences",
			Salary:     decimal.NewFromInt(2400000),
			Status:     employee.StatusActive,
		}
		require.NoError(t, employees.Create(ctx, emp))

		err := pgContainer.DB.NewRaw(
			`INSERT INTO payrolls (name, pay_date, period_start, period_end, total_amount, status)
			 VALUES ('March 2025', now(), now(), now(), 0, 'SCHEDULED') RETURNING id`,
		).Scan(ctx, &payrollID)
		require.NoError(t, err)

		return emp.ID, payrollID
	}

	newPayment := func(employeeID, payrollID int) *payment.Payment {
		return &payment.Payment{
			ID:         uuid.NewString(),
			Amount:     decimal.NewFromInt(100000),
			Status:     payment.StatusPending,
			EmployeeID: &employeeID,
			PayrollID:  &payrollID,
			Reason:     "March 2025 - Salary payment for Ada Obi",
		}
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		employeeID, payrollID := seed(t)

		p := newPayment(employeeID, payrollID)
		require.NoError(t, repo.Create(ctx, p))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, got.Status)
		require.NotNil(t, got.Employee)
		assert.Equal(t, "Ada Obi", got.Employee.Name)

		name, err := repo.PayrollName(ctx, payrollID)
		require.NoError(t, err)
		assert.Equal(t, "March 2025", name)
	})

	t.Run("NotFound", func(t *testing.T) {
		seed(t)

		_, err := repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, payment.ErrPaymentNotFound)

		_, err = repo.PayrollName(ctx, 999)
		assert.ErrorIs(t, err, payment.ErrPayrollNotFound)
	})

	t.Run("UpdateStatus_GuardedByPreviousStatus", func(t *testing.T) {
		employeeID, payrollID := seed(t)

		p := newPayment(employeeID, payrollID)
		require.NoError(t, repo.Create(ctx, p))

		p.Status = payment.StatusProcessing
		p.TransferRef = "PAY_" + p.ID + "_1"
		require.NoError(t, repo.UpdateStatus(ctx, p, payment.StatusPending))

		p.Status = payment.StatusFailed
		err := repo.UpdateStatus(ctx, p, payment.StatusPending)
		assert.ErrorIs(t, err, payment.ErrStaleStatus)

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusProcessing, got.Status)

		byRef, err := repo.ListByReference(ctx, p.TransferRef)
		require.NoError(t, err)
		assert.Len(t, byRef, 1)
	})

	t.Run("CreateManyAndPending", func(t *testing.T) {
		employeeID, payrollID := seed(t)

		batch := []payment.Payment{*newPayment(employeeID, payrollID), *newPayment(employeeID, payrollID)}
		batch[1].Status = payment.StatusPaid
		require.NoError(t, repo.CreateMany(ctx, batch))

		pending, err := repo.ListPendingByPayroll(ctx, payrollID)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		all, err := repo.ListByPayroll(ctx, payrollID)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		byEmployee, err := repo.ListByEmployee(ctx, employeeID)
		require.NoError(t, err)
		assert.Len(t, byEmployee, 2)
	})

	t.Run("EmployeeDeleteBlockedByPayments", func(t *testing.T) {
		employeeID, payrollID := seed(t)
		require.NoError(t, repo.Create(ctx, newPayment(employeeID, payrollID)))

		err := employees.Delete(ctx, employeeID)
		assert.ErrorIs(t, err, employee.ErrEmployeeHasPayments)
	})
}
