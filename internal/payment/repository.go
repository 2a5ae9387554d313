package payment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	CreateMany(ctx context.Context, payments []Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	ListByReference(ctx context.Context, reference string) ([]Payment, error)
	ListByPayroll(ctx context.Context, payrollID int) ([]Payment, error)
	ListPendingByPayroll(ctx context.Context, payrollID int) ([]Payment, error)
	ListByEmployee(ctx context.Context, employeeID int) ([]Payment, error)
	ListRecent(ctx context.Context, limit int) ([]Payment, error)
	UpdateStatus(ctx context.Context, payment *Payment, from Status) error
	PayrollName(ctx context.Context, payrollID int) (string, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

// NewRepository accepts a *bun.DB or a bun.Tx.
func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, payment *Payment) (err error) {
	defer r.metrics.Track(ctx, "insert", "payments", time.Now(), &err)

	_, err = r.db.NewInsert().Model(payment).Returning("*").Exec(ctx)
	return err
}

func (r *repository) CreateMany(ctx context.Context, payments []Payment) (err error) {
	if len(payments) == 0 {
		return nil
	}
	defer r.metrics.Track(ctx, "insert", "payments", time.Now(), &err)

	_, err = r.db.NewInsert().Model(&payments).Returning("*").Exec(ctx)
	return err
}

func (r *repository) GetByID(ctx context.Context, id string) (payment *Payment, err error) {
	defer r.metrics.Track(ctx, "select", "payments", time.Now(), &err)

	payment = new(Payment)
	err = r.db.NewSelect().
		Model(payment).
		Relation("Employee").
		Where("pay.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) ListByReference(ctx context.Context, reference string) (payments []Payment, err error) {
	defer r.metrics.Track(ctx, "select", "payments", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&payments).
		Relation("Employee").
		Where("pay.transfer_ref = ?", reference).
		OrderExpr("pay.created_at ASC").
		Scan(ctx)
	return payments, err
}

func (r *repository) ListByPayroll(ctx context.Context, payrollID int) (payments []Payment, err error) {
	defer r.metrics.Track(ctx, "select", "payments", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&payments).
		Relation("Employee").
		Where("pay.payroll_id = ?", payrollID).
		OrderExpr("pay.created_at DESC").
		Scan(ctx)
	return payments, err
}

func (r *repository) ListPendingByPayroll(ctx context.Context, payrollID int) (payments []Payment, err error) {
	defer r.metrics.Track(ctx, "select", "payments", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&payments).
		Where("pay.payroll_id = ?", payrollID).
		Where("pay.status = ?", StatusPending).
		OrderExpr("pay.created_at ASC, pay.id ASC").
		Scan(ctx)
	return payments, err
}

func (r *repository) ListByEmployee(ctx context.Context, employeeID int) (payments []Payment, err error) {
	defer r.metrics.Track(ctx, "select", "payments", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&payments).
		Where("pay.employee_id = ?", employeeID).
		OrderExpr("pay.created_at DESC").
		Scan(ctx)
	return payments, err
}

func (r *repository) ListRecent(ctx context.Context, limit int) (payments []Payment, err error) {
	defer r.metrics.Track(ctx, "select", "payments", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&payments).
		Relation("Employee").
		OrderExpr("pay.created_at DESC").
		Limit(limit).
		Scan(ctx)
	return payments, err
}

// UpdateStatus writes the payment's status and transfer fields only if the
// stored status still equals from.
func (r *repository) UpdateStatus(ctx context.Context, payment *Payment, from Status) (err error) {
	defer r.metrics.Track(ctx, "update", "payments", time.Now(), &err)

	payment.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().
		Model(payment).
		Column("status", "reason", "transfer_code", "transfer_ref", "transfer_status", "processed_at", "updated_at").
		WherePK().
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *repository) PayrollName(ctx context.Context, payrollID int) (name string, err error) {
	defer r.metrics.Track(ctx, "select", "payrolls", time.Now(), &err)

	err = r.db.NewSelect().
		TableExpr("payrolls").
		ColumnExpr("name").
		Where("id = ?", payrollID).
		Scan(ctx, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrPayrollNotFound
	}
	return name, err
}
