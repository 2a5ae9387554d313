package payroll

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/metrics"
	"github.com/pablotheshekpeking/payroll-system/internal/payment"

	"github.com/uptrace/bun"
)

type Repository interface {
	CreateWithPayments(ctx context.Context, payroll *Payroll, payments []payment.Payment) error
	List(ctx context.Context) ([]Payroll, error)
	GetByID(ctx context.Context, id int) (*Payroll, error)
	UpdateStatus(ctx context.Context, id int, status Status) error
	ListPendingPayments(ctx context.Context, payrollID int) ([]payment.Payment, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

// CreateWithPayments inserts the payroll and its payment rows in one transaction.
func (r *repository) CreateWithPayments(ctx context.Context, payroll *Payroll, payments []payment.Payment) (err error) {
	defer r.metrics.Track(ctx, "insert", "payrolls", time.Now(), &err)

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(payroll).Returning("*").Exec(ctx); err != nil {
			return err
		}

		for i := range payments {
			payments[i].PayrollID = &payroll.ID
		}
		return payment.NewRepository(tx, r.metrics).CreateMany(ctx, payments)
	})
}

func (r *repository) List(ctx context.Context) (payrolls []Payroll, err error) {
	defer r.metrics.Track(ctx, "select", "payrolls", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&payrolls).
		Relation("Payments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("pay.created_at ASC")
		}).
		Relation("Payments.Employee").
		OrderExpr("pr.pay_date DESC").
		Scan(ctx)
	return payrolls, err
}

func (r *repository) GetByID(ctx context.Context, id int) (payroll *Payroll, err error) {
	defer r.metrics.Track(ctx, "select", "payrolls", time.Now(), &err)

	payroll = new(Payroll)
	err = r.db.NewSelect().
		Model(payroll).
		Relation("Payments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("pay.created_at ASC")
		}).
		Relation("Payments.Employee").
		Where("pr.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPayrollNotFound
	}
	if err != nil {
		return nil, err
	}
	return payroll, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int, status Status) (err error) {
	defer r.metrics.Track(ctx, "update", "payrolls", time.Now(), &err)

	result, err := r.db.NewUpdate().
		Model((*Payroll)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrPayrollNotFound
	}
	return nil
}

func (r *repository) ListPendingPayments(ctx context.Context, payrollID int) ([]payment.Payment, error) {
	return payment.NewRepository(r.db, r.metrics).ListPendingByPayroll(ctx, payrollID)
}
