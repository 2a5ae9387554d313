package fee

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/db/pgerr"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/uptrace/bun"
)

// Payer is the student behind a signed-in user.
type Payer struct {
	StudentID int    `bun:"student_id"`
	Email     string `bun:"email"`
}

type Repository interface {
	ListFees(ctx context.Context) ([]Fee, error)
	GetFee(ctx context.Context, id int) (*Fee, error)
	CreateFee(ctx context.Context, fee *Fee) error
	Assign(ctx context.Context, studentFee *StudentFee) error
	GetStudentFee(ctx context.Context, id int) (*StudentFee, error)
	ListForStudent(ctx context.Context, studentID int) ([]StudentFee, error)
	ListForStudentByIDs(ctx context.Context, studentID int, ids []int) ([]StudentFee, error)
	StudentExists(ctx context.Context, studentID int) (bool, error)
	PayerForUser(ctx context.Context, userID int) (*Payer, error)
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

func (r *repository) ListFees(ctx context.Context) (fees []Fee, err error) {
	defer r.metrics.Track(ctx, "select", "fees", time.Now(), &err)

	err = r.db.NewSelect().Model(&fees).OrderExpr("f.name ASC").Scan(ctx)
	return fees, err
}

func (r *repository) GetFee(ctx context.Context, id int) (fee *Fee, err error) {
	defer r.metrics.Track(ctx, "select", "fees", time.Now(), &err)

	fee = new(Fee)
	err = r.db.NewSelect().Model(fee).Where("f.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return fee, nil
}

func (r *repository) CreateFee(ctx context.Context, fee *Fee) (err error) {
	defer r.metrics.Track(ctx, "insert", "fees", time.Now(), &err)

	_, err = r.db.NewInsert().Model(fee).Returning("*").Exec(ctx)
	return err
}

func (r *repository) Assign(ctx context.Context, studentFee *StudentFee) (err error) {
	defer r.metrics.Track(ctx, "insert", "student_fees", time.Now(), &err)

	_, err = r.db.NewInsert().Model(studentFee).Returning("*").Exec(ctx)
	if pgerr.IsForeignKeyViolation(err) {
		return ErrStudentNotFound
	}
	return err
}

func (r *repository) GetStudentFee(ctx context.Context, id int) (studentFee *StudentFee, err error) {
	defer r.metrics.Track(ctx, "select", "student_fees", time.Now(), &err)

	studentFee = new(StudentFee)
	err = r.db.NewSelect().
		Model(studentFee).
		Relation("Fee").
		Relation("Payments").
		Where("sf.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStudentFeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return studentFee, nil
}

func (r *repository) ListForStudent(ctx context.Context, studentID int) (fees []StudentFee, err error) {
	defer r.metrics.Track(ctx, "select", "student_fees", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&fees).
		Relation("Fee").
		Relation("Payments", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("pay.created_at ASC")
		}).
		Where("sf.student_id = ?", studentID).
		OrderExpr("sf.assigned_at ASC, sf.id ASC").
		Scan(ctx)
	return fees, err
}

func (r *repository) ListForStudentByIDs(ctx context.Context, studentID int, ids []int) (fees []StudentFee, err error) {
	defer r.metrics.Track(ctx, "select", "student_fees", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&fees).
		Relation("Fee").
		Where("sf.student_id = ?", studentID).
		Where("sf.id IN (?)", bun.In(ids)).
		OrderExpr("sf.id ASC").
		Scan(ctx)
	return fees, err
}

func (r *repository) StudentExists(ctx context.Context, studentID int) (exists bool, err error) {
	defer r.metrics.Track(ctx, "select", "students", time.Now(), &err)

	return r.db.NewSelect().TableExpr("students").Where("id = ?", studentID).Exists(ctx)
}

func (r *repository) PayerForUser(ctx context.Context, userID int) (payer *Payer, err error) {
	defer r.metrics.Track(ctx, "select", "students", time.Now(), &err)

	payer = new(Payer)
	err = r.db.NewSelect().
		TableExpr("students AS s").
		ColumnExpr("s.id AS student_id").
		ColumnExpr("u.email").
		Join("JOIN users AS u ON u.id = s.user_id").
		Where("s.user_id = ?", userID).
		Scan(ctx, payer)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}
	return payer, nil
}
