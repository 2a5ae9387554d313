package student

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/auth"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	List(ctx context.Context, params ListParams) ([]ListItem, int, error)
	GetByID(ctx context.Context, id int) (*Student, error)
	Create(ctx context.Context, user *auth.User, student *Student, status EnrollmentStatus, documents []DocumentInput) error
	Update(ctx context.Context, id int, req UpdateRequest, approverID int) error
	Delete(ctx context.Context, id int) error
	MyDocuments(ctx context.Context, userID int) ([]*Document, error)
	IsEnrollmentApproved(ctx context.Context, userID int) (bool, error)
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

const (
	totalFeesExpr = `COALESCE((SELECT SUM(f.amount) FROM student_fees AS sf
		JOIN fees AS f ON f.id = sf.fee_id WHERE sf.student_id = s.id), 0) AS total_fees`
	totalPaidExpr = `COALESCE((SELECT SUM(p.amount) FROM payments AS p
		JOIN student_fees AS sf ON sf.id = p.student_fee_id
		WHERE sf.student_id = s.id AND p.status = 'PAID'), 0) AS total_paid`
	// A student is in debt while any non-zero fee has no PAID payment.
	hasDebtExpr = `EXISTS (SELECT 1 FROM student_fees AS sf
		JOIN fees AS f ON f.id = sf.fee_id
		WHERE sf.student_id = s.id AND f.amount > 0
		AND NOT EXISTS (SELECT 1 FROM payments AS p WHERE p.student_fee_id = sf.id AND p.status = 'PAID'))`
)

func (r *repository) List(ctx context.Context, params ListParams) (items []ListItem, total int, err error) {
	defer r.metrics.Track(ctx, "select", "students", time.Now(), &err)

	q := r.db.NewSelect().
		TableExpr("students AS s").
		Join("JOIN users AS u ON u.id = s.user_id").
		Join("LEFT JOIN enrollments AS en ON en.student_id = s.id").
		ColumnExpr("s.id, s.first_name, s.last_name, s.grade, u.email").
		ColumnExpr("COALESCE(en.status, '') AS enrollment_status").
		ColumnExpr(totalFeesExpr).
		ColumnExpr(totalPaidExpr)

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("s.first_name ILIKE ?", pattern).WhereOr("s.last_name ILIKE ?", pattern)
		})
	}
	if params.Grade != "" {
		q = q.Where("s.grade = ?", params.Grade)
	}
	if params.HasDebt {
		q = q.Where(hasDebtExpr)
	}

	items = make([]ListItem, 0, params.Limit)
	total, err = q.
		OrderExpr("s.created_at DESC, s.id DESC").
		Limit(params.Limit).
		Offset((params.Page-1)*params.Limit).
		ScanAndCount(ctx, &items)
	if err != nil {
		return nil, 0, err
	}

	for i := range items {
		items[i].Debt = items[i].TotalFees.Sub(items[i].TotalPaid)
	}
	return items, total, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (student *Student, err error) {
	defer r.metrics.Track(ctx, "select", "students", time.Now(), &err)

	student = new(Student)
	err = r.db.NewSelect().
		Model(student).
		Relation("User").
		Relation("Fees", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("sf.assigned_at ASC, sf.id ASC")
		}).
		Relation("Fees.Fee").
		Relation("Fees.Payments").
		Where("s.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}

	student.Enrollment, err = r.enrollment(ctx, "en.student_id = ?", id)
	if errors.Is(err, ErrEnrollmentNotFound) {
		return student, nil
	}
	return student, err
}

// enrollment loads one enrollment with its documents.
func (r *repository) enrollment(ctx context.Context, where string, arg any) (*Enrollment, error) {
	enrollment := new(Enrollment)
	err := r.db.NewSelect().
		Model(enrollment).
		Relation("Documents", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("d.uploaded_at ASC, d.id ASC")
		}).
		Where(where, arg).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}
	if enrollment.Documents == nil {
		enrollment.Documents = []*Document{}
	}
	return enrollment, nil
}

// Create inserts the login, the student, its enrollment and documents in one transaction.
func (r *repository) Create(ctx context.Context, user *auth.User, student *Student, status EnrollmentStatus, documents []DocumentInput) (err error) {
	defer r.metrics.Track(ctx, "insert", "students", time.Now(), &err)

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := auth.NewRepository(tx, r.metrics).CreateUser(ctx, user); err != nil {
			if errors.Is(err, auth.ErrEmailExists) {
				return ErrEmailExists
			}
			return err
		}

		student.UserID = user.ID
		if _, err := tx.NewInsert().Model(student).Returning("*").Exec(ctx); err != nil {
			return err
		}

		enrollment := &Enrollment{StudentID: student.ID, Status: status}
		if status == EnrollmentApproved {
			now := time.Now()
			enrollment.ApprovedAt = &now
		}
		if _, err := tx.NewInsert().Model(enrollment).Returning("*").Exec(ctx); err != nil {
			return err
		}

		enrollment.Documents = make([]*Document, 0, len(documents))
		for _, d := range documents {
			enrollment.Documents = append(enrollment.Documents, &Document{
				EnrollmentID: enrollment.ID,
				FileName:     d.FileName,
				URL:          d.URL,
			})
		}
		if len(enrollment.Documents) > 0 {
			if _, err := tx.NewInsert().Model(&enrollment.Documents).Returning("*").Exec(ctx); err != nil {
				return err
			}
		}

		student.Enrollment = enrollment
		return nil
	})
}

// Update applies a partial update; an enrollment status change records the
// approver when the new status is APPROVED and clears it otherwise.
func (r *repository) Update(ctx context.Context, id int, req UpdateRequest, approverID int) (err error) {
	defer r.metrics.Track(ctx, "update", "students", time.Now(), &err)

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		q := tx.NewUpdate().
			Model((*Student)(nil)).
			Set("updated_at = ?", now).
			Where("id = ?", id)
		if req.FirstName != nil {
			q = q.Set("first_name = ?", *req.FirstName)
		}
		if req.LastName != nil {
			q = q.Set("last_name = ?", *req.LastName)
		}
		if req.Grade != nil {
			q = q.Set("grade = ?", *req.Grade)
		}
		if req.DateOfBirth != nil {
			q = q.Set("date_of_birth = ?", *req.DateOfBirth)
		}

		result, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return ErrStudentNotFound
		}

		if req.EnrollmentStatus == nil {
			return nil
		}

		var approvedBy *int
		var approvedAt *time.Time
		if *req.EnrollmentStatus == EnrollmentApproved {
			approvedBy, approvedAt = &approverID, &now
		}
		result, err = tx.NewUpdate().
			Model((*Enrollment)(nil)).
			Set("status = ?", *req.EnrollmentStatus).
			Set("approved_by_id = ?", approvedBy).
			Set("approved_at = ?", approvedAt).
			Where("student_id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return ErrEnrollmentNotFound
		}
		return nil
	})
}

// Delete removes the student's login; the schema cascades to the student rows.
func (r *repository) Delete(ctx context.Context, id int) (err error) {
	defer r.metrics.Track(ctx, "delete", "students", time.Now(), &err)

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var userID int
		err := tx.NewSelect().
			Model((*Student)(nil)).
			Column("user_id").
			Where("id = ?", id).
			Scan(ctx, &userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStudentNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.NewDelete().Model((*auth.User)(nil)).Where("id = ?", userID).Exec(ctx)
		return err
	})
}

func (r *repository) MyDocuments(ctx context.Context, userID int) (documents []*Document, err error) {
	defer r.metrics.Track(ctx, "select", "documents", time.Now(), &err)

	exists, err := r.db.NewSelect().Model((*Student)(nil)).Where("user_id = ?", userID).Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrStudentNotFound
	}

	enrollment, err := r.enrollment(ctx, "en.student_id = (SELECT id FROM students WHERE user_id = ?)", userID)
	if err != nil {
		return nil, err
	}
	return enrollment.Documents, nil
}

func (r *repository) IsEnrollmentApproved(ctx context.Context, userID int) (approved bool, err error) {
	defer r.metrics.Track(ctx, "select", "enrollments", time.Now(), &err)

	return r.db.NewSelect().
		TableExpr("enrollments AS en").
		Join("JOIN students AS s ON s.id = en.student_id").
		Where("s.user_id = ?", userID).
		Where("en.status = ?", EnrollmentApproved).
		Exists(ctx)
}
