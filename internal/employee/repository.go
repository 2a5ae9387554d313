package employee

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/db/pgerr"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	List(ctx context.Context) ([]Employee, error)
	GetByID(ctx context.Context, id int) (*Employee, error)
	GetByIDs(ctx context.Context, ids []int) ([]Employee, error)
	Create(ctx context.Context, employee *Employee) error
	Update(ctx context.Context, employee *Employee) error
	Delete(ctx context.Context, id int) error
	GetBankAccount(ctx context.Context, employeeID int) (*BankAccount, error)
	CreateBankAccount(ctx context.Context, account *BankAccount) error
	UpdateRecipientCode(ctx context.Context, accountID int, code string) error
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

func (r *repository) List(ctx context.Context) (employees []Employee, err error) {
	defer r.metrics.Track(ctx, "select", "employees", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&employees).
		Relation("BankAccount").
		OrderExpr("e.name ASC").
		Scan(ctx)
	return employees, err
}

func (r *repository) GetByID(ctx context.Context, id int) (employee *Employee, err error) {
	defer r.metrics.Track(ctx, "select", "employees", time.Now(), &err)

	employee = new(Employee)
	err = r.db.NewSelect().
		Model(employee).
		Relation("BankAccount").
		Where("e.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}
	return employee, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []int) (employees []Employee, err error) {
	defer r.metrics.Track(ctx, "select", "employees", time.Now(), &err)

	err = r.db.NewSelect().
		Model(&employees).
		Where("e.id IN (?)", bun.In(ids)).
		OrderExpr("e.id ASC").
		Scan(ctx)
	return employees, err
}

func (r *repository) Create(ctx context.Context, employee *Employee) (err error) {
	defer r.metrics.Track(ctx, "insert", "employees", time.Now(), &err)

	_, err = r.db.NewInsert().Model(employee).Returning("*").Exec(ctx)
	if pgerr.IsUniqueViolation(err) {
		return ErrEmailExists
	}
	return err
}

func (r *repository) Update(ctx context.Context, employee *Employee) (err error) {
	defer r.metrics.Track(ctx, "update", "employees", time.Now(), &err)

	employee.UpdatedAt = time.Now()
	result, err := r.db.NewUpdate().
		Model(employee).
		Column("name", "email", "position", "department", "salary", "status", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if pgerr.IsUniqueViolation(err) {
		return ErrEmailExists
	}
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int) (err error) {
	defer r.metrics.Track(ctx, "delete", "employees", time.Now(), &err)

	result, err := r.db.NewDelete().Model(&Employee{ID: id}).WherePK().Exec(ctx)
	if pgerr.IsForeignKeyViolation(err) {
		return ErrEmployeeHasPayments
	}
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (r *repository) GetBankAccount(ctx context.Context, employeeID int) (account *BankAccount, err error) {
	defer r.metrics.Track(ctx, "select", "bank_accounts", time.Now(), &err)

	account = new(BankAccount)
	err = r.db.NewSelect().Model(account).Where("employee_id = ?", employeeID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBankAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *repository) CreateBankAccount(ctx context.Context, account *BankAccount) (err error) {
	defer r.metrics.Track(ctx, "insert", "bank_accounts", time.Now(), &err)

	_, err = r.db.NewInsert().Model(account).Returning("*").Exec(ctx)
	if pgerr.IsUniqueViolation(err) {
		return ErrBankAccountExists
	}
	if pgerr.IsForeignKeyViolation(err) {
		return ErrEmployeeNotFound
	}
	return err
}

func (r *repository) UpdateRecipientCode(ctx context.Context, accountID int, code string) (err error) {
	defer r.metrics.Track(ctx, "update", "bank_accounts", time.Now(), &err)

	_, err = r.db.NewUpdate().
		Model((*BankAccount)(nil)).
		Set("recipient_code = ?", code).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", accountID).
		Exec(ctx)
	return err
}
