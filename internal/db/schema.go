package db

import (
	"context"

	"github.com/pablotheshekpeking/payroll-system/internal/auth"
	"github.com/pablotheshekpeking/payroll-system/internal/employee"
	"github.com/pablotheshekpeking/payroll-system/internal/fee"
	"github.com/pablotheshekpeking/payroll-system/internal/payment"
	"github.com/pablotheshekpeking/payroll-system/internal/payroll"
	"github.com/pablotheshekpeking/payroll-system/internal/student"

	"github.com/uptrace/bun"
)

// Schema lists every table in creation order; referenced tables come first.
func Schema() []Table {
	return []Table{
		{Model: (*auth.User)(nil)},
		{Model: (*auth.RefreshToken)(nil), ForeignKeys: []string{
			`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
		}},
		{Model: (*employee.Employee)(nil)},
		{Model: (*employee.BankAccount)(nil), ForeignKeys: []string{
			`("employee_id") REFERENCES "employees" ("id") ON DELETE CASCADE`,
		}},
		{Model: (*payroll.Payroll)(nil)},
		{Model: (*student.Student)(nil), ForeignKeys: []string{
			`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
		}},
		{Model: (*student.Enrollment)(nil), ForeignKeys: []string{
			`("student_id") REFERENCES "students" ("id") ON DELETE CASCADE`,
			`("approved_by_id") REFERENCES "users" ("id") ON DELETE SET NULL`,
		}},
		{Model: (*student.Document)(nil), ForeignKeys: []string{
			`("enrollment_id") REFERENCES "enrollments" ("id") ON DELETE CASCADE`,
		}},
		{Model: (*fee.Fee)(nil)},
		{Model: (*fee.StudentFee)(nil), ForeignKeys: []string{
			`("student_id") REFERENCES "students" ("id") ON DELETE CASCADE`,
			`("fee_id") REFERENCES "fees" ("id") ON DELETE CASCADE`,
		}},
		{Model: (*payment.Payment)(nil), ForeignKeys: []string{
			`("employee_id") REFERENCES "employees" ("id")`,
			`("payroll_id") REFERENCES "payrolls" ("id") ON DELETE CASCADE`,
			`("student_fee_id") REFERENCES "student_fees" ("id") ON DELETE SET NULL`,
		}},
	}
}

// Tables lists table names in reverse dependency order, ready for TRUNCATE.
func Tables() []string {
	return []string{
		"payments", "student_fees", "fees", "documents", "enrollments", "students",
		"payrolls", "bank_accounts", "employees", "refresh_tokens", "users",
	}
}

// Migrate creates the schema and the payment lookup indexes.
func Migrate(ctx context.Context, db *bun.DB) error {
	if err := RunMigrations(ctx, db, Schema()...); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS payments_transfer_ref_idx ON payments (transfer_ref)`,
		`CREATE INDEX IF NOT EXISTS payments_payroll_id_idx ON payments (payroll_id)`,
		`CREATE INDEX IF NOT EXISTS payments_employee_id_idx ON payments (employee_id)`,
		`CREATE INDEX IF NOT EXISTS student_fees_student_id_idx ON student_fees (student_id)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
