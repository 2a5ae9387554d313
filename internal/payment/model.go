package payment

import (
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/employee"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusPaid       Status = "PAID"
	StatusFailed     Status = "FAILED"
	StatusCompleted  Status = "COMPLETED"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusPaid, StatusFailed},
	StatusProcessing: {StatusPaid, StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusFailed},
}

// CanTransition reports whether a payment may move from s to next.
// PAID and FAILED are terminal.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:pay"`

	ID             string             `bun:"id,pk,type:uuid" json:"id"`
	Amount         decimal.Decimal    `bun:"amount,type:numeric(14,2),notnull" json:"amount"`
	Status         Status             `bun:"status,notnull,default:'PENDING'" json:"status"`
	EmployeeID     *int               `bun:"employee_id" json:"employeeId,omitempty"`
	PayrollID      *int               `bun:"payroll_id" json:"payrollId,omitempty"`
	StudentFeeID   *int               `bun:"student_fee_id" json:"studentFeeId,omitempty"`
	Reason         string             `bun:"reason" json:"reason,omitempty"`
	TransferCode   string             `bun:"transfer_code" json:"transferCode,omitempty"`
	TransferRef    string             `bun:"transfer_ref" json:"transferRef,omitempty"`
	TransferStatus string             `bun:"transfer_status" json:"transferStatus,omitempty"`
	ProcessedAt    *time.Time         `bun:"processed_at" json:"processedAt,omitempty"`
	CreatedAt      time.Time          `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt      time.Time          `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
	Employee       *employee.Employee `bun:"rel:belongs-to,join:employee_id=id" json:"employee,omitempty"`
}

type InitiateRequest struct {
	EmployeeID  int             `json:"employeeId" validate:"required,gt=0"`
	PayrollID   int             `json:"payrollId" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	DryRun      bool            `json:"dryRun"`
}
