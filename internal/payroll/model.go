package payroll

import (
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
)

type Payroll struct {
	bun.BaseModel `bun:"table:payrolls,alias:pr"`

	ID          int                `bun:"id,pk,autoincrement" json:"id"`
	Name        string             `bun:"name,notnull" json:"name"`
	PayDate     time.Time          `bun:"pay_date,notnull" json:"payDate"`
	PeriodStart time.Time          `bun:"period_start,notnull" json:"periodStart"`
	PeriodEnd   time.Time          `bun:"period_end,notnull" json:"periodEnd"`
	TotalAmount decimal.Decimal    `bun:"total_amount,type:numeric(14,2),notnull" json:"totalAmount"`
	Status      Status             `bun:"status,notnull,default:'SCHEDULED'" json:"status"`
	CreatedAt   time.Time          `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time          `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
	Payments    []*payment.Payment `bun:"rel:has-many,join:id=payroll_id" json:"payments,omitempty"`

	EmployeeCount int `bun:"-" json:"employeeCount"`
}

type CreateRequest struct {
	Name               string    `json:"name" validate:"required"`
	PayDate            time.Time `json:"payDate" validate:"required"`
	PeriodStart        time.Time `json:"periodStart" validate:"required"`
	PeriodEnd          time.Time `json:"periodEnd" validate:"required,gtefield=PeriodStart"`
	EmployeeIDs        []int     `json:"employeeIds" validate:"required,min=1,dive,gt=0"`
	ProcessImmediately bool      `json:"processImmediately"`
}
