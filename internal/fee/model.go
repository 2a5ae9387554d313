package fee

import (
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Fee struct {
	bun.BaseModel `bun:"table:fees,alias:f"`

	ID          int             `bun:"id,pk,autoincrement" json:"id"`
	Name        string          `bun:"name,notnull" json:"name" validate:"required"`
	Description string          `bun:"description" json:"description,omitempty"`
	Amount      decimal.Decimal `bun:"amount,type:numeric(14,2),notnull" json:"amount"`
	Currency    string          `bun:"currency,notnull,default:'NGN'" json:"currency" validate:"omitempty,len=3"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

type StudentFee struct {
	bun.BaseModel `bun:"table:student_fees,alias:sf"`

	ID         int                `bun:"id,pk,autoincrement" json:"id"`
	StudentID  int                `bun:"student_id,notnull" json:"studentId"`
	FeeID      int                `bun:"fee_id,notnull" json:"feeId"`
	DueDate    *time.Time         `bun:"due_date" json:"dueDate,omitempty"`
	AssignedAt time.Time          `bun:"assigned_at,notnull,default:current_timestamp" json:"assignedAt"`
	Fee        *Fee               `bun:"rel:belongs-to,join:fee_id=id" json:"fee,omitempty"`
	Payments   []*payment.Payment `bun:"rel:has-many,join:id=student_fee_id" json:"payments"`
}

// PaidAmount sums the PAID payments of the assignment.
func (sf *StudentFee) PaidAmount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range sf.Payments {
		if p.Status == payment.StatusPaid {
			total = total.Add(p.Amount)
		}
	}
	return total
}

type AssignRequest struct {
	FeeID   int        `json:"feeId" validate:"required,gt=0"`
	DueDate *time.Time `json:"dueDate"`
}

// CheckoutRequest pays towards the student's fee assignments (student_fees ids).
type CheckoutRequest struct {
	Amount decimal.Decimal `json:"amount"`
	FeeIDs []int           `json:"feeIds" validate:"required,min=1,dive,gt=0"`
}

type CheckoutResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	Reference        string `json:"reference"`
}

// StatementItem is one line of a student's fee statement.
type StatementItem struct {
	ID              int                `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description,omitempty"`
	Amount          decimal.Decimal    `json:"amount"`
	Currency        string             `json:"currency"`
	DueDate         *time.Time         `json:"dueDate,omitempty"`
	AssignedAt      time.Time          `json:"assignedAt"`
	TotalPaid       decimal.Decimal    `json:"totalPaid"`
	RemainingAmount decimal.Decimal    `json:"remainingAmount"`
	Status          string             `json:"status"`
	Payments        []*payment.Payment `json:"payments"`
}
