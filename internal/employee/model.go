package employee

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusOnLeave  Status = "ON_LEAVE"
)

type Employee struct {
	bun.BaseModel `bun:"table:employees,alias:e"`

	ID          int             `bun:"id,pk,autoincrement" json:"id"`
	Name        string          `bun:"name,notnull" json:"name" validate:"required"`
	Email       string          `bun:"email,notnull,unique" json:"email" validate:"required,email"`
	Position    string          `bun:"position,notnull" json:"position" validate:"required"`
	Department  string          `bun:"department,notnull" json:"department" validate:"required"`
	Salary      decimal.Decimal `bun:"salary,type:numeric(14,2),notnull" json:"salary"`
	Status      Status          `bun:"status,notnull,default:'ACTIVE'" json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE ON_LEAVE"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
	BankAccount *BankAccount    `bun:"rel:has-one,join:id=employee_id" json:"bankAccount,omitempty"`
}

type BankAccount struct {
	bun.BaseModel `bun:"table:bank_accounts,alias:ba"`

	ID            int       `bun:"id,pk,autoincrement" json:"id"`
	EmployeeID    int       `bun:"employee_id,notnull,unique" json:"employeeId"`
	AccountNumber string    `bun:"account_number,notnull" json:"accountNumber"`
	AccountName   string    `bun:"account_name,notnull" json:"accountName"`
	BankCode      string    `bun:"bank_code,notnull" json:"bankCode"`
	BankName      string    `bun:"bank_name,notnull" json:"bankName"`
	Currency      string    `bun:"currency,notnull,default:'NGN'" json:"currency"`
	RecipientCode string    `bun:"recipient_code" json:"recipientCode,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

type CreateBankAccountRequest struct {
	AccountNumber string `json:"accountNumber" validate:"required,numeric,len=10"`
	BankCode      string `json:"bankCode" validate:"required"`
	BankName      string `json:"bankName" validate:"required"`
}
