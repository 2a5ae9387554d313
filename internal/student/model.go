package student

import (
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/auth"
	"github.com/pablotheshekpeking/payroll-system/internal/fee"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type EnrollmentStatus string

const (
	EnrollmentPending  EnrollmentStatus = "PENDING"
	EnrollmentApproved EnrollmentStatus = "APPROVED"
	EnrollmentRejected EnrollmentStatus = "REJECTED"
)

var Grades = []string{"JSS1", "JSS2", "JSS3", "SS1", "SS2", "SS3"}

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID          int               `bun:"id,pk,autoincrement" json:"id"`
	UserID      int               `bun:"user_id,notnull,unique" json:"userId"`
	FirstName   string            `bun:"first_name,notnull" json:"firstName"`
	LastName    string            `bun:"last_name,notnull" json:"lastName"`
	DateOfBirth *time.Time        `bun:"date_of_birth" json:"dateOfBirth,omitempty"`
	Grade       string            `bun:"grade,notnull" json:"grade"`
	CreatedAt   time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
	User        *auth.User        `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Enrollment  *Enrollment       `bun:"rel:has-one,join:id=student_id" json:"enrollment,omitempty"`
	Fees        []*fee.StudentFee `bun:"rel:has-many,join:id=student_id" json:"fees,omitempty"`
}

type Enrollment struct {
	bun.BaseModel `bun:"table:enrollments,alias:en"`

	ID           int              `bun:"id,pk,autoincrement" json:"id"`
	StudentID    int              `bun:"student_id,notnull,unique" json:"studentId"`
	Status       EnrollmentStatus `bun:"status,notnull,default:'PENDING'" json:"status"`
	AppliedAt    time.Time        `bun:"applied_at,notnull,default:current_timestamp" json:"appliedAt"`
	ApprovedByID *int             `bun:"approved_by_id" json:"approvedById,omitempty"`
	ApprovedAt   *time.Time       `bun:"approved_at" json:"approvedAt,omitempty"`
	Documents    []*Document      `bun:"rel:has-many,join:id=enrollment_id" json:"documents"`
}

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID           int       `bun:"id,pk,autoincrement" json:"id"`
	EnrollmentID int       `bun:"enrollment_id,notnull" json:"enrollmentId"`
	FileName     string    `bun:"file_name,notnull" json:"fileName" validate:"required"`
	URL          string    `bun:"url,notnull" json:"url" validate:"required,url"`
	UploadedAt   time.Time `bun:"uploaded_at,notnull,default:current_timestamp" json:"uploadedAt"`
}

type ListParams struct {
	Page    int
	Limit   int
	Search  string
	Grade   string
	HasDebt bool
}

type ListItem struct {
	ID               int              `json:"id"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	Email            string           `json:"email"`
	Grade            string           `json:"grade"`
	EnrollmentStatus EnrollmentStatus `json:"enrollmentStatus,omitempty"`
	TotalFees        decimal.Decimal  `json:"totalFees"`
	TotalPaid        decimal.Decimal  `json:"totalPaid"`
	Debt             decimal.Decimal  `json:"debt"`
}

type Pagination struct {
	Total int `json:"total"`
	Pages int `json:"pages"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type ListResult struct {
	Students   []ListItem `json:"students"`
	Pagination Pagination `json:"pagination"`
}

// Detail is a student with enrollment documents, fees with payments and login email.
type Detail struct {
	*Student
	Email string `json:"email"`
}

type ApplyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CreateRequest struct {
	FirstName   string     `json:"firstName" validate:"required"`
	LastName    string     `json:"lastName" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	Password    string     `json:"password" validate:"required,min=6,max=72"`
	Grade       string     `json:"grade" validate:"required"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
}

type UpdateRequest struct {
	FirstName        *string           `json:"firstName"`
	LastName         *string           `json:"lastName"`
	Grade            *string           `json:"grade"`
	DateOfBirth      *time.Time        `json:"dateOfBirth"`
	EnrollmentStatus *EnrollmentStatus `json:"enrollmentStatus" validate:"omitempty,oneof=PENDING APPROVED REJECTED"`
}

type DocumentInput struct {
	FileName string `json:"fileName" validate:"required"`
	URL      string `json:"url" validate:"required,url"`
}

type ApplyRequest struct {
	FirstName      string          `json:"firstName" validate:"required"`
	LastName       string          `json:"lastName" validate:"required"`
	Email          string          `json:"email" validate:"required,email"`
	PassportNumber string          `json:"passportNumber" validate:"required,min=6,max=72"`
	Grade          string          `json:"grade" validate:"required"`
	DateOfBirth    *time.Time      `json:"dateOfBirth"`
	Documents      []DocumentInput `json:"documents" validate:"dive"`
}
