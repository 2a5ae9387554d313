package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/auth"
)

var (
	ErrStudentNotFound    = errors.New("student not found")
	ErrEnrollmentNotFound = errors.New("no enrollment found for this student")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidGrade       = errors.New("invalid grade level")
	ErrInvalidInput       = errors.New("invalid input")
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id int) (*Detail, error)
	Create(ctx context.Context, req CreateRequest) (*Detail, error)
	Update(ctx context.Context, id int, req UpdateRequest, approverID int) (*Detail, error)
	Delete(ctx context.Context, id int) error
	Apply(ctx context.Context, req ApplyRequest) (*ApplyResponse, error)
	MyDocuments(ctx context.Context, userID int) ([]*Document, error)
}

type service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger,
	}
}

// NormalizeGrade upper-cases grade and checks it against Grades.
func NormalizeGrade(grade string) (string, error) {
	grade = strings.ToUpper(strings.TrimSpace(grade))
	if !slices.Contains(Grades, grade) {
		return "", ErrInvalidGrade
	}
	return grade, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Page < 1 {
		params.Page = defaultPage
	}
	if params.Limit < 1 {
		params.Limit = defaultLimit
	}
	params.Limit = min(params.Limit, maxLimit)
	params.Search = strings.TrimSpace(params.Search)
	if params.Grade != "" {
		params.Grade = strings.ToUpper(params.Grade)
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Students: items,
		Pagination: Pagination{
			Total: total,
			Pages: (total + params.Limit - 1) / params.Limit,
			Page:  params.Page,
			Limit: params.Limit,
		},
	}, nil
}

func (s *service) Get(ctx context.Context, id int) (*Detail, error) {
	if id <= 0 {
		return nil, ErrStudentNotFound
	}
	student, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &Detail{Student: student}
	if student.User != nil {
		detail.Email = student.User.Email
	}
	return detail, nil
}

// Create registers a student directly; admin-created enrollments start APPROVED.
func (s *service) Create(ctx context.Context, req CreateRequest) (*Detail, error) {
	grade, err := NormalizeGrade(req.Grade)
	if err != nil {
		return nil, err
	}

	student, err := s.register(ctx, req.FirstName, req.LastName, req.Email, req.Password, grade, req.DateOfBirth, EnrollmentApproved, nil)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "student created", "student_id", student.ID, "grade", grade)
	return s.Get(ctx, student.ID)
}

// Apply submits a public enrollment application. The passport number becomes
// the initial password and the enrollment waits for approval.
func (s *service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResponse, error) {
	grade, err := NormalizeGrade(req.Grade)
	if err != nil {
		return nil, err
	}

	student, err := s.register(ctx, req.FirstName, req.LastName, req.Email, req.PassportNumber, grade,
		req.DateOfBirth, EnrollmentPending, req.Documents)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "enrollment submitted",
		"student_id", student.ID,
		"grade", grade,
		"documents", len(req.Documents),
	)
	return &ApplyResponse{
		Success: true,
		Message: "Enrollment submitted successfully. Please wait for approval.",
	}, nil
}

func (s *service) register(ctx context.Context, firstName, lastName, email, password, grade string, dateOfBirth *time.Time, status EnrollmentStatus, documents []DocumentInput) (*Student, error) {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrInvalidInput)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &auth.User{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: hashed,
		Name:     strings.TrimSpace(firstName + " " + lastName),
		Role:     auth.RoleStudent,
	}
	student := &Student{
		FirstName:   firstName,
		LastName:    lastName,
		Grade:       grade,
		DateOfBirth: dateOfBirth,
	}
	if err := s.repo.Create(ctx, user, student, status, documents); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *service) Update(ctx context.Context, id int, req UpdateRequest, approverID int) (*Detail, error) {
	if id <= 0 {
		return nil, ErrStudentNotFound
	}
	if req.Grade != nil {
		grade, err := NormalizeGrade(*req.Grade)
		if err != nil {
			return nil, err
		}
		req.Grade = &grade
	}
	for _, name := range []*string{req.FirstName, req.LastName} {
		if name != nil && strings.TrimSpace(*name) == "" {
			return nil, fmt.Errorf("%w: names cannot be empty", ErrInvalidInput)
		}
	}

	if err := s.repo.Update(ctx, id, req, approverID); err != nil {
		return nil, err
	}

	if req.EnrollmentStatus != nil {
		s.logger.InfoContext(ctx, "enrollment status changed",
			"student_id", id,
			"status", *req.EnrollmentStatus,
			"by", approverID,
		)
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return ErrStudentNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "student deleted", "student_id", id)
	return nil
}

func (s *service) MyDocuments(ctx context.Context, userID int) ([]*Document, error) {
	return s.repo.MyDocuments(ctx, userID)
}
