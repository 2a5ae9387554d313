package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrEnrollmentNotApproved = errors.New("enrollment not yet approved")
	ErrInvalidRefreshToken   = errors.New("invalid or expired refresh token")
	ErrEmailExists           = errors.New("email already exists")
	ErrUserNotFound          = errors.New("user not found")
)

// EnrollmentChecker gates student sign-in on an approved enrollment.
type EnrollmentChecker interface {
	IsEnrollmentApproved(ctx context.Context, userID int) (bool, error)
}

type Service struct {
	repo        *Repository
	tokens      *TokenManager
	enrollments EnrollmentChecker
	logger      *slog.Logger
}

func NewService(repo *Repository, tokens *TokenManager, enrollments EnrollmentChecker, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		tokens:      tokens,
		enrollments: enrollments,
		logger:      logger,
	}
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Role == RoleStudent {
		approved, err := s.enrollments.IsEnrollmentApproved(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check enrollment: %w", err)
		}
		if !approved {
			return nil, ErrEnrollmentNotApproved
		}
	}

	if err := s.repo.DeleteExpiredTokens(ctx, user.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to prune expired refresh tokens", "user_id", user.ID, "error", err)
	}

	return s.issue(ctx, user)
}

// Refresh rotates the refresh token and issues a new access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	rt, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	if err := s.repo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return s.issue(ctx, user)
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repo.DeleteRefreshToken(ctx, refreshToken); err != nil && !errors.Is(err, ErrInvalidRefreshToken) {
		return err
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID int) (*User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// EnsureAdmin creates the bootstrap administrator unless the email is taken.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.CreateUser(ctx, &User{
		Email:    email,
		Password: hashed,
		Name:     name,
		Role:     RoleAdmin,
	}); err != nil && !errors.Is(err, ErrEmailExists) {
		return err
	}

	s.logger.InfoContext(ctx, "bootstrap admin created", "email", email)
	return nil
}

func (s *Service) issue(ctx context.Context, user *User) (*AuthResponse, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateRefreshToken(ctx, user.ID, refreshToken, time.Now().Add(s.tokens.RefreshTTL())); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
