package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/db/pgerr"
	"github.com/pablotheshekpeking/payroll-system/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) *Repository {
	return &Repository{
		db:      db,
		metrics: m,
	}
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (user *User, err error) {
	defer r.metrics.Track(ctx, "select", "users", time.Now(), &err)

	user = new(User)
	err = r.db.NewSelect().Model(user).Where("lower(email) = lower(?)", email).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int) (user *User, err error) {
	defer r.metrics.Track(ctx, "select", "users", time.Now(), &err)

	user = new(User)
	err = r.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *User) (err error) {
	defer r.metrics.Track(ctx, "insert", "users", time.Now(), &err)

	_, err = r.db.NewInsert().Model(user).Returning("*").Exec(ctx)
	if pgerr.IsUniqueViolation(err) {
		return ErrEmailExists
	}
	return err
}

// CreateRefreshToken stores a new refresh token
func (r *Repository) CreateRefreshToken(ctx context.Context, userID int, token string, expiresAt time.Time) (err error) {
	defer r.metrics.Track(ctx, "insert", "refresh_tokens", time.Now(), &err)

	_, err = r.db.NewInsert().Model(&RefreshToken{
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}).Exec(ctx)
	return err
}

// GetRefreshToken returns an unexpired refresh token.
func (r *Repository) GetRefreshToken(ctx context.Context, token string) (rt *RefreshToken, err error) {
	defer r.metrics.Track(ctx, "select", "refresh_tokens", time.Now(), &err)

	rt = new(RefreshToken)
	err = r.db.NewSelect().
		Model(rt).
		Where("token = ?", token).
		Where("expires_at > ?", time.Now()).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// DeleteRefreshToken revokes token. It returns ErrInvalidRefreshToken when the
// token was already gone, so only one concurrent rotation can win.
func (r *Repository) DeleteRefreshToken(ctx context.Context, token string) (err error) {
	defer r.metrics.Track(ctx, "delete", "refresh_tokens", time.Now(), &err)

	result, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInvalidRefreshToken
	}
	return nil
}

func (r *Repository) DeleteExpiredTokens(ctx context.Context, userID int) (err error) {
	defer r.metrics.Track(ctx, "delete", "refresh_tokens", time.Now(), &err)

	_, err = r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("expires_at < ?", time.Now()).
		Exec(ctx)
	return err
}
