package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/krishiconnect/backend/internal/models"
	"github.com/krishiconnect/backend/internal/repository/common"
)

// ErrUserNotFound is returned when no user record matches.
var ErrUserNotFound = common.ErrNotFound

// ErrDuplicateUser is returned when a unique constraint on phone number or
// email rejects a write.
var ErrDuplicateUser = common.ErrAlreadyExists

const userColumns = `id, phone_number, email, password_hash, name, location, verification_status,
	email_verified, is_banned, is_active, last_login_at, last_password_change_at, created_at, updated_at`

// UserRepository owns the users and user_refresh_tokens tables.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. Duplicate phone numbers or emails surface as
// ErrDuplicateUser.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (phone_number, email, password_hash, name, location, verification_status, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, is_banned, is_active, created_at, updated_at
	`

	if user.VerificationStatus == "" {
		user.VerificationStatus = models.VerificationStatusUnverified
	}

	if err := r.db.QueryRowxContext(
		ctx, query,
		user.PhoneNumber, user.Email, user.PasswordHash, user.Name, user.Location,
		user.VerificationStatus, user.EmailVerified,
	).Scan(&user.ID, &user.IsBanned, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if common.IsUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("user repository: create: %w", err)
	}

	return nil
}

// GetByID returns a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by id: %w", err)
	}
	return &user, nil
}

// GetByPhone returns a user by phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phoneNumber string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`
	if err := r.db.GetContext(ctx, &user, query, phoneNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by phone: %w", err)
	}
	return &user, nil
}

// GetByEmail returns a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get by email: %w", err)
	}
	return &user, nil
}

// FindByIdentifier looks a user up by phone number, email, or either when
// both are supplied (OR query).
func (r *UserRepository) FindByIdentifier(ctx context.Context, phoneNumber, email string) (*models.User, error) {
	var (
		user  models.User
		query string
		args  []interface{}
	)

	switch {
	case phoneNumber != "" && email != "":
		query = `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1 OR email = $2`
		args = []interface{}{phoneNumber, strings.ToLower(email)}
	case phoneNumber != "":
		query = `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`
		args = []interface{}{phoneNumber}
	case email != "":
		query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
		args = []interface{}{strings.ToLower(email)}
	default:
		return nil, ErrUserNotFound
	}

	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: find by identifier: %w", err)
	}
	return &user, nil
}

// Delete removes a user. Used as the compensating action when sending the
// registration email fails after the row was created.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("user repository: delete: %w", err)
	}
	return nil
}

// MarkEmailVerified flips email_verified and promotes the verification
// status.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET email_verified = TRUE, verification_status = $1, updated_at = NOW()
		WHERE id = $2
	`
	res, err := r.db.ExecContext(ctx, query, models.VerificationStatusVerified, id)
	if err != nil {
		return fmt.Errorf("user repository: mark email verified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateLastLoginAt stamps the last successful login.
func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("user repository: update last login at: %w", err)
	}
	return nil
}

// UpdatePassword replaces the password hash and stamps
// last_password_change_at.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, last_password_change_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	res, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("user repository: update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddRefreshToken appends a token to the user's active refresh-token list.
func (r *UserRepository) AddRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	query := `
		INSERT INTO user_refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, token, expiresAt); err != nil {
		return fmt.Errorf("user repository: add refresh token: %w", err)
	}
	return nil
}

// RemoveRefreshToken pulls a token from the user's list. Removing an
// absent token is not an error, so logout stays idempotent.
func (r *UserRepository) RemoveRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	query := `DELETE FROM user_refresh_tokens WHERE user_id = $1 AND token = $2`
	if _, err := r.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("user repository: remove refresh token: %w", err)
	}
	return nil
}

// HasRefreshToken reports whether the token is still a live member of the
// user's refresh-token list.
func (r *UserRepository) HasRefreshToken(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM user_refresh_tokens
		WHERE user_id = $1 AND token = $2 AND expires_at > NOW()
	`
	if err := r.db.GetContext(ctx, &count, query, userID, token); err != nil {
		return false, fmt.Errorf("user repository: has refresh token: %w", err)
	}
	return count > 0, nil
}
