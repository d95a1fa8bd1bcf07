package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/krishiconnect/backend/internal/models"
	"github.com/krishiconnect/backend/internal/repository/common"
)

// ErrOTPNotFound is returned when no challenge record matches.
var ErrOTPNotFound = common.ErrNotFound

const otpColumns = `id, user_id, email, code_hash, purpose, expires_at, is_verified,
	verification_attempts, created_at, updated_at`

// OTPRepository owns the otp_challenges table.
type OTPRepository struct {
	db *sqlx.DB
}

// NewOTPRepository creates the repository.
func NewOTPRepository(db *sqlx.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

// Create inserts a new challenge record.
func (r *OTPRepository) Create(ctx context.Context, challenge *models.OTPChallenge) error {
	query := `
		INSERT INTO otp_challenges (user_id, email, code_hash, purpose, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_verified, verification_attempts, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		challenge.UserID, challenge.Email, challenge.CodeHash, challenge.Purpose, challenge.ExpiresAt,
	).Scan(&challenge.ID, &challenge.Verified, &challenge.Attempts,
		&challenge.CreatedAt, &challenge.UpdatedAt); err != nil {
		return fmt.Errorf("otp repository: create: %w", err)
	}
	return nil
}

// GetByID returns a challenge by its opaque identifier.
func (r *OTPRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OTPChallenge, error) {
	var challenge models.OTPChallenge
	query := `SELECT ` + otpColumns + ` FROM otp_challenges WHERE id = $1`
	if err := r.db.GetContext(ctx, &challenge, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("otp repository: get by id: %w", err)
	}
	return &challenge, nil
}

// IncrementAttempts bumps the attempt counter atomically and returns the
// new value. A single statement, so two racing verification attempts can
// never both observe the same counter.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	query := `
		UPDATE otp_challenges
		SET verification_attempts = verification_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING verification_attempts
	`
	if err := r.db.GetContext(ctx, &attempts, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrOTPNotFound
		}
		return 0, fmt.Errorf("otp repository: increment attempts: %w", err)
	}
	return attempts, nil
}

// MarkVerified records a successful verification. The attempt counter is
// incremented as well so the audit trail counts the winning attempt.
func (r *OTPRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE otp_challenges
		SET is_verified = TRUE, verification_attempts = verification_attempts + 1, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("otp repository: mark verified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOTPNotFound
	}
	return nil
}

// ResetForResend overwrites the code hash, pushes out the expiry, and
// zeroes the attempt counter.
func (r *OTPRepository) ResetForResend(ctx context.Context, id uuid.UUID, codeHash string, expiresAt time.Time) error {
	query := `
		UPDATE otp_challenges
		SET code_hash = $1, expires_at = $2, verification_attempts = 0, updated_at = NOW()
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, codeHash, expiresAt, id)
	if err != nil {
		return fmt.Errorf("otp repository: reset for resend: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOTPNotFound
	}
	return nil
}

// Delete removes a challenge. Deleting an absent record is not an error,
// so invalidation stays idempotent.
func (r *OTPRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE id = $1`, id); err != nil {
		return fmt.Errorf("otp repository: delete: %w", err)
	}
	return nil
}
