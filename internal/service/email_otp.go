package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/krishiconnect/backend/internal/logger"
	"github.com/krishiconnect/backend/internal/models"
	"github.com/krishiconnect/backend/internal/notify"
	"github.com/krishiconnect/backend/internal/pkg/apperror"
	"github.com/krishiconnect/backend/internal/repository"
)

// EmailOTPConfig holds the timing policy of the email channel.
type EmailOTPConfig struct {
	TTL               time.Duration
	MaxAttempts       int
	ResendWindow      time.Duration
	DedupWindow       time.Duration
	ResendDedupWindow time.Duration
}

// otpChallengeRepo is the slice of the challenge repository the service uses.
type otpChallengeRepo interface {
	Create(ctx context.Context, challenge *models.OTPChallenge) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OTPChallenge, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	ResetForResend(ctx context.Context, id uuid.UUID, codeHash string, expiresAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// otpUserLookup resolves display names for resent messages.
type otpUserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// onceSender is the duplicate-suppressing mail sender.
type onceSender interface {
	SendOnce(ctx context.Context, to, subject, htmlBody, textBody, eventType, identifier string, window time.Duration) error
}

// EmailOTPVerification is the proof returned by a successful Verify call.
type EmailOTPVerification struct {
	UserID  uuid.UUID
	Email   string
	Purpose string
}

// EmailOTPService runs the durable email OTP channel. Challenges live in
// Postgres with bcrypt-hashed codes; delivery goes through the dedup
// sender so rapid repeats collapse into one email.
type EmailOTPService struct {
	challenges otpChallengeRepo
	users      otpUserLookup
	sender     onceSender
	codec      *PasswordCodec
	cfg        EmailOTPConfig

	now func() time.Time
}

// NewEmailOTPService creates the service.
func NewEmailOTPService(challenges otpChallengeRepo, users otpUserLookup, sender onceSender,
	codec *PasswordCodec, cfg EmailOTPConfig) *EmailOTPService {
	return &EmailOTPService{
		challenges: challenges,
		users:      users,
		sender:     sender,
		codec:      codec,
		cfg:        cfg,
		now:        time.Now,
	}
}

// GenerateAndSend creates a challenge and emails the code. If delivery
// fails or is throttled the freshly created record is removed again, so
// a challenge only persists once its code is actually on the wire.
func (s *EmailOTPService) GenerateAndSend(ctx context.Context, userID uuid.UUID, email, purpose,
	displayName string) (uuid.UUID, time.Duration, error) {

	code, err := generateOTPCode()
	if err != nil {
		return uuid.Nil, 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to generate OTP")
	}

	codeHash, err := s.codec.Hash(code)
	if err != nil {
		return uuid.Nil, 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to generate OTP")
	}

	challenge := &models.OTPChallenge{
		UserID:    userID,
		Email:     email,
		CodeHash:  codeHash,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}
	if err := s.challenges.Create(ctx, challenge); err != nil {
		return uuid.Nil, 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to create OTP")
	}

	if err := s.deliver(ctx, challenge, code, displayName, purpose+"_otp", s.cfg.DedupWindow); err != nil {
		if delErr := s.challenges.Delete(ctx, challenge.ID); delErr != nil {
			logger.Log.WithError(delErr).WithField("otp_id", challenge.ID).
				Error("failed to remove challenge after delivery failure")
		}
		return uuid.Nil, 0, err
	}

	return challenge.ID, s.cfg.TTL, nil
}

// Verify checks a submitted code against the challenge. A mismatch burns
// one attempt; the returned error carries how many remain. A match marks
// the challenge verified but does not consume it, callers invalidate it
// after acting on the proof.
func (s *EmailOTPService) Verify(ctx context.Context, otpID uuid.UUID, code string) (*EmailOTPVerification, error) {
	challenge, err := s.challenges.GetByID(ctx, otpID)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "OTP not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to verify OTP")
	}

	switch challenge.State(s.now(), s.cfg.MaxAttempts) {
	case models.ChallengeVerified:
		return nil, apperror.New(apperror.ErrCodeAlreadyUsed, "OTP has already been used")
	case models.ChallengeExpired:
		return nil, apperror.New(apperror.ErrCodeExpired, "OTP has expired, please request a new one")
	case models.ChallengeExhausted:
		return nil, apperror.New(apperror.ErrCodeTooManyAttempts, "Too many incorrect attempts, please request a new OTP")
	}

	if !s.codec.Verify(code, challenge.CodeHash) {
		attempts, incErr := s.challenges.IncrementAttempts(ctx, otpID)
		if incErr != nil {
			return nil, apperror.Wrap(incErr, apperror.ErrCodeInternal, "Failed to verify OTP")
		}
		// A mismatch always reports the mismatch, even when it spends the
		// last attempt. Exhaustion surfaces on the next call, before compare.
		remaining := s.cfg.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, apperror.InvalidCode(fmt.Sprintf("Invalid OTP, %d attempts remaining", remaining), remaining)
	}

	if err := s.challenges.MarkVerified(ctx, otpID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to verify OTP")
	}

	return &EmailOTPVerification{
		UserID:  challenge.UserID,
		Email:   challenge.Email,
		Purpose: challenge.Purpose,
	}, nil
}

// Resend issues a fresh code on an existing challenge. Allowed only
// within the resend window measured from the challenge's creation, and
// only while the challenge is unverified. The attempt counter resets.
func (s *EmailOTPService) Resend(ctx context.Context, otpID uuid.UUID) (time.Duration, error) {
	challenge, err := s.challenges.GetByID(ctx, otpID)
	if err != nil {
		if errors.Is(err, repository.ErrOTPNotFound) {
			return 0, apperror.New(apperror.ErrCodeNotFound, "OTP not found")
		}
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to resend OTP")
	}

	if challenge.Verified {
		return 0, apperror.New(apperror.ErrCodeAlreadyUsed, "OTP has already been used")
	}
	if s.now().Sub(challenge.CreatedAt) > s.cfg.ResendWindow {
		return 0, apperror.New(apperror.ErrCodeExpired, "OTP session has expired, please start again")
	}

	code, err := generateOTPCode()
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to resend OTP")
	}
	codeHash, err := s.codec.Hash(code)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to resend OTP")
	}

	if err := s.challenges.ResetForResend(ctx, otpID, codeHash, s.now().Add(s.cfg.TTL)); err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to resend OTP")
	}

	displayName := ""
	if user, lookupErr := s.users.GetByID(ctx, challenge.UserID); lookupErr == nil {
		displayName = user.Name
	}

	// The challenge already carries the new code hash; a delivery failure
	// here leaves it resendable, so no rollback. The resend event is keyed
	// apart from the initial send so its shorter window applies.
	if err := s.deliver(ctx, challenge, code, displayName, challenge.Purpose+"_otp_resend", s.cfg.ResendDedupWindow); err != nil {
		return 0, err
	}
	return s.cfg.TTL, nil
}

// Invalidate removes a consumed or abandoned challenge.
func (s *EmailOTPService) Invalidate(ctx context.Context, otpID uuid.UUID) error {
	if err := s.challenges.Delete(ctx, otpID); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to invalidate OTP")
	}
	return nil
}

func (s *EmailOTPService) deliver(ctx context.Context, challenge *models.OTPChallenge, code,
	displayName, event string, dedupWindow time.Duration) error {

	ttlMinutes := int(s.cfg.TTL / time.Minute)

	var subject, html, text string
	switch challenge.Purpose {
	case models.OTPPurposePasswordReset:
		subject = notify.PasswordResetSubject
		html, text = notify.PasswordResetEmail(displayName, code, ttlMinutes)
	default:
		subject = notify.RegistrationSubject
		html, text = notify.RegistrationEmail(displayName, code, ttlMinutes)
	}

	return s.sender.SendOnce(ctx, challenge.Email, subject, html, text,
		event, challenge.UserID.String(), dedupWindow)
}

// generateOTPCode produces a uniform random 6-digit code.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
