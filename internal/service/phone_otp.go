package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/krishiconnect/backend/internal/logger"
	"github.com/krishiconnect/backend/internal/models"
	"github.com/krishiconnect/backend/internal/notify"
	"github.com/krishiconnect/backend/internal/pkg/apperror"
	"github.com/krishiconnect/backend/internal/secretstore"
	"github.com/krishiconnect/backend/internal/validation"
)

// PhoneOTPConfig holds the timing policy of the phone channel.
type PhoneOTPConfig struct {
	TTL         time.Duration
	MaxAttempts int

	// AllowRelaxed accepts any well-formed code while the secret store is
	// down. Development only.
	AllowRelaxed bool
}

// PhoneOTPService runs the ephemeral phone OTP channel. Codes live in the
// secret store under otp:<phone> and disappear on expiry, exhaustion, or
// successful verification.
type PhoneOTPService struct {
	store secretstore.Store
	sms   notify.SMSSender
	cfg   PhoneOTPConfig
}

// NewPhoneOTPService creates the service.
func NewPhoneOTPService(store secretstore.Store, sms notify.SMSSender, cfg PhoneOTPConfig) *PhoneOTPService {
	return &PhoneOTPService{store: store, sms: sms, cfg: cfg}
}

func phoneOTPKey(phone string) string {
	return "otp:" + phone
}

// Generate stores a fresh code for the phone number and sends it by SMS.
// Requesting again before expiry replaces the old code and resets the
// attempt counter.
func (s *PhoneOTPService) Generate(ctx context.Context, phone string) error {
	code, err := generateOTPCode()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to generate OTP")
	}

	payload, err := json.Marshal(models.PhoneOTPEntry{Code: code})
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to generate OTP")
	}

	if err := s.store.Set(ctx, phoneOTPKey(phone), string(payload), s.cfg.TTL); err != nil {
		if errors.Is(err, secretstore.ErrUnavailable) && s.cfg.AllowRelaxed {
			logger.Log.WithError(err).Warn("secret store down, sending OTP without storing it")
		} else {
			return apperror.Wrap(err, apperror.ErrCodeUnavailable, "OTP service is temporarily unavailable")
		}
	}

	message := fmt.Sprintf("Your KrishiConnect verification code is %s. Valid for %d minutes. Do not share it with anyone.",
		code, int(s.cfg.TTL/time.Minute))
	if err := s.sms.Send(ctx, phone, message); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeSendFailure, "Failed to send OTP SMS")
	}
	return nil
}

// Verify checks a submitted code. A mismatch burns one attempt; hitting
// the attempt budget destroys the code. A match consumes the code, so a
// phone OTP verifies exactly once.
func (s *PhoneOTPService) Verify(ctx context.Context, phone, code string) error {
	key := phoneOTPKey(phone)

	raw, err := s.store.Get(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, secretstore.ErrNotFound):
			return apperror.New(apperror.ErrCodeNotFound, "OTP not found or expired, please request a new one")
		case errors.Is(err, secretstore.ErrUnavailable) && s.cfg.AllowRelaxed:
			if validation.ValidateOTPCode(code) == nil {
				logger.Log.WithError(err).Warn("secret store down, accepting well-formed OTP in relaxed mode")
				return nil
			}
			return apperror.New(apperror.ErrCodeInvalidCode, "Invalid OTP")
		default:
			return apperror.Wrap(err, apperror.ErrCodeUnavailable, "OTP service is temporarily unavailable")
		}
	}

	var entry models.PhoneOTPEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to verify OTP")
	}

	if entry.Attempts >= s.cfg.MaxAttempts {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			logger.Log.WithError(delErr).Warn("failed to remove exhausted phone OTP")
		}
		return apperror.New(apperror.ErrCodeTooManyAttempts, "Too many incorrect attempts, please request a new OTP")
	}

	if code != entry.Code {
		entry.Attempts++
		if payload, marshalErr := json.Marshal(entry); marshalErr == nil {
			if setErr := s.store.Set(ctx, key, string(payload), s.cfg.TTL); setErr != nil {
				logger.Log.WithError(setErr).Warn("failed to record phone OTP attempt")
			}
		}
		// The mismatch that spends the last attempt still reports the
		// mismatch; exhaustion surfaces on the next call, before compare.
		remaining := s.cfg.MaxAttempts - entry.Attempts
		if remaining < 0 {
			remaining = 0
		}
		return apperror.InvalidCode(fmt.Sprintf("Invalid OTP, %d attempts remaining", remaining), remaining)
	}

	if err := s.store.Delete(ctx, key); err != nil {
		logger.Log.WithError(err).Warn("failed to remove verified phone OTP")
	}
	return nil
}
