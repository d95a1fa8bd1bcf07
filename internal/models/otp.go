package models

import (
	"time"

	"github.com/google/uuid"
)

// OTP purposes for the email channel.
const (
	OTPPurposeRegistration  = "registration"
	OTPPurposePasswordReset = "password_reset"
)

// ChallengeState is the explicit state of an email OTP challenge, computed
// from the stored fields at read time.
type ChallengeState int

const (
	ChallengeIssued ChallengeState = iota
	ChallengeVerified
	ChallengeExpired
	ChallengeExhausted
)

// OTPChallenge is a durable email OTP record. Only the bcrypt hash of the
// code is ever stored. Once verified the challenge is terminal and must be
// deleted by the caller after consumption.
type OTPChallenge struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	CodeHash  string    `db:"code_hash" json:"-"`
	Purpose   string    `db:"purpose" json:"purpose"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Verified  bool      `db:"is_verified" json:"is_verified"`
	Attempts  int       `db:"verification_attempts" json:"verification_attempts"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// State computes the challenge state. Check order matters: a verified
// challenge reports Verified even after its expiry has passed, and an
// expired challenge reports Expired before attempt exhaustion is
// considered.
func (c *OTPChallenge) State(now time.Time, maxAttempts int) ChallengeState {
	switch {
	case c.Verified:
		return ChallengeVerified
	case now.After(c.ExpiresAt):
		return ChallengeExpired
	case c.Attempts >= maxAttempts:
		return ChallengeExhausted
	default:
		return ChallengeIssued
	}
}

// PhoneOTPEntry is the ephemeral secret-store payload for the phone
// channel, keyed by phone number.
type PhoneOTPEntry struct {
	Code     string `json:"otp"`
	Attempts int    `json:"attempts"`
}
