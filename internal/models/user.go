package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Verification statuses of a user account.
const (
	VerificationStatusUnverified = "unverified"
	VerificationStatusVerified   = "verified"
	VerificationStatusSuspended  = "suspended"
)

// User describes a platform account. The phone number is immutable after
// creation; the email, when present, is globally unique and stored
// lowercase. The password hash is write-only and never serialized.
type User struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PhoneNumber          string     `db:"phone_number" json:"phone_number"`
	Email                *string    `db:"email" json:"email,omitempty"`
	PasswordHash         string     `db:"password_hash" json:"-"`
	Name                 string     `db:"name" json:"name"`
	Location             Location   `db:"location" json:"location"`
	VerificationStatus   string     `db:"verification_status" json:"verification_status"`
	EmailVerified        bool       `db:"email_verified" json:"email_verified"`
	IsBanned             bool       `db:"is_banned" json:"is_banned"`
	IsActive             bool       `db:"is_active" json:"is_active"`
	LastLoginAt          *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	LastPasswordChangeAt *time.Time `db:"last_password_change_at" json:"last_password_change_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Location is the farmer's administrative location, stored as JSONB.
type Location struct {
	State    string `json:"state,omitempty"`
	District string `json:"district,omitempty"`
	Village  string `json:"village,omitempty"`
}

func (l Location) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *Location) Scan(src interface{}) error {
	if src == nil {
		*l = Location{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("location: cannot scan %T", src)
	}
}

// RefreshToken is one entry of a user's active refresh-token list.
type RefreshToken struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PendingRegistration holds the not-yet-persisted user fields while phone
// OTP confirmation is outstanding. Lives only in the secret store; the
// password is already hashed by the time it gets here.
type PendingRegistration struct {
	PasswordHash string   `json:"password_hash"`
	Name         string   `json:"name"`
	Location     Location `json:"location"`
}
