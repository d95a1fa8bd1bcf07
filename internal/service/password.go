package service

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the work factor used for both passwords and email
// OTP codes.
const bcryptCost = 10

// PasswordCodec hashes and verifies secrets with bcrypt.
type PasswordCodec struct{}

// NewPasswordCodec creates the codec.
func NewPasswordCodec() *PasswordCodec {
	return &PasswordCodec{}
}

// Hash derives a bcrypt digest from the plaintext.
func (PasswordCodec) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether the plaintext matches the digest.
func (PasswordCodec) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
