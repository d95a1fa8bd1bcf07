package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation constants
const (
	MinPasswordLength = 6
	MaxNameLength     = 100
	OTPCodeLength     = 6
	MaxLocationPart   = 100
)

var (
	phoneRegex  = regexp.MustCompile(`^[6-9]\d{9}$`)
	otpRegex    = regexp.MustCompile(`^\d{6}$`)
	localRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	domainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidatePhoneNumber checks for a 10-digit Indian mobile number.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone number is required")
	}

	phone = strings.TrimSpace(phone)

	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid Indian phone number")
	}

	return nil
}

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("invalid email format")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("email local part must be between 1 and 64 characters")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("email domain must be between 1 and 255 characters")
	}

	if !localRegex.MatchString(localPart) {
		return fmt.Errorf("email local part contains invalid characters")
	}

	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("email domain has an invalid format")
	}

	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// ValidateOTPCode checks that the code is exactly six digits.
func ValidateOTPCode(code string) error {
	if code == "" {
		return fmt.Errorf("OTP code is required")
	}

	if !otpRegex.MatchString(code) {
		return fmt.Errorf("OTP must be a 6-digit code")
	}

	return nil
}

// ValidateName checks the display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name must be at most %d characters", MaxNameLength)
	}

	return nil
}

// ValidateNonEmpty checks that the value has content.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}
