package validation

import (
	"strings"
	"testing"
)

func TestValidatePhoneNumber(t *testing.T) {
	valid := []string{"9876543210", "6123456789", "7000000000", "8999999999"}
	for _, phone := range valid {
		if err := ValidatePhoneNumber(phone); err != nil {
			t.Errorf("ValidatePhoneNumber(%q) = %v, want nil", phone, err)
		}
	}

	invalid := []string{"", "1234567890", "5876543210", "987654321", "98765432100", "98765abc10", "+919876543210"}
	for _, phone := range invalid {
		if err := ValidatePhoneNumber(phone); err == nil {
			t.Errorf("ValidatePhoneNumber(%q) = nil, want error", phone)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	valid := []string{"farmer@example.com", "Ravi.Kumar+tag@Example.co.in", "a@b.io"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q) = %v, want nil", email, err)
		}
	}

	invalid := []string{"", "no-at-sign", "two@@example.com", "@example.com", "user@", "user@nodot"}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("ValidateEmail(%q) = nil, want error", email)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("secret"); err != nil {
		t.Errorf("six characters must pass: %v", err)
	}
	if err := ValidatePassword("short"); err == nil {
		t.Errorf("five characters must fail")
	}
}

func TestValidateOTPCode(t *testing.T) {
	if err := ValidateOTPCode("123456"); err != nil {
		t.Errorf("ValidateOTPCode(123456) = %v, want nil", err)
	}
	for _, code := range []string{"", "12345", "1234567", "12345a", "12 456"} {
		if err := ValidateOTPCode(code); err == nil {
			t.Errorf("ValidateOTPCode(%q) = nil, want error", code)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Ravi Kumar"); err != nil {
		t.Errorf("ValidateName = %v, want nil", err)
	}
	if err := ValidateName("   "); err == nil {
		t.Errorf("blank name must fail")
	}
	if err := ValidateName(strings.Repeat("x", MaxNameLength+1)); err == nil {
		t.Errorf("overlong name must fail")
	}
}
