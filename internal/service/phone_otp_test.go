package service

import (
	"context"
	"testing"
	"time"

	"github.com/krishiconnect/backend/internal/pkg/apperror"
	"github.com/krishiconnect/backend/internal/secretstore"
)

// mockSMSSender records sent messages.
type mockSMSSender struct {
	messages map[string]string // phone -> last message
}

func newMockSMSSender() *mockSMSSender {
	return &mockSMSSender{messages: make(map[string]string)}
}

func (m *mockSMSSender) Send(ctx context.Context, phone, message string) error {
	m.messages[phone] = message
	return nil
}

func (m *mockSMSSender) lastCode(t *testing.T, phone string) string {
	t.Helper()
	code := codePattern.FindString(m.messages[phone])
	if code == "" {
		t.Fatalf("no code in SMS to %s", phone)
	}
	return code
}

// downStore always reports the backing store as unreachable.
type downStore struct{}

func (downStore) Get(ctx context.Context, key string) (string, error) {
	return "", secretstore.ErrUnavailable
}
func (downStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return secretstore.ErrUnavailable
}
func (downStore) Delete(ctx context.Context, key string) error {
	return secretstore.ErrUnavailable
}

func newTestPhoneOTPService(store secretstore.Store, sms *mockSMSSender, relaxed bool) *PhoneOTPService {
	return NewPhoneOTPService(store, sms, PhoneOTPConfig{
		TTL:          10 * time.Minute,
		MaxAttempts:  3,
		AllowRelaxed: relaxed,
	})
}

func TestPhoneOTPService_VerifyConsumesCode(t *testing.T) {
	sms := newMockSMSSender()
	svc := newTestPhoneOTPService(secretstore.NewMemoryStore(), sms, false)
	ctx := context.Background()

	const phone = "9876543210"
	if err := svc.Generate(ctx, phone); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := svc.Verify(ctx, phone, sms.lastCode(t, phone)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// The code is single use.
	if err := svc.Verify(ctx, phone, sms.lastCode(t, phone)); !apperror.Is(err, apperror.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND on second verify, got %v", err)
	}
}

func TestPhoneOTPService_AttemptBudget(t *testing.T) {
	sms := newMockSMSSender()
	svc := newTestPhoneOTPService(secretstore.NewMemoryStore(), sms, false)
	ctx := context.Background()

	const phone = "9876543210"
	if err := svc.Generate(ctx, phone); err != nil {
		t.Fatalf("generate: %v", err)
	}

	wrong := "000000"
	if sms.lastCode(t, phone) == wrong {
		wrong = "000001"
	}

	// Every mismatch reports the mismatch, including the one that spends
	// the last attempt.
	for i, wantRemaining := range []int{2, 1, 0} {
		err := svc.Verify(ctx, phone, wrong)
		appErr := apperror.From(err)
		if appErr.Code != apperror.ErrCodeInvalidCode {
			t.Fatalf("attempt %d: expected INVALID_CODE, got %v", i+1, err)
		}
		if appErr.AttemptsRemaining == nil || *appErr.AttemptsRemaining != wantRemaining {
			t.Fatalf("attempt %d: expected %d attempts remaining", i+1, wantRemaining)
		}
	}

	// The first attempt past the budget is the first TOO_MANY_ATTEMPTS,
	// and it destroys the code.
	if err := svc.Verify(ctx, phone, wrong); !apperror.Is(err, apperror.ErrCodeTooManyAttempts) {
		t.Fatalf("expected TOO_MANY_ATTEMPTS, got %v", err)
	}
	if err := svc.Verify(ctx, phone, sms.lastCode(t, phone)); !apperror.Is(err, apperror.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND after exhaustion, got %v", err)
	}
}

func TestPhoneOTPService_RegenerateResetsBudget(t *testing.T) {
	sms := newMockSMSSender()
	svc := newTestPhoneOTPService(secretstore.NewMemoryStore(), sms, false)
	ctx := context.Background()

	const phone = "9876543210"
	if err := svc.Generate(ctx, phone); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := svc.Verify(ctx, phone, "999999"); err == nil {
		t.Fatalf("wrong code must fail")
	}

	if err := svc.Generate(ctx, phone); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if err := svc.Verify(ctx, phone, sms.lastCode(t, phone)); err != nil {
		t.Fatalf("verify after regenerate: %v", err)
	}
}

func TestPhoneOTPService_RelaxedModeWhenStoreDown(t *testing.T) {
	sms := newMockSMSSender()
	svc := newTestPhoneOTPService(downStore{}, sms, true)
	ctx := context.Background()

	const phone = "9876543210"
	if err := svc.Generate(ctx, phone); err != nil {
		t.Fatalf("relaxed generate must still send: %v", err)
	}

	if err := svc.Verify(ctx, phone, "123456"); err != nil {
		t.Fatalf("relaxed mode accepts any well-formed code: %v", err)
	}
	if err := svc.Verify(ctx, phone, "12x456"); !apperror.Is(err, apperror.ErrCodeInvalidCode) {
		t.Fatalf("malformed code must be rejected even in relaxed mode, got %v", err)
	}
}

func TestPhoneOTPService_StrictModeWhenStoreDown(t *testing.T) {
	sms := newMockSMSSender()
	svc := newTestPhoneOTPService(downStore{}, sms, false)
	ctx := context.Background()

	const phone = "9876543210"
	if err := svc.Generate(ctx, phone); !apperror.Is(err, apperror.ErrCodeUnavailable) {
		t.Fatalf("expected UNAVAILABLE on generate, got %v", err)
	}
	if err := svc.Verify(ctx, phone, "123456"); !apperror.Is(err, apperror.ErrCodeUnavailable) {
		t.Fatalf("expected UNAVAILABLE on verify, got %v", err)
	}
}
