package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/krishiconnect/backend/internal/models"
	"github.com/krishiconnect/backend/internal/notify"
	"github.com/krishiconnect/backend/internal/pkg/apperror"
	"github.com/krishiconnect/backend/internal/repository"
	"github.com/krishiconnect/backend/internal/secretstore"
)

// mockChallengeRepo implements otpChallengeRepo over a map.
type mockChallengeRepo struct {
	challenges map[uuid.UUID]*models.OTPChallenge
}

func newMockChallengeRepo() *mockChallengeRepo {
	return &mockChallengeRepo{challenges: make(map[uuid.UUID]*models.OTPChallenge)}
}

func (m *mockChallengeRepo) Create(ctx context.Context, c *models.OTPChallenge) error {
	c.ID = uuid.New()
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	copied := *c
	m.challenges[c.ID] = &copied
	return nil
}

func (m *mockChallengeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.OTPChallenge, error) {
	if c, ok := m.challenges[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, repository.ErrOTPNotFound
}

func (m *mockChallengeRepo) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	c, ok := m.challenges[id]
	if !ok {
		return 0, repository.ErrOTPNotFound
	}
	c.Attempts++
	return c.Attempts, nil
}

func (m *mockChallengeRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	c, ok := m.challenges[id]
	if !ok {
		return repository.ErrOTPNotFound
	}
	c.Verified = true
	c.Attempts++
	return nil
}

func (m *mockChallengeRepo) ResetForResend(ctx context.Context, id uuid.UUID, codeHash string, expiresAt time.Time) error {
	c, ok := m.challenges[id]
	if !ok {
		return repository.ErrOTPNotFound
	}
	c.CodeHash = codeHash
	c.ExpiresAt = expiresAt
	c.Attempts = 0
	return nil
}

func (m *mockChallengeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.challenges, id)
	return nil
}

// mockUserLookup implements otpUserLookup.
type mockUserLookup struct {
	users map[uuid.UUID]*models.User
}

func (m *mockUserLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

// mockOnceSender records sends and can be told to fail.
type mockOnceSender struct {
	sent    []string // text bodies
	failErr error
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func (m *mockOnceSender) SendOnce(ctx context.Context, to, subject, htmlBody, textBody,
	eventType, identifier string, window time.Duration) error {
	if m.failErr != nil {
		return m.failErr
	}
	m.sent = append(m.sent, textBody)
	return nil
}

// lastCode extracts the 6-digit code from the most recent message.
func (m *mockOnceSender) lastCode(t *testing.T) string {
	t.Helper()
	if len(m.sent) == 0 {
		t.Fatalf("no email was sent")
	}
	code := codePattern.FindString(m.sent[len(m.sent)-1])
	if code == "" {
		t.Fatalf("no code found in message body")
	}
	return code
}

func newTestEmailOTPService(repo *mockChallengeRepo, users *mockUserLookup, sender *mockOnceSender) *EmailOTPService {
	if users == nil {
		users = &mockUserLookup{users: make(map[uuid.UUID]*models.User)}
	}
	return NewEmailOTPService(repo, users, sender, NewPasswordCodec(), EmailOTPConfig{
		TTL:               10 * time.Minute,
		MaxAttempts:       3,
		ResendWindow:      30 * time.Minute,
		DedupWindow:       5 * time.Minute,
		ResendDedupWindow: 2 * time.Minute,
	})
}

func TestEmailOTPService_GenerateAndVerify(t *testing.T) {
	repo := newMockChallengeRepo()
	sender := &mockOnceSender{}
	svc := newTestEmailOTPService(repo, nil, sender)
	ctx := context.Background()

	userID := uuid.New()
	otpID, expiresIn, err := svc.GenerateAndSend(ctx, userID, "farmer@example.com", models.OTPPurposeRegistration, "Ravi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if expiresIn != 10*time.Minute {
		t.Fatalf("expected TTL 10m, got %v", expiresIn)
	}

	proof, err := svc.Verify(ctx, otpID, sender.lastCode(t))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if proof.UserID != userID || proof.Email != "farmer@example.com" || proof.Purpose != models.OTPPurposeRegistration {
		t.Fatalf("unexpected proof: %+v", proof)
	}

	// A verified challenge cannot be verified again.
	if _, err := svc.Verify(ctx, otpID, sender.lastCode(t)); !apperror.Is(err, apperror.ErrCodeAlreadyUsed) {
		t.Fatalf("expected ALREADY_USED, got %v", err)
	}
}

func TestEmailOTPService_RollbackOnSendFailure(t *testing.T) {
	repo := newMockChallengeRepo()
	sender := &mockOnceSender{failErr: apperror.New(apperror.ErrCodeSendFailure, "Failed to send email")}
	svc := newTestEmailOTPService(repo, nil, sender)

	_, _, err := svc.GenerateAndSend(context.Background(), uuid.New(), "farmer@example.com", models.OTPPurposeRegistration, "Ravi")
	if !apperror.Is(err, apperror.ErrCodeSendFailure) {
		t.Fatalf("expected SEND_FAILURE, got %v", err)
	}
	if len(repo.challenges) != 0 {
		t.Fatalf("challenge must be removed after delivery failure, %d left", len(repo.challenges))
	}
}

func TestEmailOTPService_AttemptBudget(t *testing.T) {
	repo := newMockChallengeRepo()
	sender := &mockOnceSender{}
	svc := newTestEmailOTPService(repo, nil, sender)
	ctx := context.Background()

	otpID, _, err := svc.GenerateAndSend(ctx, uuid.New(), "farmer@example.com", models.OTPPurposeRegistration, "Ravi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	wrong := "000000"
	if sender.lastCode(t) == wrong {
		wrong = "000001"
	}

	// Every mismatch reports the mismatch, including the one that spends
	// the last attempt.
	for i, wantRemaining := range []int{2, 1, 0} {
		_, err := svc.Verify(ctx, otpID, wrong)
		appErr := apperror.From(err)
		if appErr.Code != apperror.ErrCodeInvalidCode {
			t.Fatalf("attempt %d: expected INVALID_CODE, got %v", i+1, err)
		}
		if appErr.AttemptsRemaining == nil || *appErr.AttemptsRemaining != wantRemaining {
			t.Fatalf("attempt %d: expected %d attempts remaining", i+1, wantRemaining)
		}
	}

	// The first attempt past the budget is the first TOO_MANY_ATTEMPTS.
	if _, err := svc.Verify(ctx, otpID, wrong); !apperror.Is(err, apperror.ErrCodeTooManyAttempts) {
		t.Fatalf("expected TOO_MANY_ATTEMPTS, got %v", err)
	}

	// Even the right code is refused once the budget is spent.
	if _, err := svc.Verify(ctx, otpID, sender.lastCode(t)); !apperror.Is(err, apperror.ErrCodeTooManyAttempts) {
		t.Fatalf("expected TOO_MANY_ATTEMPTS after exhaustion, got %v", err)
	}
}

func TestEmailOTPService_Expiry(t *testing.T) {
	repo := newMockChallengeRepo()
	sender := &mockOnceSender{}
	svc := newTestEmailOTPService(repo, nil, sender)
	ctx := context.Background()

	otpID, _, err := svc.GenerateAndSend(ctx, uuid.New(), "farmer@example.com", models.OTPPurposePasswordReset, "Ravi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	if _, err := svc.Verify(ctx, otpID, sender.lastCode(t)); !apperror.Is(err, apperror.ErrCodeExpired) {
		t.Fatalf("expected EXPIRED, got %v", err)
	}
}

func TestEmailOTPService_Resend(t *testing.T) {
	repo := newMockChallengeRepo()
	userID := uuid.New()
	users := &mockUserLookup{users: map[uuid.UUID]*models.User{
		userID: {ID: userID, Name: "Ravi"},
	}}
	sender := &mockOnceSender{}
	svc := newTestEmailOTPService(repo, users, sender)
	ctx := context.Background()

	otpID, _, err := svc.GenerateAndSend(ctx, userID, "farmer@example.com", models.OTPPurposeRegistration, "Ravi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	firstCode := sender.lastCode(t)

	// Burn one attempt, then resend. The counter resets and the new code wins.
	wrong := "000000"
	if firstCode == wrong {
		wrong = "000001"
	}
	if _, err := svc.Verify(ctx, otpID, wrong); err == nil {
		t.Fatalf("wrong code must fail")
	}

	if _, err := svc.Resend(ctx, otpID); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if repo.challenges[otpID].Attempts != 0 {
		t.Fatalf("resend must reset the attempt counter")
	}

	if _, err := svc.Verify(ctx, otpID, sender.lastCode(t)); err != nil {
		t.Fatalf("verify after resend: %v", err)
	}
}

// recordingEmailSender counts raw deliveries behind the dedup wrapper.
type recordingEmailSender struct {
	sent int
}

func (s *recordingEmailSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	s.sent++
	return nil
}

// markerStore is a map-backed marker store for dedup integration tests.
type markerStore struct {
	entries map[string]string
}

func (s *markerStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.entries[key]; ok {
		return v, nil
	}
	return "", secretstore.ErrNotFound
}

func (s *markerStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.entries[key] = value
	return nil
}

func (s *markerStore) Delete(ctx context.Context, key string) error {
	delete(s.entries, key)
	return nil
}

func TestEmailOTPService_ResendNotThrottledByInitialSend(t *testing.T) {
	repo := newMockChallengeRepo()
	emailSender := &recordingEmailSender{}
	store := &markerStore{entries: make(map[string]string)}
	svc := newTestEmailOTPService(repo, nil, nil)
	svc.sender = notify.NewDedupSender(emailSender, store)
	ctx := context.Background()

	otpID, _, err := svc.GenerateAndSend(ctx, uuid.New(), "farmer@example.com", models.OTPPurposeRegistration, "Ravi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// The initial-send marker is still live; the resend event is keyed
	// apart from it and must go through.
	if _, err := svc.Resend(ctx, otpID); err != nil {
		t.Fatalf("resend right after the initial send: %v", err)
	}
	if emailSender.sent != 2 {
		t.Fatalf("expected two deliveries, got %d", emailSender.sent)
	}

	// A second immediate resend collides with the resend marker.
	if _, err := svc.Resend(ctx, otpID); !apperror.Is(err, apperror.ErrCodeThrottled) {
		t.Fatalf("expected THROTTLED on back-to-back resend, got %v", err)
	}
	if emailSender.sent != 2 {
		t.Fatalf("throttled resend must not deliver, got %d", emailSender.sent)
	}
}

func TestEmailOTPService_ResendWindowClosed(t *testing.T) {
	repo := newMockChallengeRepo()
	sender := &mockOnceSender{}
	svc := newTestEmailOTPService(repo, nil, sender)
	ctx := context.Background()

	otpID, _, err := svc.GenerateAndSend(ctx, uuid.New(), "farmer@example.com", models.OTPPurposeRegistration, "Ravi")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(31 * time.Minute) }
	if _, err := svc.Resend(ctx, otpID); !apperror.Is(err, apperror.ErrCodeExpired) {
		t.Fatalf("expected EXPIRED outside the resend window, got %v", err)
	}
}

func TestEmailOTPService_UnknownChallenge(t *testing.T) {
	svc := newTestEmailOTPService(newMockChallengeRepo(), nil, &mockOnceSender{})

	_, err := svc.Verify(context.Background(), uuid.New(), "123456")
	if !apperror.Is(err, apperror.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
