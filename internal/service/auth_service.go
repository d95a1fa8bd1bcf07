package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krishiconnect/backend/internal/logger"
	"github.com/krishiconnect/backend/internal/models"
	"github.com/krishiconnect/backend/internal/pkg/apperror"
	"github.com/krishiconnect/backend/internal/repository"
	"github.com/krishiconnect/backend/internal/secretstore"
)

// Registration channels.
const (
	ChannelPhone = "phone"
	ChannelEmail = "email"
)

// ForgotPasswordMessage is returned for every forgot-password request so
// the response never reveals whether the email is registered.
const ForgotPasswordMessage = "If this email is registered, you will receive an OTP"

// userStore is the slice of the user repository the auth service uses.
type userStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByPhone(ctx context.Context, phoneNumber string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIdentifier(ctx context.Context, phoneNumber, email string) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	UpdateLastLoginAt(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	AddRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	RemoveRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	HasRefreshToken(ctx context.Context, userID uuid.UUID, token string) (bool, error)
}

// emailOTPEngine is the durable email OTP channel.
type emailOTPEngine interface {
	GenerateAndSend(ctx context.Context, userID uuid.UUID, email, purpose, displayName string) (uuid.UUID, time.Duration, error)
	Verify(ctx context.Context, otpID uuid.UUID, code string) (*EmailOTPVerification, error)
	Resend(ctx context.Context, otpID uuid.UUID) (time.Duration, error)
	Invalidate(ctx context.Context, otpID uuid.UUID) error
}

// phoneOTPEngine is the ephemeral phone OTP channel.
type phoneOTPEngine interface {
	Generate(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) error
}

// AuthService drives registration, login, and the session lifecycle.
type AuthService struct {
	users    userStore
	emailOTP emailOTPEngine
	phoneOTP phoneOTPEngine
	tokens   *TokenManager
	store    secretstore.Store
	codec    *PasswordCodec

	pendingTTL time.Duration
	now        func() time.Time
}

// NewAuthService creates the service.
func NewAuthService(users userStore, emailOTP emailOTPEngine, phoneOTP phoneOTPEngine,
	tokens *TokenManager, store secretstore.Store, codec *PasswordCodec, pendingTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		emailOTP:   emailOTP,
		phoneOTP:   phoneOTP,
		tokens:     tokens,
		store:      store,
		codec:      codec,
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

// RegisterInput is the payload of a registration request. Email is
// optional; when present the email channel is used, otherwise the phone
// channel.
type RegisterInput struct {
	PhoneNumber string
	Email       string
	Password    string
	Name        string
	Location    models.Location
}

// RegisterResult describes the verification step the client must take next.
type RegisterResult struct {
	Channel     string        `json:"channel"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	OTPID       *uuid.UUID    `json:"otp_id,omitempty"`
	ExpiresIn   time.Duration `json:"expires_in,omitempty"`
}

// AuthResult is a verified user together with a fresh session.
type AuthResult struct {
	User   *models.User `json:"user"`
	Tokens *TokenPair   `json:"tokens"`
}

// ForgotPasswordResult is the uniform forgot-password envelope. OTPID is
// set only when a challenge was actually issued; the message never varies.
type ForgotPasswordResult struct {
	Message   string        `json:"message"`
	OTPID     *uuid.UUID    `json:"otp_id,omitempty"`
	ExpiresIn time.Duration `json:"expires_in,omitempty"`
}

func pendingRegistrationKey(phone string) string {
	return "temp:user:" + phone
}

func blacklistKey(token string) string {
	return "blacklist:" + token
}

// Register starts a registration on one of the two channels.
//
// Email channel: the user row is created immediately (unverified) and an
// OTP is emailed. If the email cannot be sent the row is deleted again,
// so a failed registration leaves no trace.
//
// Phone channel: nothing is persisted. The hashed payload is parked in
// the secret store under temp:user:<phone> until the OTP is confirmed.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if _, err := s.users.GetByPhone(ctx, in.PhoneNumber); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "User with this phone number already exists")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Registration failed")
	}

	if email != "" {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return nil, apperror.New(apperror.ErrCodeConflict, "User with this email already exists")
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Registration failed")
		}
	}

	passwordHash, err := s.codec.Hash(in.Password)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Registration failed")
	}

	if email != "" {
		return s.registerWithEmail(ctx, in, email, passwordHash)
	}
	return s.registerWithPhone(ctx, in, passwordHash)
}

func (s *AuthService) registerWithEmail(ctx context.Context, in RegisterInput, email, passwordHash string) (*RegisterResult, error) {
	user := &models.User{
		PhoneNumber:  in.PhoneNumber,
		Email:        &email,
		PasswordHash: passwordHash,
		Name:         in.Name,
		Location:     in.Location,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, apperror.New(apperror.ErrCodeConflict, "User with this phone number or email already exists")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Registration failed")
	}

	otpID, expiresIn, err := s.emailOTP.GenerateAndSend(ctx, user.ID, email, models.OTPPurposeRegistration, in.Name)
	if err != nil {
		// The account must not exist until its email is proven reachable.
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			logger.Log.WithError(delErr).WithField("user_id", user.ID).
				Error("failed to remove user after registration email failure")
		}
		return nil, err
	}

	return &RegisterResult{Channel: ChannelEmail, OTPID: &otpID, ExpiresIn: expiresIn}, nil
}

func (s *AuthService) registerWithPhone(ctx context.Context, in RegisterInput, passwordHash string) (*RegisterResult, error) {
	if err := s.phoneOTP.Generate(ctx, in.PhoneNumber); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(models.PendingRegistration{
		PasswordHash: passwordHash,
		Name:         in.Name,
		Location:     in.Location,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Registration failed")
	}

	if err := s.store.Set(ctx, pendingRegistrationKey(in.PhoneNumber), string(payload), s.pendingTTL); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeUnavailable, "Registration is temporarily unavailable")
	}

	return &RegisterResult{Channel: ChannelPhone, PhoneNumber: in.PhoneNumber}, nil
}

// CompleteRegistration finishes a phone-channel registration: the OTP is
// verified, the parked payload becomes a real user row, and a session is
// issued.
func (s *AuthService) CompleteRegistration(ctx context.Context, phone, code string) (*AuthResult, error) {
	if err := s.phoneOTP.Verify(ctx, phone, code); err != nil {
		return nil, err
	}

	key := pendingRegistrationKey(phone)
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, secretstore.ErrNotFound) {
			return nil, apperror.New(apperror.ErrCodeSessionExpired, "Registration session expired, please register again")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeUnavailable, "Registration is temporarily unavailable")
	}

	var pending models.PendingRegistration
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Registration failed")
	}

	user := &models.User{
		PhoneNumber:        phone,
		PasswordHash:       pending.PasswordHash,
		Name:               pending.Name,
		Location:           pending.Location,
		VerificationStatus: models.VerificationStatusVerified,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, apperror.New(apperror.ErrCodeConflict, "User with this phone number already exists")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Registration failed")
	}

	if err := s.store.Delete(ctx, key); err != nil {
		logger.Log.WithError(err).Warn("failed to remove pending registration payload")
	}

	return s.issueSession(ctx, user)
}

// CompleteRegistrationWithEmail finishes an email-channel registration:
// the challenge is verified and consumed, the account's email is marked
// verified, and a session is issued.
func (s *AuthService) CompleteRegistrationWithEmail(ctx context.Context, otpID uuid.UUID, code string) (*AuthResult, error) {
	proof, err := s.emailOTP.Verify(ctx, otpID, code)
	if err != nil {
		return nil, err
	}
	if proof.Purpose != models.OTPPurposeRegistration {
		return nil, apperror.New(apperror.ErrCodeForbidden, "OTP was issued for a different operation")
	}

	if err := s.users.MarkEmailVerified(ctx, proof.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "User not found")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Verification failed")
	}

	if err := s.emailOTP.Invalidate(ctx, otpID); err != nil {
		logger.Log.WithError(err).WithField("otp_id", otpID).Warn("failed to invalidate consumed OTP")
	}

	user, err := s.users.GetByID(ctx, proof.UserID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Verification failed")
	}

	return s.issueSession(ctx, user)
}

// Login authenticates by phone number or email plus password. A missing
// account and a wrong password produce the same error, so a caller cannot
// probe which identifiers exist.
func (s *AuthService) Login(ctx context.Context, phone, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByIdentifier(ctx, phone, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.New(apperror.ErrCodeInvalidCredentials, "Invalid credentials")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Login failed")
	}

	if !s.codec.Verify(password, user.PasswordHash) {
		return nil, apperror.New(apperror.ErrCodeInvalidCredentials, "Invalid credentials")
	}

	if user.IsBanned {
		return nil, apperror.New(apperror.ErrCodeForbidden, "Account is suspended")
	}
	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "Account is deactivated")
	}

	if err := s.users.UpdateLastLoginAt(ctx, user.ID); err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Warn("failed to stamp last login")
	}

	return s.issueSession(ctx, user)
}

// RefreshAccessToken exchanges a live refresh token for a new access
// token. The refresh token itself is not rotated. A token that was
// blacklisted by logout, or that is no longer in the user's active list,
// is rejected.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, time.Duration, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", 0, apperror.New(apperror.ErrCodeInvalidToken, "Invalid or expired refresh token")
	}

	if _, err := s.store.Get(ctx, blacklistKey(refreshToken)); err == nil {
		return "", 0, apperror.New(apperror.ErrCodeInvalidToken, "Invalid or expired refresh token")
	} else if errors.Is(err, secretstore.ErrUnavailable) {
		// Fail open on the blacklist; the active-list check below still
		// rejects tokens removed by logout.
		logger.Log.WithError(err).Warn("blacklist unavailable during token refresh")
	}

	live, err := s.users.HasRefreshToken(ctx, userID, refreshToken)
	if err != nil {
		return "", 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Token refresh failed")
	}
	if !live {
		return "", 0, apperror.New(apperror.ErrCodeInvalidToken, "Invalid or expired refresh token")
	}

	accessToken, exp, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return "", 0, apperror.Wrap(err, apperror.ErrCodeInternal, "Token refresh failed")
	}
	return accessToken, exp.Sub(s.now()), nil
}

// Logout revokes a refresh token: it is blacklisted for its remaining
// lifetime and removed from the user's active list. Both steps tolerate
// repeats, so logging out twice succeeds.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	if exp, err := s.tokens.DecodeExpiry(refreshToken); err == nil {
		if ttl := exp.Sub(s.now()); ttl > 0 {
			if err := s.store.Set(ctx, blacklistKey(refreshToken), "1", ttl); err != nil {
				logger.Log.WithError(err).Warn("failed to blacklist refresh token on logout")
			}
		}
	}

	if err := s.users.RemoveRefreshToken(ctx, userID, refreshToken); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "Logout failed")
	}
	return nil
}

// ForgotPassword starts a password reset. The returned message is the
// same whether or not the email is registered; only delivery failures for
// a real account surface as errors.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &ForgotPasswordResult{Message: ForgotPasswordMessage}, nil
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Password reset failed")
	}

	otpID, expiresIn, err := s.emailOTP.GenerateAndSend(ctx, user.ID, email, models.OTPPurposePasswordReset, user.Name)
	if err != nil {
		return nil, err
	}

	return &ForgotPasswordResult{
		Message:   ForgotPasswordMessage,
		OTPID:     &otpID,
		ExpiresIn: expiresIn,
	}, nil
}

// ResetPasswordWithOTP completes a password reset: the challenge is
// verified and consumed and the new password replaces the old one.
func (s *AuthService) ResetPasswordWithOTP(ctx context.Context, otpID uuid.UUID, code, newPassword string) error {
	proof, err := s.emailOTP.Verify(ctx, otpID, code)
	if err != nil {
		return err
	}
	if proof.Purpose != models.OTPPurposePasswordReset {
		return apperror.New(apperror.ErrCodeForbidden, "OTP was issued for a different operation")
	}

	passwordHash, err := s.codec.Hash(newPassword)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "Password reset failed")
	}

	if err := s.users.UpdatePassword(ctx, proof.UserID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.New(apperror.ErrCodeNotFound, "User not found")
		}
		return apperror.Wrap(err, apperror.ErrCodeInternal, "Password reset failed")
	}

	if err := s.emailOTP.Invalidate(ctx, otpID); err != nil {
		logger.Log.WithError(err).WithField("otp_id", otpID).Warn("failed to invalidate consumed OTP")
	}
	return nil
}

// ResendEmailOTP re-delivers the code of an outstanding email challenge.
func (s *AuthService) ResendEmailOTP(ctx context.Context, otpID uuid.UUID) (time.Duration, error) {
	return s.emailOTP.Resend(ctx, otpID)
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	pair, refreshExp, err := s.tokens.GeneratePair(user.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to issue session")
	}

	if err := s.users.AddRefreshToken(ctx, user.ID, pair.RefreshToken, refreshExp); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "Failed to issue session")
	}

	return &AuthResult{User: user, Tokens: pair}, nil
}
