package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPair carries the two session tokens handed to a client.
// ExpiresIn is the access token lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenManager issues and verifies the JWTs backing sessions. Access and
// refresh tokens are signed with separate secrets; a refresh token also
// carries a type claim so the two can never be swapped.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	now func() time.Time
}

// NewTokenManager creates the manager.
func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// GeneratePair issues a fresh access/refresh pair for the user.
func (m *TokenManager) GeneratePair(userID uuid.UUID) (*TokenPair, time.Time, error) {
	accessToken, _, err := m.IssueAccessToken(userID)
	if err != nil {
		return nil, time.Time{}, err
	}

	refreshToken, refreshExp, err := m.IssueRefreshToken(userID)
	if err != nil {
		return nil, time.Time{}, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(m.accessTTL / time.Second),
	}, refreshExp, nil
}

// IssueAccessToken signs a new access token.
func (m *TokenManager) IssueAccessToken(userID uuid.UUID) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)

	claims := jwt.MapClaims{
		"sub": userID.String(),
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

// IssueRefreshToken signs a new refresh token with a unique ID.
func (m *TokenManager) IssueRefreshToken(userID uuid.UUID) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.refreshTTL)

	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"type": "refresh",
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return token, exp, nil
}

// ParseAccess verifies an access token and extracts the user ID.
func (m *TokenManager) ParseAccess(token string) (uuid.UUID, error) {
	claims, err := m.parse(token, m.accessSecret)
	if err != nil {
		return uuid.Nil, err
	}
	return subjectOf(claims)
}

// ParseRefresh verifies a refresh token, rejecting access tokens by the
// missing type claim, and extracts the user ID.
func (m *TokenManager) ParseRefresh(token string) (uuid.UUID, error) {
	claims, err := m.parse(token, m.refreshSecret)
	if err != nil {
		return uuid.Nil, err
	}

	if typ, _ := claims["type"].(string); typ != "refresh" {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}
	return subjectOf(claims)
}

// DecodeExpiry reads the exp claim without verifying the signature.
// Used for blacklist TTLs, where a forged exp only shortens the entry.
func (m *TokenManager) DecodeExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, jwt.ErrTokenInvalidClaims
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, jwt.ErrTokenInvalidClaims
	}
	return exp.Time, nil
}

func (m *TokenManager) parse(token string, secret []byte) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func subjectOf(claims jwt.MapClaims) (uuid.UUID, error) {
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse subject: %w", err)
	}
	return userID, nil
}
