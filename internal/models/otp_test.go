package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPChallengeState(t *testing.T) {
	now := time.Now()
	const maxAttempts = 3

	tests := []struct {
		name      string
		challenge OTPChallenge
		want      ChallengeState
	}{
		{
			name:      "fresh challenge is issued",
			challenge: OTPChallenge{ExpiresAt: now.Add(10 * time.Minute)},
			want:      ChallengeIssued,
		},
		{
			name:      "verified wins over expiry",
			challenge: OTPChallenge{Verified: true, ExpiresAt: now.Add(-time.Minute)},
			want:      ChallengeVerified,
		},
		{
			name:      "expired wins over exhaustion",
			challenge: OTPChallenge{ExpiresAt: now.Add(-time.Minute), Attempts: maxAttempts},
			want:      ChallengeExpired,
		},
		{
			name:      "attempts at budget is exhausted",
			challenge: OTPChallenge{ExpiresAt: now.Add(10 * time.Minute), Attempts: maxAttempts},
			want:      ChallengeExhausted,
		},
		{
			name:      "attempts below budget stays issued",
			challenge: OTPChallenge{ExpiresAt: now.Add(10 * time.Minute), Attempts: maxAttempts - 1},
			want:      ChallengeIssued,
		},
		{
			name:      "exactly at expiry instant is still live",
			challenge: OTPChallenge{ExpiresAt: now},
			want:      ChallengeIssued,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.challenge.State(now, maxAttempts))
		})
	}
}
