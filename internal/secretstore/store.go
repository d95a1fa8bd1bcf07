// Package secretstore provides the TTL-capable key/value store used for
// phone OTP codes, pending registrations, refresh-token blacklisting, and
// email dedup markers. Callers see one interface regardless of whether a
// networked cache or the in-process fallback backs it.
package secretstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the key does not exist or has expired.
	ErrNotFound = errors.New("secretstore: key not found")

	// ErrUnavailable means the backing store could not be reached. Callers
	// decide per operation whether to degrade or fail.
	ErrUnavailable = errors.New("secretstore: store unavailable")
)

// Store is a TTL key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
