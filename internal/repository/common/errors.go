package common

import (
	"errors"

	"github.com/lib/pq"
)

// Shared sentinel errors for all repositories.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
)

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. The unique indexes on phone number and email are the only
// strong concurrency guard in the system; racing duplicate registrations
// surface here.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
