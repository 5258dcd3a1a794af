package tagstore

import (
	"errors"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates a referenced entity does not exist in the store.
// Surfaced directly to the caller; retrying will not help.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates an operation would violate a store invariant, such
// as deleting a formula that templates still reference or anchoring a tag
// to both a subgroup and a parent.
var ErrConflict = errors.New("conflict")

// IsNotFound returns true if the error means "entity does not exist",
// whether it originated from this package or as a raw redis.Nil.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, redis.Nil)
}

// IsConflict returns true if the error is an invariant violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
