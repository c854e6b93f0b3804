// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers. Services wrap them with a
// human-readable detail, e.g. fmt.Errorf("%w: CPF already registered", ErrConflict).
var (
	// ErrNotFound indicates the requested entity does not exist (or, for
	// patients, is inactive where an active one is required).
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (expected version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrConflict indicates a unique constraint violation (CPF, username, doctor time slot).
	ErrConflict = errors.New("conflict")

	// ErrForbidden indicates the principal's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrBlocked indicates an unmet business precondition.
	ErrBlocked = errors.New("blocked")

	// ErrInvalid indicates input that fails a domain rule.
	ErrInvalid = errors.New("invalid")

	// ErrUnauthorized indicates failed authentication or a missing/invalid/expired token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
