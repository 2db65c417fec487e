// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates a missing or invalid caller identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated caller without the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput indicates a malformed request or a missing required field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a duplicate id or another uniqueness collision.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indicates the storage backend cannot be reached.
	ErrUnavailable = errors.New("unavailable")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)

// Derived sentinels; errors.Is matches both the derived and the base value.
var (
	ErrDuplicateID     = fmt.Errorf("%w: duplicate id", ErrConflict)
	ErrShareCodeTaken  = fmt.Errorf("%w: share code taken", ErrConflict)
	ErrInvalidPassword = fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
)

// One-time code outcomes.
var (
	ErrNoPendingCode   = fmt.Errorf("%w: no verification pending", ErrInvalidInput)
	ErrCodeExpired     = fmt.Errorf("%w: code expired", ErrInvalidInput)
	ErrInvalidCode     = fmt.Errorf("%w: invalid code", ErrInvalidInput)
	ErrTooManyAttempts = fmt.Errorf("%w: too many attempts", ErrRateLimited)
	ErrNameTaken       = fmt.Errorf("%w: username already taken", ErrConflict)
)
