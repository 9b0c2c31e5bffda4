// Package shared holds sentinel errors used on both sides of the sync
// protocol.
package shared

import "errors"

var (
	// common errors
	ErrNotFound = errors.New("not found")

	// auth errors
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrForbidden     = errors.New("forbidden")
	ErrNoAccountID   = errors.New("no account id")
	ErrInvalidHeader = errors.New("invalid auth header format")

	// transport errors
	ErrUnavailable = errors.New("server unavailable")
	ErrRateLimited = errors.New("rate limited")

	// sync engine errors
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrSyncDisabled   = errors.New("sync is disabled")

	// quota / image errors
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrHashMismatch  = errors.New("content hash mismatch")
	ErrImageTooLarge = errors.New("image exceeds size limit")
)
