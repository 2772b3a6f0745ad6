// Package common defines shared constants and sentinel errors used across
// VaultShare components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Access control.
	ErrPermissionDenied = errors.New("permission denied")

	// File storage errors.
	ErrQuotaExceeded    = errors.New("storage quota exceeded")
	ErrDecryptionFailed = errors.New("decryption failed")

	// Key generation. Returned when the system random source fails;
	// there is deliberately no weaker fallback.
	ErrEntropyUnavailable = errors.New("entropy source unavailable")

	// Sharing / recipient resolution.
	ErrRecipientNotFound = errors.New("recipient not found")

	// Token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
