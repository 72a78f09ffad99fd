package entitle

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("entitle: not found")
	ErrInvalidInput = errors.New("entitle: invalid input")

	// Lookup errors
	ErrUserNotFound = errors.New("entitle: user not found")
	ErrJobNotFound  = errors.New("entitle: job not found")

	// Webhook verification errors. These map to a 400-class rejection: the
	// provider must not retry the same input.
	ErrMissingSignature = errors.New("entitle: missing webhook signature")
	ErrInvalidSignature = errors.New("entitle: invalid webhook signature")

	// Idempotency errors. The duplicate check fails closed: a broken store
	// must not be mistaken for "no duplicate".
	ErrDuplicateCheckFailed = errors.New("entitle: duplicate check failed")

	// Rate limiting. Denial itself is normal control flow; this sentinel is
	// returned by the engine's export path so HTTP handlers can map it to 429.
	ErrRateLimited = errors.New("entitle: rate limit exceeded")

	// Claims store errors
	ErrClaimsUnavailable = errors.New("entitle: claims store unavailable")

	// Store errors
	ErrStoreNotReady     = errors.New("entitle: store not ready")
	ErrStoreClosed       = errors.New("entitle: store is closed")
	ErrMigrationFailed   = errors.New("entitle: migration failed")
	ErrTransactionFailed = errors.New("entitle: transaction failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("entitle: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrJobNotFound)
}

// IsVerificationError returns true if the error is a webhook signature
// failure. Verification errors are never retryable by re-delivering the
// same payload.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrInvalidSignature)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrClaimsUnavailable)
}
