// Package marketdata defines the error taxonomy shared by every resolution tier.
package marketdata

import (
	"errors"

	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidInput marks malformed or out-of-range caller arguments.
	// It is validated once at the resolver entry and never retried.
	ErrInvalidInput = eris.New("invalid input")

	// ErrProviderUnavailable marks a provider that is unhealthy or whose
	// operations failed. It is absorbed by the orchestrator, never surfaced
	// to callers directly.
	ErrProviderUnavailable = eris.New("provider unavailable")

	// ErrUnsupported marks an operation a provider does not implement.
	// Treated identically to ErrProviderUnavailable for fallthrough.
	ErrUnsupported = eris.New("operation not supported")

	// ErrPersistence marks a durable-store read or write failure. Reads
	// fall through to the next tier; write-back failures are swallowed.
	ErrPersistence = eris.New("persistence failure")

	// ErrNoData marks a time-series query for which no tier produced data.
	ErrNoData = eris.New("no data available")
)

// InvalidInputf builds an ErrInvalidInput with a formatted detail message.
func InvalidInputf(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidInput, format, args...)
}

// IsInvalidInput reports whether err is a caller-input error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnsupported reports whether err marks an unimplemented provider operation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}
