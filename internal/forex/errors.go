package forex

import (
	"errors"
	"fmt"

	"github.com/seenimoa/fxvault/pkg/money"
)

// ErrRateUnavailable marks a conversion against a structurally valid snapshot
// that has no usable rate for one of the two currencies. The stored sentinel
// for "no rate" is a zero value, so the check only fires when the input
// amount was non-zero.
var ErrRateUnavailable = errors.New("rate not available")

// InputError is a client-facing error: bad request parameters that should be
// surfaced verbatim and never retried.
type InputError struct {
	msg string
}

// NewInputError builds an InputError with the given message.
func NewInputError(msg string) *InputError { return &InputError{msg: msg} }

func (e *InputError) Error() string { return e.msg }

// StorageError wraps a failure inside the persistence layer: missing files,
// JSON decode failures, permission problems. Single-record operations treat
// these as non-retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// ProviderError wraps an upstream failure: network errors or malformed
// provider responses. Poll operations capture these into error snapshots
// instead of propagating them.
type ProviderError struct {
	Source string
	Err    error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("provider %s: %v", e.Source, e.Err) }

func (e *ProviderError) Unwrap() error { return e.Err }

// IsInputError reports whether err is a client input error from this package
// or a money parse error. The HTTP layer maps these to 400 responses.
func IsInputError(err error) bool {
	var inputErr *InputError
	var parseErr *money.ParseError
	return errors.As(err, &inputErr) || errors.As(err, &parseErr)
}
