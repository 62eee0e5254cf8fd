package domain

import (
	"errors"
	"fmt"
)

// Ledger error taxonomy. Every operation in the core returns one of these
// (possibly wrapped); callers classify with errors.Is.
var (
	ErrInvalidFormat       = errors.New("invalid amount format")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrNoAccountConfigured = errors.New("no account configured")
	ErrAccountNotFound     = errors.New("account not found")
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrIndexOutOfRange     = errors.New("position out of range")
	ErrStorageFailure      = errors.New("storage failure")

	// ErrSelectionExpired is returned when a pending account selection is
	// unknown or past its deadline. The user has to send the transaction again.
	ErrSelectionExpired = errors.New("account selection expired")
)

// ErrTransportAuthInvalid means the chat transport rejected our credentials.
// It is the only error that terminates the process.
var ErrTransportAuthInvalid = errors.New("transport authentication invalid")

// StorageError wraps a driver error so that it matches both
// ErrStorageFailure and the original cause.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// IsUserError reports whether err is part of the taxonomy that is safe to
// explain to the user verbatim.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrInvalidFormat,
		ErrInvalidAmount,
		ErrNoAccountConfigured,
		ErrAccountNotFound,
		ErrDuplicateAccount,
		ErrIndexOutOfRange,
		ErrSelectionExpired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
