package support

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the caller has no admin session or the session
	// does not map to a known user.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the addressed chat does not exist.
	ErrNotFound = errors.New("chat not found")
	// ErrInvalidArgument covers empty visitor tokens, empty text and
	// malformed cursors.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrBackingStore wraps connectivity and transaction failures.
	ErrBackingStore = errors.New("backing store failure")
)

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackingStore, err)
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}
