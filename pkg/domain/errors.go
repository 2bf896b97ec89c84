package domain

import (
	"errors"
	"fmt"
)

// ErrStateNotFound is returned by an explicit reload when the store holds no
// record yet.
var ErrStateNotFound = errors.New("replacement state not found")

// ErrEmptyProductName rejects blank product names on mutating calls.
var ErrEmptyProductName = errors.New("product name must not be empty")

// MalformedStateError reports a persisted record that cannot be trusted:
// missing fields, length mismatches, unknown versions or broken parent links.
type MalformedStateError struct {
	Reason string
	Err    error
}

func (e *MalformedStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed replacement state: %s: %v", e.Reason, e.Err)
	}
	return "malformed replacement state: " + e.Reason
}

func (e *MalformedStateError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return &MalformedStateError{Reason: fmt.Sprintf(format, args...)}
}

// PersistError wraps a storage failure raised while loading or saving state.
type PersistError struct {
	Op     string // load | save
	Driver StorageDriver
	Err    error
}

func (e *PersistError) Error() string {
	if e.Driver != "" {
		return fmt.Sprintf("%s state (%s): %v", e.Op, e.Driver, e.Err)
	}
	return fmt.Sprintf("%s state: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
