package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrUnauthorized = errors.New("unauthorized")
)

// FetchError is a failed read against the data store. Callers keep whatever state they already had.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.Op, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// WriteError is a failed create, update or delete against the data store.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Op, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Fetch wraps err as a FetchError. A nil err stays nil.
func Fetch(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Op: op, Err: err}
}

// Write wraps err as a WriteError. A nil err stays nil.
func Write(op string, err error) error {
	if err == nil {
		return nil
	}
	return &WriteError{Op: op, Err: err}
}

// IsFetch reports whether err carries a FetchError.
func IsFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsWrite reports whether err carries a WriteError.
func IsWrite(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// PermissionState is the approval state of a user account. Pending is not an error:
// clients are expected to redirect to a waiting page.
type PermissionState string

const (
	Approved PermissionState = "approved"
	Pending  PermissionState = "pending"
	Denied   PermissionState = "denied"
)
