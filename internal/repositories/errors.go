package repositories

import (
	"errors"
	"fmt"
)

func asRepositoryError(err error, target *RepositoryError) bool {
	return err != nil && errors.As(err, target)
}

type errorKind int

const (
	kindNotFound errorKind = iota + 1
	kindConflict
	kindUnavailable
)

// Error is a RepositoryError for backends without their own error classification.
type Error struct {
	Op   string
	Kind errorKind
	Err  error
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kindNotFound, Err: fmt.Errorf(format, args...)}
}

// NewConflictError reports a write that conflicts with existing data.
func NewConflictError(op, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kindConflict, Err: fmt.Errorf(format, args...)}
}

// NewUnavailableError reports a backend that cannot serve the request right now.
func NewUnavailableError(op string, err error) *Error {
	return &Error{Op: op, Kind: kindUnavailable, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsNotFound() bool    { return e.Kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e.Kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e.Kind == kindUnavailable }
