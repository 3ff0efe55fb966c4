// Package ioerr defines the error taxonomy shared by every layer of sdfat:
// the block device shim, the FAT table engine, the sector buffer, and the
// volume/file API. Every sentinel is a value implementing DriverError so
// callers can use errors.Is against a known condition while still getting a
// human-readable message and a wrapped cause when one exists.
package ioerr

import (
	"errors"
	"fmt"
)

// DriverError is the common interface implemented by every error this module
// returns. It behaves like a normal `error` but additionally supports
// chaining a more specific message or an underlying cause onto a sentinel.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	WrapError(err error) DriverError
	Unwrap() error
}

// FatError is a sentinel error value. Every FatError the package exposes is
// declared as a package-level constant in errno.go.
type FatError string

func (e FatError) Error() string {
	return string(e)
}

func (e FatError) WithMessage(message string) DriverError {
	return &customError{
		message: fmt.Sprintf("%s: %s", e.Error(), message),
		parent:  e,
	}
}

func (e FatError) WrapError(err error) DriverError {
	return &customError{
		message: fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		parent:  e,
		cause:   err,
	}
}

func (e FatError) Unwrap() error {
	return nil
}

// customError is returned by WithMessage/WrapError so that the original
// sentinel remains reachable via errors.Is/errors.As while the message seen
// by the caller carries extra context. A cause attached by WrapError is
// matched by errors.Is through the Is method; errors.As does not search it.
type customError struct {
	message string
	parent  error
	cause   error
}

func (e *customError) Is(target error) bool {
	return e.cause != nil && errors.Is(e.cause, target)
}

func (e *customError) Error() string {
	return e.message
}

func (e *customError) WithMessage(message string) DriverError {
	return &customError{
		message: fmt.Sprintf("%s: %s", e.message, message),
		parent:  e,
	}
}

func (e *customError) WrapError(err error) DriverError {
	return &customError{
		message: fmt.Sprintf("%s: %s", e.message, err.Error()),
		parent:  e,
		cause:   err,
	}
}

func (e *customError) Unwrap() error {
	return e.parent
}
