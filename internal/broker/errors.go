// Package broker implements the topic/queue/message state machine: fan-out
// publish, visibility-timeout leasing, delivery-count enforcement, and
// dead-queue redrive, on top of the durable store.
package broker

import (
	"errors"
	"fmt"
)

// Error kinds form the taxonomy the API facade maps to HTTP status codes.
// Callers should use errors.Is against these sentinels, not type assertions.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid")
	ErrConflict      = errors.New("conflict")
)

type classifiedError struct {
	kind error
	msg  string
}

func (e *classifiedError) Error() string { return e.msg }

func (e *classifiedError) Unwrap() error { return e.kind }

func notFoundf(format string, args ...any) error {
	return &classifiedError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

func alreadyExistsf(format string, args ...any) error {
	return &classifiedError{kind: ErrAlreadyExists, msg: fmt.Sprintf(format, args...)}
}

func invalidf(format string, args ...any) error {
	return &classifiedError{kind: ErrInvalid, msg: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err (or its chain) is a NOT_FOUND error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyExists reports whether err (or its chain) is an ALREADY_EXISTS error.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsInvalid reports whether err (or its chain) is an INVALID error.
func IsInvalid(err error) bool { return errors.Is(err, ErrInvalid) }

// IsConflict reports whether err (or its chain) is a CONFLICT error.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
