package domain

import "errors"

// Error kinds. Service errors wrap one of these so transports can map them
// without knowing every sentinel.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewError returns an error with its own message that matches kind under errors.Is.
func NewError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}
