package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown is an error the service cannot recover from; the API stops once it has answered.
type shutdown struct {
	message string
	err     error
}

func NewShutdownError(err error, msg string) error {
	return &shutdown{message: msg, err: err}
}

func (s *shutdown) Error() string {
	if s.err == nil {
		return s.message
	}
	return s.message + ": " + s.err.Error()
}

func (s *shutdown) Unwrap() error { return s.err }

func IsShutdown(err error) bool {
	var s *shutdown
	return errors.As(err, &s)
}
