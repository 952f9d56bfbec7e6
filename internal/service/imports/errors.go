package imports

import (
	"errors"
	"fmt"
)

// Sentinel errors for the imports service layer.
var (
	ErrImportNotFound = errors.New("import not found")
	ErrInvalidInput   = errors.New("invalid input")
)

// InputError names the request field that failed validation.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap makes errors.Is(err, ErrInvalidInput) hold for every InputError.
func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError is a storage or queue failure. The caller may retry the
// whole request; nothing in this package retries.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }
