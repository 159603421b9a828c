// Package brainerr defines the typed error taxonomy the Brain uses to
// classify phase and job failures. Executors and the Brain communicate
// failure reasons through these categories rather than ad-hoc exceptions.
package brainerr

import (
	"errors"
	"fmt"
)

// Category is one of the taxonomy members from the error handling design.
type Category string

const (
	SetupError        Category = "SETUP_ERROR"
	ValidationError    Category = "VALIDATION_ERROR"
	RemoteError        Category = "REMOTE_ERROR"
	ActivityTimeout    Category = "ACTIVITY_TIMEOUT"
	TransientError     Category = "TRANSIENT_ERROR"
	Cancelled          Category = "CANCELLED"
	InternalError      Category = "INTERNAL_ERROR"
)

// Error wraps an underlying error with a taxonomy category.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a categorized error with a message only.
func New(cat Category, msg string) *Error {
	return &Error{Category: cat, Message: msg}
}

// Wrap builds a categorized error around an existing error.
func Wrap(cat Category, msg string, err error) *Error {
	return &Error{Category: cat, Message: msg, Err: err}
}

// CategoryOf extracts the category of err if it (or something it wraps) is a
// *Error; otherwise returns INTERNAL_ERROR, matching the spec's treatment of
// unexpected exceptions inside the Brain.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Category
	}
	return InternalError
}

// IsCancelled reports whether err represents cooperative cancellation.
func IsCancelled(err error) bool {
	return CategoryOf(err) == Cancelled
}

// Setupf, Validationf, Remotef, Transientf are convenience constructors
// mirroring fmt.Errorf for the most commonly raised categories.
func Setupf(format string, args ...any) *Error {
	return &Error{Category: SetupError, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Category: ValidationError, Message: fmt.Sprintf(format, args...)}
}

func Remotef(err error, format string, args ...any) *Error {
	return &Error{Category: RemoteError, Message: fmt.Sprintf(format, args...), Err: err}
}

func Transientf(err error, format string, args ...any) *Error {
	return &Error{Category: TransientError, Message: fmt.Sprintf(format, args...), Err: err}
}

func CancelledErr(msg string) *Error {
	return &Error{Category: Cancelled, Message: msg}
}

func Internalf(err error, format string, args ...any) *Error {
	return &Error{Category: InternalError, Message: fmt.Sprintf(format, args...), Err: err}
}
