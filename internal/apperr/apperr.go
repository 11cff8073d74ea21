// Package apperr defines the error kinds shared by every layer. Callers wrap
// a kind with context (fmt.Errorf("%w: ...", apperr.ErrForbidden)) and the
// HTTP boundary maps kinds to status codes with errors.Is.
package apperr

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation error")
	ErrUnexpected      = errors.New("unexpected error")
)

// Message strips the kind prefix from a wrapped error so the text is safe
// to show to clients ("forbidden: limit reached" -> "limit reached").
func Message(err error) string {
	msg := err.Error()
	for _, kind := range []error{ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrConflict, ErrValidation, ErrUnexpected} {
		prefix := kind.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
