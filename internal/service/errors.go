package service

import (
	"errors"
	"fmt"

	"fitshare/fitness-api/internal/apperr"
	"fitshare/fitness-api/internal/repository"
)

// --- Error Definitions ---
// Every error returned by a service matches exactly one of these kinds via
// errors.Is; the message after the kind is meant for clients.
var (
	ErrUnauthenticated = apperr.ErrUnauthenticated
	ErrForbidden       = apperr.ErrForbidden
	ErrNotFound        = apperr.ErrNotFound
	ErrConflict        = apperr.ErrConflict
	ErrValidation      = apperr.ErrValidation
	ErrUnexpected      = apperr.ErrUnexpected
)

func notFound(what string) error {
	return fmt.Errorf("%w: %s not found", ErrNotFound, what)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}

// repoErr translates repository errors reaching a service unhandled.
// Everything that is not already a kind becomes ErrUnexpected.
func repoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	}
	for _, kind := range []error{ErrUnauthenticated, ErrForbidden, ErrNotFound, ErrConflict, ErrValidation, ErrUnexpected} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrUnexpected, err)
}
