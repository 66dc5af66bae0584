// Package apperr defines the request-scoped error taxonomy shared by the
// domain services and translated to HTTP statuses at the handler boundary.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a field that fails its declared domain: an empty
	// code after digit extraction, a choice outside its vocabulary, an
	// unparsable date.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateCode marks a create colliding with a live record's
	// business code.
	ErrDuplicateCode = errors.New("duplicate code")

	// ErrCodeNotFound marks an update targeting a code with no live record.
	ErrCodeNotFound = errors.New("code not found")

	// ErrReferencedEntityMissing marks a dangling cross-record reference.
	ErrReferencedEntityMissing = errors.New("referenced entity missing")

	// ErrNotFound marks a lookup by key that matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrInUse marks a delete refused because other records still
	// reference the target.
	ErrInUse = errors.New("entity in use")

	// ErrForbidden marks an operation the caller's account may not perform.
	ErrForbidden = errors.New("forbidden")
)

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is a missing-record error of either kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCodeNotFound)
}
