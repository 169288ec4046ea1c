// Package apperr defines the error values shared by the clinic services and
// converted to HTTP responses at the handler boundary.
package apperr

import (
	"errors"
	"sort"
	"strings"

	"github.com/hengadev/errsx"
)

var (
	ErrDuplicateUsername      = errors.New("username already taken")
	ErrInvalidCredentials     = errors.New("invalid username or password")
	ErrUnauthenticated        = errors.New("authentication required")
	ErrNotFoundOrUnauthorized = errors.New("not found or unauthorized")
	ErrValidation             = errors.New("validation failed")
)

// ValidationError carries every field violation found in one submission.
type ValidationError struct {
	fields errsx.Map
}

// Validate returns a *ValidationError when m holds at least one violation
// and nil otherwise.
func Validate(m errsx.Map) error {
	if m.IsEmpty() {
		return nil
	}
	return &ValidationError{fields: m}
}

func (e *ValidationError) Error() string {
	fields := e.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Fields returns the violations keyed by field name.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.fields))
	for k, err := range e.fields {
		if err != nil {
			out[k] = err.Error()
		}
	}
	return out
}
