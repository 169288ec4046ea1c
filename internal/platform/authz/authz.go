// Package authz holds the ownership rule applied to every patient and
// medical record operation. A resource that does not exist and a resource
// owned by another doctor are indistinguishable to the caller.
package authz

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// ErrNotFoundOrUnauthorized is the single error for missing and foreign
// resources.
var ErrNotFoundOrUnauthorized = apperr.ErrNotFoundOrUnauthorized

// Check allows caller to act on a resource owned by ownerID.
func Check(caller auth.Principal, ownerID uuid.UUID) error {
	if !caller.IsAuthenticated() {
		return apperr.ErrUnauthenticated
	}
	if ownerID == uuid.Nil || caller.ID != ownerID {
		return ErrNotFoundOrUnauthorized
	}
	return nil
}

// Collapse maps a missing-row error to ErrNotFoundOrUnauthorized and returns
// every other error unchanged.
func Collapse(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFoundOrUnauthorized
	}
	return err
}
