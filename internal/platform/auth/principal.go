package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	sessionIDKey contextKey = "session_id"
)

// Principal identifies the doctor making a request. The zero value is the
// anonymous caller.
type Principal struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

func (p Principal) IsAuthenticated() bool {
	return p.ID != uuid.Nil
}

// WithPrincipal returns a copy of ctx carrying p and the session it came from.
func WithPrincipal(ctx context.Context, p Principal, sessionID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// PrincipalFromContext returns the caller bound to ctx, or the anonymous
// principal.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey).(Principal)
	return p
}

// SessionIDFromContext returns the id of the session that authenticated the
// request, or uuid.Nil.
func SessionIDFromContext(ctx context.Context) uuid.UUID {
	sid, _ := ctx.Value(sessionIDKey).(uuid.UUID)
	return sid
}

// UserIDFromContext returns the caller's id as a string, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	p := PrincipalFromContext(ctx)
	if !p.IsAuthenticated() {
		return ""
	}
	return p.ID.String()
}

// RequireAuthenticated returns the caller bound to ctx or ErrUnauthenticated.
func RequireAuthenticated(ctx context.Context) (Principal, error) {
	p := PrincipalFromContext(ctx)
	if !p.IsAuthenticated() {
		return Principal{}, apperr.ErrUnauthenticated
	}
	return p, nil
}
