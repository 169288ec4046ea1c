package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
)

// ErrSessionNotFound is returned by a SessionStore for unknown or expired ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record behind a session token.
type Session struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) Principal() Principal {
	return Principal{ID: s.DoctorID, Username: s.Username}
}

// SessionStore persists live sessions. Get must return ErrSessionNotFound
// for sessions that are missing or past ExpiresAt.
type SessionStore interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// IssuedSession is the result of a successful login.
type IssuedSession struct {
	Session *Session
	Token   string
}

// SessionAuthority binds authenticated doctors to signed session tokens.
// A session is live from Login until Logout or expiry.
type SessionAuthority struct {
	store  SessionStore
	signer *TokenSigner
	ttl    time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

func NewSessionAuthority(store SessionStore, signer *TokenSigner, ttl time.Duration, logger zerolog.Logger) *SessionAuthority {
	return &SessionAuthority{
		store:  store,
		signer: signer,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Login opens a new session for p and returns its signed token.
func (a *SessionAuthority) Login(ctx context.Context, p Principal) (*IssuedSession, error) {
	if !p.IsAuthenticated() {
		return nil, apperr.ErrUnauthenticated
	}

	now := a.now()
	s := &Session{
		ID:        uuid.New(),
		DoctorID:  p.ID,
		Username:  p.Username,
		ExpiresAt: now.Add(a.ttl).Truncate(time.Second),
	}
	if err := a.store.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	token, err := a.signer.Sign(s, now)
	if err != nil {
		_ = a.store.Delete(ctx, s.ID)
		return nil, err
	}

	a.logger.Info().Str("doctor_id", p.ID.String()).Str("session_id", s.ID.String()).Msg("session opened")
	return &IssuedSession{Session: s, Token: token}, nil
}

// Logout ends the session. Ending an unknown session is not an error.
func (a *SessionAuthority) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return nil
	}
	if err := a.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	a.logger.Info().Str("session_id", sessionID.String()).Msg("session closed")
	return nil
}

// Resolve verifies token and returns its live session. Every failure,
// including a session that was logged out, is ErrUnauthenticated.
func (a *SessionAuthority) Resolve(ctx context.Context, token string) (*Session, error) {
	sessionID, doctorID, err := a.signer.Parse(token)
	if err != nil {
		return nil, apperr.ErrUnauthenticated
	}

	s, err := a.store.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			a.logger.Error().Err(err).Msg("session lookup failed")
		}
		return nil, apperr.ErrUnauthenticated
	}
	if s.DoctorID != doctorID || !a.now().Before(s.ExpiresAt) {
		return nil, apperr.ErrUnauthenticated
	}
	return s, nil
}
