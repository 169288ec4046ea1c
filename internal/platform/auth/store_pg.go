package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

type sessionQuerier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGSessionStore keeps sessions in the doctor_sessions table.
type PGSessionStore struct {
	db sessionQuerier
}

func NewPGSessionStore(db sessionQuerier) *PGSessionStore {
	return &PGSessionStore{db: db}
}

func (s *PGSessionStore) Put(ctx context.Context, sess *Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO doctor_sessions (id, doctor_id, username, expires_at)
		VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.DoctorID, sess.Username, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PGSessionStore) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, `
		SELECT id, doctor_id, username, expires_at
		FROM doctor_sessions
		WHERE id = $1 AND expires_at > NOW()`, id,
	).Scan(&sess.ID, &sess.DoctorID, &sess.Username, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *PGSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM doctor_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry and returns how many.
func (s *PGSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM doctor_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpiredSessionSweeper is implemented by stores that need periodic cleanup.
type ExpiredSessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// RunSweeper calls DeleteExpired every interval until ctx is done.
func RunSweeper(ctx context.Context, sweeper ExpiredSessionSweeper, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.DeleteExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("removed", n).Msg("expired sessions removed")
			}
		}
	}
}
