package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

// Service is the credential store for doctor accounts.
type Service struct {
	repo   Repository
	hasher *auth.PasswordHasher
}

func NewService(repo Repository, hasher *auth.PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// Register creates a doctor account. A taken username is reported as
// ErrDuplicateUsername ahead of any password violation.
func (s *Service) Register(ctx context.Context, in Registration) (*Doctor, error) {
	in.normalize()
	errs := in.validate()

	if checkUsername(in.Username) == "" {
		_, err := s.repo.GetByUsername(ctx, in.Username)
		switch {
		case err == nil:
			return nil, apperr.ErrDuplicateUsername
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("look up username: %w", err)
		}
	}
	if err := apperr.Validate(errs); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	d := &Doctor{Username: in.Username, PasswordHash: hash}
	if err := s.repo.Create(ctx, d); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return d, nil
}

// Verify returns the doctor whose password matches, or ErrInvalidCredentials.
// Unknown usernames cost one bcrypt comparison like a wrong password does.
func (s *Service) Verify(ctx context.Context, in Credentials) (*Doctor, error) {
	in.normalize()
	if err := apperr.Validate(in.validate()); err != nil {
		return nil, err
	}

	d, err := s.repo.GetByUsername(ctx, in.Username)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("look up username: %w", err)
		}
		s.hasher.CheckDummy(in.Password)
		return nil, apperr.ErrInvalidCredentials
	}
	if !s.hasher.Check(d.PasswordHash, in.Password) {
		return nil, apperr.ErrInvalidCredentials
	}
	return d, nil
}

// Get returns the doctor with id. Unknown ids yield ErrUnauthenticated
// since the only caller is a session whose account is gone.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrUnauthenticated
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}
