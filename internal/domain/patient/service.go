package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/authz"
)

// Service is the patient registry. Every operation is scoped to the calling
// doctor's own patients.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Add(ctx context.Context, caller auth.Principal, in Input) (*Patient, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.ErrUnauthenticated
	}
	in.normalize()
	birth, errs := in.validate(s.now())
	if err := apperr.Validate(errs); err != nil {
		return nil, err
	}

	p := &Patient{DoctorID: caller.ID}
	p.apply(in, birth)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

// List returns the caller's patients in the order they were added.
func (s *Service) List(ctx context.Context, caller auth.Principal) ([]*Patient, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.ErrUnauthenticated
	}
	items, err := s.repo.ListByDoctor(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return items, nil
}

// GetOwned returns the patient with id when caller owns it. Missing and
// foreign patients both yield ErrNotFoundOrUnauthorized.
func (s *Service) GetOwned(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Patient, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.ErrUnauthenticated
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, authz.Collapse(err)
	}
	if err := authz.Check(caller, p.DoctorID); err != nil {
		return nil, err
	}
	return p, nil
}

// Edit overwrites the demographic fields of an owned patient.
func (s *Service) Edit(ctx context.Context, caller auth.Principal, id uuid.UUID, in Input) (*Patient, error) {
	p, err := s.GetOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	in.normalize()
	birth, errs := in.validate(s.now())
	if err := apperr.Validate(errs); err != nil {
		return nil, err
	}

	p.apply(in, birth)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, authz.Collapse(err)
	}
	return p, nil
}

// Delete removes an owned patient together with its medical records.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id uuid.UUID) error {
	p, err := s.GetOwned(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, p.ID, p.DoctorID); err != nil {
		return authz.Collapse(err)
	}
	return nil
}
