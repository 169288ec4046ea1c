package record

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/authz"
	"github.com/clinic/clinic/internal/platform/db"
)

// PatientLookup resolves a patient owned by the caller.
type PatientLookup interface {
	GetOwned(ctx context.Context, caller auth.Principal, id uuid.UUID) (*patient.Patient, error)
}

// Service is the medical record ledger. A record is visible only to the
// doctor who owns its patient.
type Service struct {
	repo     Repository
	patients PatientLookup
}

func NewService(repo Repository, patients PatientLookup) *Service {
	return &Service{repo: repo, patients: patients}
}

// ListForPatient returns the records of an owned patient in the order they
// were added.
func (s *Service) ListForPatient(ctx context.Context, caller auth.Principal, patientID uuid.UUID) ([]*Record, error) {
	p, err := s.patients.GetOwned(ctx, caller, patientID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	if items == nil {
		items = []*Record{}
	}
	return items, nil
}

func (s *Service) Add(ctx context.Context, caller auth.Principal, patientID uuid.UUID, f Fields) (*Record, error) {
	p, err := s.patients.GetOwned(ctx, caller, patientID)
	if err != nil {
		return nil, err
	}

	f.normalize()
	rec := &Record{PatientID: p.ID}
	rec.overwrite(f)
	if err := s.repo.Create(ctx, rec); err != nil {
		// The patient was removed after the ownership check.
		if db.IsForeignKeyViolation(err) {
			return nil, apperr.ErrNotFoundOrUnauthorized
		}
		return nil, fmt.Errorf("create medical record: %w", err)
	}
	return rec, nil
}

// GetOwnedRecord returns the record with id when its patient belongs to
// caller. Missing and foreign records both yield ErrNotFoundOrUnauthorized.
func (s *Service) GetOwnedRecord(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Record, error) {
	if !caller.IsAuthenticated() {
		return nil, apperr.ErrUnauthenticated
	}
	rec, owner, err := s.repo.GetWithOwner(ctx, id)
	if err != nil {
		return nil, authz.Collapse(err)
	}
	if err := authz.Check(caller, owner); err != nil {
		return nil, err
	}
	return rec, nil
}

// Edit replaces all clinical fields of an owned record. Fields missing from
// f are cleared.
func (s *Service) Edit(ctx context.Context, caller auth.Principal, id uuid.UUID, f Fields) (*Record, error) {
	rec, err := s.GetOwnedRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	f.normalize()
	rec.overwrite(f)
	if err := s.repo.Update(ctx, rec, caller.ID); err != nil {
		return nil, authz.Collapse(err)
	}
	return rec, nil
}

// Delete removes an owned record and returns it.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Record, error) {
	rec, err := s.GetOwnedRecord(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, rec.ID, caller.ID); err != nil {
		return nil, authz.Collapse(err)
	}
	return rec, nil
}
