package record

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores medical records. Lookups of unknown records return
// pgx.ErrNoRows.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error)
	// GetWithOwner returns the record and the id of the doctor who owns its
	// patient.
	GetWithOwner(ctx context.Context, id uuid.UUID) (*Record, uuid.UUID, error)
	// Update and Delete only touch records whose patient belongs to doctorID.
	Update(ctx context.Context, r *Record, doctorID uuid.UUID) error
	Delete(ctx context.Context, id, doctorID uuid.UUID) error
}
