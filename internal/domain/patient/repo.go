package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores patients. Writes are scoped to the owning doctor and
// return pgx.ErrNoRows when no owned row matches.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Patient, error)
	Update(ctx context.Context, p *Patient) error
	// Delete removes the patient and its medical records together.
	Delete(ctx context.Context, id, doctorID uuid.UUID) error
}
