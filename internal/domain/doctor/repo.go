package doctor

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores doctor accounts. Lookups of unknown doctors return
// pgx.ErrNoRows.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUsername(ctx context.Context, username string) (*Doctor, error)
}
