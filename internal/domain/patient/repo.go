package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read-only view of the patient registry this core needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
