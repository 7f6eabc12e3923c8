package prescription

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read-only view of the prescription registry this core needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
}
