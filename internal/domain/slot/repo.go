package slot

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, sl *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	Update(ctx context.Context, sl *Slot) error
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Slot, int, error)
}
