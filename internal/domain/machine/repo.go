package machine

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Machine) error
	GetByID(ctx context.Context, id uuid.UUID) (*Machine, error)
	List(ctx context.Context, limit, offset int) ([]*Machine, int, error)
	ListAvailable(ctx context.Context, isolationOnly bool) ([]*Machine, error)
	Update(ctx context.Context, m *Machine) error

	// Bind flips available -> in_use as a single conditional update and
	// reports whether a row changed. A false result means the machine was
	// taken (or left the available state) since it was last observed.
	Bind(ctx context.Context, id uuid.UUID) (bool, error)

	// Release flips the machine back to available.
	Release(ctx context.Context, id uuid.UUID) error

	// SetStatus moves a machine between available and the maintenance
	// states, guarded so an in_use machine cannot be moved.
	SetStatus(ctx context.Context, id uuid.UUID, status string) (bool, error)

	// AddUsage credits completed treatment time: hours is added to
	// total_hours and total_sessions is incremented by one.
	AddUsage(ctx context.Context, id uuid.UUID, hours float64) error
}
