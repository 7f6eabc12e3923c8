package machine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a machine is absent from the caller's
	// organization scope.
	ErrNotFound = errors.New("machine not found")

	// ErrUnavailable is returned when a conditional bind affected no rows:
	// the machine left the available state between query and bind. Callers
	// recover by re-querying the available pool.
	ErrUnavailable = errors.New("machine unavailable")

	// ErrIsolationMismatch is returned when an isolation-only machine is
	// offered to a non-isolation patient or vice versa.
	ErrIsolationMismatch = errors.New("machine isolation does not match patient requirement")
)

type Service struct {
	machines Repository
}

func NewService(machines Repository) *Service {
	return &Service{machines: machines}
}

func (s *Service) Create(ctx context.Context, m *Machine) error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.Status == "" {
		m.Status = StatusAvailable
	}
	if !ValidStatus(m.Status) {
		return fmt.Errorf("invalid machine status: %s", m.Status)
	}
	return s.machines.Create(ctx, m)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Machine, error) {
	return s.machines.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Machine, int, error) {
	return s.machines.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, m *Machine) error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := s.machines.GetByID(ctx, m.ID); err != nil {
		return err
	}
	return s.machines.Update(ctx, m)
}

// GetAvailable returns the machines a patient may be started on. The
// isolation and general pools are disjoint: isolation machines serve only
// isolation-requiring patients and vice versa.
func (s *Service) GetAvailable(ctx context.Context, requiresIsolation bool) ([]*Machine, error) {
	return s.machines.ListAvailable(ctx, requiresIsolation)
}

// Bind claims a machine for a starting session. The underlying update only
// succeeds from the available state, closing the check-then-act window
// between GetAvailable and Bind.
func (s *Service) Bind(ctx context.Context, id uuid.UUID) error {
	ok, err := s.machines.Bind(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.machines.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrUnavailable
	}
	return nil
}

// Release returns a machine to the available pool.
func (s *Service) Release(ctx context.Context, id uuid.UUID) error {
	return s.machines.Release(ctx, id)
}

// ApplyUsage credits a completed session against the machine's counters:
// total_hours grows by the session duration rounded to one decimal hour,
// total_sessions by one. Never called on cancellation.
func (s *Service) ApplyUsage(ctx context.Context, id uuid.UUID, durationMinutes int) error {
	hours := math.Round(float64(durationMinutes)/60*10) / 10
	return s.machines.AddUsage(ctx, id, hours)
}

// SetStatus is the entry point for the external maintenance workflow. It
// refuses to move a machine that is currently held by a session.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !ValidStatus(status) || status == StatusInUse {
		return fmt.Errorf("invalid target status: %s", status)
	}
	ok, err := s.machines.SetStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.machines.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrUnavailable
	}
	return nil
}
