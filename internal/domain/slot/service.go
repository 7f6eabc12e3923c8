package slot

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a slot is absent from the caller's
// organization scope.
var ErrNotFound = errors.New("slot not found")

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type Service struct {
	slots Repository
}

func NewService(slots Repository) *Service {
	return &Service{slots: slots}
}

func validate(sl *Slot) error {
	if sl.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !timeOfDayPattern.MatchString(sl.StartTime) {
		return fmt.Errorf("start_time must be HH:MM, got %q", sl.StartTime)
	}
	if !timeOfDayPattern.MatchString(sl.EndTime) {
		return fmt.Errorf("end_time must be HH:MM, got %q", sl.EndTime)
	}
	if sl.EndTime <= sl.StartTime {
		return fmt.Errorf("end_time must be after start_time")
	}
	if len(sl.DaysOfWeek) == 0 {
		return fmt.Errorf("days_of_week is required")
	}
	seen := make(map[int16]bool, len(sl.DaysOfWeek))
	for _, d := range sl.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("days_of_week values must be 0-6, got %d", d)
		}
		if seen[d] {
			return fmt.Errorf("duplicate day of week: %d", d)
		}
		seen[d] = true
	}
	if sl.MaxPatients < 1 {
		return fmt.Errorf("max_patients must be at least 1")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, sl *Slot) error {
	if err := validate(sl); err != nil {
		return err
	}
	return s.slots.Create(ctx, sl)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return s.slots.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, sl *Slot) error {
	if err := validate(sl); err != nil {
		return err
	}
	if _, err := s.slots.GetByID(ctx, sl.ID); err != nil {
		return err
	}
	return s.slots.Update(ctx, sl)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Slot, int, error) {
	return s.slots.List(ctx, activeOnly, limit, offset)
}
