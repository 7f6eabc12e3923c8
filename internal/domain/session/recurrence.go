package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// recurrenceOffsets maps a prescription frequency to the day offsets, within
// each week, that sessions land on. Three per week follows the classic
// Mon/Wed/Fri cadence relative to the anchor date.
var recurrenceOffsets = map[int][]int{
	1: {0},
	2: {0, 3},
	3: {0, 2, 4},
}

// RecurringInput creates a recurrence group anchored at StartDate and
// spanning Weeks calendar weeks.
type RecurringInput struct {
	PatientID           uuid.UUID  `json:"patient_id"`
	PrescriptionID      uuid.UUID  `json:"prescription_id"`
	SlotID              *uuid.UUID `json:"slot_id,omitempty"`
	StartDate           time.Time  `json:"start_date"`
	ScheduledStartTime  time.Time  `json:"scheduled_start_time"`
	Weeks               int        `json:"weeks"`
	PrimaryNurseID      *uuid.UUID `json:"primary_nurse_id,omitempty"`
	SupervisingDoctorID *uuid.UUID `json:"supervising_doctor_id,omitempty"`
}

// CreateRecurring expands a prescription's weekly frequency into a batch of
// scheduled sessions sharing one recurrence group. The batch is written in a
// single transaction; a failure partway leaves nothing behind.
func (s *Service) CreateRecurring(ctx context.Context, in RecurringInput) ([]*Session, error) {
	if in.PatientID == uuid.Nil {
		return nil, invalidInputf("patient_id is required")
	}
	if in.PrescriptionID == uuid.Nil {
		return nil, invalidInputf("prescription_id is required")
	}
	if in.StartDate.IsZero() {
		return nil, invalidInputf("start_date is required")
	}
	if in.ScheduledStartTime.IsZero() {
		return nil, invalidInputf("scheduled_start_time is required")
	}
	if in.Weeks < 1 {
		return nil, invalidInputf("weeks must be at least 1")
	}

	ok, err := s.patients.Exists(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("create recurring sessions: %w", ErrPatientNotFound)
	}
	rx, err := s.prescriptions.GetByID(ctx, in.PrescriptionID)
	if err != nil {
		return nil, err
	}
	if in.SlotID != nil {
		if _, err := s.slots.Get(ctx, *in.SlotID); err != nil {
			return nil, err
		}
	}

	offsets, ok := recurrenceOffsets[rx.FrequencyPerWeek]
	if !ok {
		return nil, invalidInputf("unsupported frequency_per_week %d, expected 1, 2 or 3", rx.FrequencyPerWeek)
	}

	groupID := uuid.New()
	var created []*Session
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		for week := 0; week < in.Weeks; week++ {
			for _, off := range offsets {
				date := in.StartDate.AddDate(0, 0, week*7+off)
				sess, err := s.create(ctx, CreateInput{
					PatientID:           in.PatientID,
					PrescriptionID:      in.PrescriptionID,
					SlotID:              in.SlotID,
					SessionDate:         date,
					ScheduledStartTime:  in.ScheduledStartTime,
					PrimaryNurseID:      in.PrimaryNurseID,
					SupervisingDoctorID: in.SupervisingDoctorID,
				}, true, &groupID)
				if err != nil {
					return err
				}
				created = append(created, sess)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
