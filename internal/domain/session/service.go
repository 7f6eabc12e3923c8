package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/renalflow/renalflow/internal/domain/machine"
	"github.com/renalflow/renalflow/internal/platform/db"
)

type Service struct {
	sessions      Repository
	log           ClinicalLogRepository
	machines      MachinePool
	patients      PatientRegistry
	prescriptions PrescriptionRegistry
	slots         SlotDirectory
	tx            db.TxRunner
	now           func() time.Time
}

func NewService(
	sessions Repository,
	log ClinicalLogRepository,
	machines MachinePool,
	patients PatientRegistry,
	prescriptions PrescriptionRegistry,
	slots SlotDirectory,
	tx db.TxRunner,
) *Service {
	return &Service{
		sessions:      sessions,
		log:           log,
		machines:      machines,
		patients:      patients,
		prescriptions: prescriptions,
		slots:         slots,
		tx:            tx,
		now:           time.Now,
	}
}

// SetClock overrides the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateInput carries the caller-supplied fields for a new session.
type CreateInput struct {
	PatientID           uuid.UUID  `json:"patient_id"`
	PrescriptionID      uuid.UUID  `json:"prescription_id"`
	SlotID              *uuid.UUID `json:"slot_id,omitempty"`
	SessionDate         time.Time  `json:"session_date"`
	ScheduledStartTime  time.Time  `json:"scheduled_start_time"`
	PrimaryNurseID      *uuid.UUID `json:"primary_nurse_id,omitempty"`
	SupervisingDoctorID *uuid.UUID `json:"supervising_doctor_id,omitempty"`
}

// Create validates the patient and prescription references, allocates a
// sequential session number and persists a scheduled session.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Session, error) {
	if in.PatientID == uuid.Nil {
		return nil, invalidInputf("patient_id is required")
	}
	if in.PrescriptionID == uuid.Nil {
		return nil, invalidInputf("prescription_id is required")
	}
	if in.SessionDate.IsZero() {
		return nil, invalidInputf("session_date is required")
	}
	if in.ScheduledStartTime.IsZero() {
		return nil, invalidInputf("scheduled_start_time is required")
	}

	ok, err := s.patients.Exists(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("create session: %w", ErrPatientNotFound)
	}
	if _, err := s.prescriptions.GetByID(ctx, in.PrescriptionID); err != nil {
		return nil, err
	}
	if in.SlotID != nil {
		if _, err := s.slots.Get(ctx, *in.SlotID); err != nil {
			return nil, err
		}
	}

	return s.create(ctx, in, false, nil)
}

// create persists one session row. Recurrence metadata comes from the
// recurrence generator; direct creates pass isRecurring=false.
func (s *Service) create(ctx context.Context, in CreateInput, isRecurring bool, groupID *uuid.UUID) (*Session, error) {
	year := in.SessionDate.Year()
	seq, err := s.sessions.NextSequence(ctx, year)
	if err != nil {
		return nil, fmt.Errorf("allocate session number: %w", err)
	}

	sess := &Session{
		SessionNumber:       fmt.Sprintf("SES-%d-%06d", year, seq),
		PatientID:           in.PatientID,
		PrescriptionID:      in.PrescriptionID,
		SlotID:              in.SlotID,
		Status:              StatusScheduled,
		SessionDate:         in.SessionDate,
		ScheduledStartTime:  in.ScheduledStartTime,
		IsRecurring:         isRecurring,
		RecurrenceGroupID:   groupID,
		PrimaryNurseID:      in.PrimaryNurseID,
		SupervisingDoctorID: in.SupervisingDoctorID,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// CheckIn moves scheduled -> checked_in.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Session, error) {
	ok, err := s.sessions.MarkCheckedIn(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionFailure(ctx, id, "check in")
	}
	return s.sessions.GetByID(ctx, id)
}

// Start moves checked_in -> in_progress, stamping the actual start time. If a
// machine is supplied it is claimed in the same transaction, so a failed bind
// leaves the session untouched.
func (s *Service) Start(ctx context.Context, id uuid.UUID, machineID *uuid.UUID) (*Session, error) {
	var out *Session
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sess, err := s.sessions.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if machineID != nil {
			m, err := s.machines.Get(ctx, *machineID)
			if err != nil {
				return err
			}
			p, err := s.patients.GetByID(ctx, sess.PatientID)
			if err != nil {
				return err
			}
			if m.IsolationOnly != p.RequiresIsolation {
				return machine.ErrIsolationMismatch
			}
		}

		startedAt := s.now()
		ok, err := s.sessions.MarkStarted(ctx, id, machineID, startedAt)
		if err != nil {
			return err
		}
		if !ok {
			return s.transitionFailure(ctx, id, "start")
		}

		if machineID != nil {
			if err := s.machines.Bind(ctx, *machineID); err != nil {
				return err
			}
		}

		out, err = s.sessions.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Complete moves in_progress -> completed, derives the actual duration, and
// releases and credits the bound machine in the same transaction. The row is
// locked before the read: the machine and start time that drive the side
// effects must be the ones the conditional update sees, or a concurrent start
// could bind a machine this path never releases.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Session, error) {
	var out *Session
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		sess, err := s.sessions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		endedAt := s.now()
		duration := 0
		if sess.ActualStartTime != nil {
			duration = int(math.Round(endedAt.Sub(*sess.ActualStartTime).Minutes()))
		}

		ok, err := s.sessions.MarkCompleted(ctx, id, endedAt, duration)
		if err != nil {
			return err
		}
		if !ok {
			return s.transitionFailure(ctx, id, "complete")
		}

		if sess.MachineID != nil {
			if err := s.machines.Release(ctx, *sess.MachineID); err != nil {
				return err
			}
			if err := s.machines.ApplyUsage(ctx, *sess.MachineID, duration); err != nil {
				return err
			}
		}

		out, err = s.sessions.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel terminates a non-terminal session. A machine held by an in_progress
// session is released without usage credit: with no reliable stop time the
// partial runtime is discarded rather than guessed.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, cancelledBy uuid.UUID, reason string) (*Session, error) {
	if reason == "" {
		return nil, invalidInputf("cancellation reason is required")
	}
	if cancelledBy == uuid.Nil {
		return nil, invalidInputf("cancelled_by is required")
	}

	var out *Session
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		// Lock the row first. The machine release below is decided from this
		// read, and a start landing between an unlocked read and the update
		// would leave its machine bound forever.
		sess, err := s.sessions.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		ok, err := s.sessions.MarkCancelled(ctx, id, cancelledBy, reason, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return s.transitionFailure(ctx, id, "cancel")
		}

		if sess.Status == StatusInProgress && sess.MachineID != nil {
			if err := s.machines.Release(ctx, *sess.MachineID); err != nil {
				return err
			}
		}

		out, err = s.sessions.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AssignmentInput carries the fields that stay mutable until completion.
type AssignmentInput struct {
	SlotID              *uuid.UUID `json:"slot_id,omitempty"`
	PrimaryNurseID      *uuid.UUID `json:"primary_nurse_id,omitempty"`
	SupervisingDoctorID *uuid.UUID `json:"supervising_doctor_id,omitempty"`
	ScheduledStartTime  *time.Time `json:"scheduled_start_time,omitempty"`
}

// UpdateAssignment changes clinical staffing and scheduling fields on a
// non-terminal session.
func (s *Service) UpdateAssignment(ctx context.Context, id uuid.UUID, in AssignmentInput) (*Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.SlotID != nil {
		if _, err := s.slots.Get(ctx, *in.SlotID); err != nil {
			return nil, err
		}
		sess.SlotID = in.SlotID
	}
	if in.PrimaryNurseID != nil {
		sess.PrimaryNurseID = in.PrimaryNurseID
	}
	if in.SupervisingDoctorID != nil {
		sess.SupervisingDoctorID = in.SupervisingDoctorID
	}
	if in.ScheduledStartTime != nil {
		sess.ScheduledStartTime = *in.ScheduledStartTime
	}

	ok, err := s.sessions.UpdateAssignment(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.transitionFailure(ctx, id, "update")
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Session, int, error) {
	return s.sessions.ListByDateRange(ctx, from, to, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	return s.sessions.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByRecurrenceGroup(ctx context.Context, groupID uuid.UUID) ([]*Session, error) {
	return s.sessions.ListByRecurrenceGroup(ctx, groupID)
}

// Today lists the current calendar day's sessions.
func (s *Service) Today(ctx context.Context, limit, offset int) ([]*Session, int, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.sessions.ListByDateRange(ctx, dayStart, dayStart.AddDate(0, 0, 1), limit, offset)
}

// GetStats summarizes sessions whose session date falls inside the window.
// Nil bounds leave that side open.
func (s *Service) GetStats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	return s.sessions.Stats(ctx, from, to)
}

// transitionFailure turns a zero-row conditional update into a precise error:
// the session either does not exist or sits in a status the operation is not
// legal from.
func (s *Service) transitionFailure(ctx context.Context, id uuid.UUID, attempted string) error {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return &InvalidTransitionError{Current: sess.Status, Attempted: attempted}
}
