package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/renalflow/renalflow/internal/domain/machine"
	"github.com/renalflow/renalflow/internal/domain/patient"
	"github.com/renalflow/renalflow/internal/domain/prescription"
	"github.com/renalflow/renalflow/internal/domain/slot"
)

// Repository persists sessions. Every Mark* method is a conditional update
// guarded by the expected current status; a false result means the guard did
// not hold and nothing was written.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// GetForUpdate locks the row for the rest of the enclosing transaction,
	// so side effects decided from the read cannot race a concurrent
	// transition.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error)

	// NextSequence atomically advances the per-year session counter.
	NextSequence(ctx context.Context, year int) (int, error)

	MarkCheckedIn(ctx context.Context, id uuid.UUID) (bool, error)
	MarkStarted(ctx context.Context, id uuid.UUID, machineID *uuid.UUID, at time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, durationMinutes int) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, by uuid.UUID, reason string, at time.Time) (bool, error)

	// UpdateAssignment touches only the mutable-before-completion fields and
	// refuses terminal sessions.
	UpdateAssignment(ctx context.Context, s *Session) (bool, error)

	ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Session, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error)
	ListByRecurrenceGroup(ctx context.Context, groupID uuid.UUID) ([]*Session, error)

	Stats(ctx context.Context, from, to *time.Time) (*Stats, error)
}

// ClinicalLogRepository is the append-only record trail. There are no update
// or delete methods on purpose; the single mutation is the has_incident flag
// an incident raises on its referenced record.
type ClinicalLogRepository interface {
	CreateRecord(ctx context.Context, r *Record) error
	SetRecordIncidentFlag(ctx context.Context, sessionID, recordID uuid.UUID) (bool, error)
	ListRecords(ctx context.Context, sessionID uuid.UUID) ([]*Record, error)

	CreateIncident(ctx context.Context, in *Incident) error
	ListIncidents(ctx context.Context, sessionID uuid.UUID) ([]*Incident, error)

	CreateMedication(ctx context.Context, m *Medication) error
	ListMedications(ctx context.Context, sessionID uuid.UUID) ([]*Medication, error)

	CreateConsumable(ctx context.Context, c *Consumable) error
	ListConsumables(ctx context.Context, sessionID uuid.UUID) ([]*Consumable, error)

	CreateSignature(ctx context.Context, sg *Signature) error
	ListSignatures(ctx context.Context, sessionID uuid.UUID) ([]*Signature, error)
}

// Collaborator views. The session core consumes these, it does not own them.

type PatientRegistry interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type PrescriptionRegistry interface {
	GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error)
}

// MachinePool is the slice of the machine allocator the state machine drives:
// claim on start, release on completion or cancellation, usage credit on
// completion only.
type MachinePool interface {
	Get(ctx context.Context, id uuid.UUID) (*machine.Machine, error)
	Bind(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID) error
	ApplyUsage(ctx context.Context, id uuid.UUID, durationMinutes int) error
}

type SlotDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*slot.Slot, error)
}
