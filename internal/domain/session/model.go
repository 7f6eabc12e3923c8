package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/renalflow/renalflow/internal/domain/machine"
	"github.com/renalflow/renalflow/internal/domain/patient"
	"github.com/renalflow/renalflow/internal/domain/prescription"
	"github.com/renalflow/renalflow/internal/domain/slot"
)

// Session statuses. completed and cancelled are terminal; a session is never
// deleted, cancellation is the only way out of the schedule.
const (
	StatusScheduled  = "scheduled"
	StatusCheckedIn  = "checked_in"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Terminal reports whether a session in status s can no longer transition.
func Terminal(s string) bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Clinical phases a record snapshot can be taken in.
const (
	PhasePreDialysis   = "pre_dialysis"
	PhaseIntraDialysis = "intra_dialysis"
	PhasePostDialysis  = "post_dialysis"
)

// ValidPhase reports whether p is a known record phase.
func ValidPhase(p string) bool {
	switch p {
	case PhasePreDialysis, PhaseIntraDialysis, PhasePostDialysis:
		return true
	}
	return false
}

// Signature checkpoints.
const (
	SignNurseStart     = "nurse_start"
	SignNurseEnd       = "nurse_end"
	SignDoctorReview   = "doctor_review"
	SignPatientConsent = "patient_consent"
)

// Incident severities.
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// ValidSeverity reports whether s is a known incident severity.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

// Session maps to the sessions table: one scheduled or executed treatment
// encounter. Patient and prescription references are immutable after create.
type Session struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	SessionNumber         string     `db:"session_number" json:"session_number"`
	PatientID             uuid.UUID  `db:"patient_id" json:"patient_id"`
	PrescriptionID        uuid.UUID  `db:"prescription_id" json:"prescription_id"`
	MachineID             *uuid.UUID `db:"machine_id" json:"machine_id,omitempty"`
	SlotID                *uuid.UUID `db:"slot_id" json:"slot_id,omitempty"`
	Status                string     `db:"status" json:"status"`
	SessionDate           time.Time  `db:"session_date" json:"session_date"`
	ScheduledStartTime    time.Time  `db:"scheduled_start_time" json:"scheduled_start_time"`
	ActualStartTime       *time.Time `db:"actual_start_time" json:"actual_start_time,omitempty"`
	ActualEndTime         *time.Time `db:"actual_end_time" json:"actual_end_time,omitempty"`
	ActualDurationMinutes *int       `db:"actual_duration_minutes" json:"actual_duration_minutes,omitempty"`
	IsRecurring           bool       `db:"is_recurring" json:"is_recurring"`
	RecurrenceGroupID     *uuid.UUID `db:"recurrence_group_id" json:"recurrence_group_id,omitempty"`
	PrimaryNurseID        *uuid.UUID `db:"primary_nurse_id" json:"primary_nurse_id,omitempty"`
	SupervisingDoctorID   *uuid.UUID `db:"supervising_doctor_id" json:"supervising_doctor_id,omitempty"`
	CancellationReason    *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy           *uuid.UUID `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt           *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Record maps to the session_records table: a timestamped clinical snapshot
// taken during a phase of the session. Immutable once written, except for the
// has_incident flag an incident may raise.
type Record struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	SessionID             uuid.UUID `db:"session_id" json:"session_id"`
	Phase                 string    `db:"phase" json:"phase"`
	RecordedAt            time.Time `db:"recorded_at" json:"recorded_at"`
	RecordedBy            uuid.UUID `db:"recorded_by" json:"recorded_by"`
	SystolicBP            *int      `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP           *int      `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	HeartRate             *int      `db:"heart_rate" json:"heart_rate,omitempty"`
	TemperatureC          *float64  `db:"temperature_c" json:"temperature_c,omitempty"`
	WeightKg              *float64  `db:"weight_kg" json:"weight_kg,omitempty"`
	BloodFlowRate         *int      `db:"blood_flow_rate" json:"blood_flow_rate,omitempty"`
	DialysateFlowRate     *int      `db:"dialysate_flow_rate" json:"dialysate_flow_rate,omitempty"`
	ArterialPressure      *int      `db:"arterial_pressure" json:"arterial_pressure,omitempty"`
	VenousPressure        *int      `db:"venous_pressure" json:"venous_pressure,omitempty"`
	TransmembranePressure *int      `db:"transmembrane_pressure" json:"transmembrane_pressure,omitempty"`
	UltrafiltrationML     *float64  `db:"ultrafiltration_ml" json:"ultrafiltration_ml,omitempty"` // cumulative
	HasIncident           bool      `db:"has_incident" json:"has_incident"`
	Note                  *string   `db:"note" json:"note,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// Incident maps to the session_incidents table. May reference the record
// snapshot during which it occurred.
type Incident struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	SessionID       uuid.UUID  `db:"session_id" json:"session_id"`
	SessionRecordID *uuid.UUID `db:"session_record_id" json:"session_record_id,omitempty"`
	OccurredAt      time.Time  `db:"occurred_at" json:"occurred_at"`
	ReportedBy      uuid.UUID  `db:"reported_by" json:"reported_by"`
	Severity        string     `db:"severity" json:"severity"`
	Description     string     `db:"description" json:"description"`
	Intervention    *string    `db:"intervention" json:"intervention,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// Medication maps to the session_medications table.
type Medication struct {
	ID             uuid.UUID `db:"id" json:"id"`
	SessionID      uuid.UUID `db:"session_id" json:"session_id"`
	Name           string    `db:"name" json:"name"`
	Dose           string    `db:"dose" json:"dose"`
	Route          string    `db:"route" json:"route"`
	AdministeredAt time.Time `db:"administered_at" json:"administered_at"`
	AdministeredBy uuid.UUID `db:"administered_by" json:"administered_by"`
	Note           *string   `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Consumable maps to the session_consumables table. The lot reference points
// into the inventory service; stock levels are its concern, not ours.
type Consumable struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	SessionID  uuid.UUID  `db:"session_id" json:"session_id"`
	ItemName   string     `db:"item_name" json:"item_name"`
	LotID      *uuid.UUID `db:"lot_id" json:"lot_id,omitempty"`
	Quantity   int        `db:"quantity" json:"quantity"`
	UsedAt     time.Time  `db:"used_at" json:"used_at"`
	RecordedBy uuid.UUID  `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Signature maps to the session_signatures table.
type Signature struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SessionID  uuid.UUID `db:"session_id" json:"session_id"`
	Checkpoint string    `db:"checkpoint" json:"checkpoint"`
	SignedBy   uuid.UUID `db:"signed_by" json:"signed_by"`
	SignerRole *string   `db:"signer_role" json:"signer_role,omitempty"`
	SignedAt   time.Time `db:"signed_at" json:"signed_at"`
	Note       *string   `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Details is the read-side composite for clinical and audit display: the
// session joined with its references and the full time-ordered record trail.
type Details struct {
	Session      *Session                   `json:"session"`
	Patient      *patient.Patient           `json:"patient"`
	Prescription *prescription.Prescription `json:"prescription"`
	Machine      *machine.Machine           `json:"machine,omitempty"`
	Slot         *slot.Slot                 `json:"slot,omitempty"`
	Records      []*Record                  `json:"records"`
	Incidents    []*Incident                `json:"incidents"`
	Medications  []*Medication              `json:"medications"`
	Consumables  []*Consumable              `json:"consumables"`
	Signatures   []*Signature               `json:"signatures"`
}

// Stats summarizes sessions whose session_date falls in a window.
type Stats struct {
	Total              int     `json:"total"`
	Scheduled          int     `json:"scheduled"`
	CheckedIn          int     `json:"checked_in"`
	InProgress         int     `json:"in_progress"`
	Completed          int     `json:"completed"`
	Cancelled          int     `json:"cancelled"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"` // completed sessions only, 0 if none
	IncidentCount      int     `json:"incident_count"`
}
