package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Clinical trail operations. Records, incidents, medications and consumables
// can only be appended while the session is in_progress; signatures follow
// their own per-checkpoint windows.

// RecordInput carries one clinical snapshot. RecordedAt is the bedside
// observation time; when absent the entry is stamped with the server clock.
type RecordInput struct {
	Phase                 string     `json:"phase"`
	RecordedAt            *time.Time `json:"recorded_at,omitempty"`
	RecordedBy            uuid.UUID  `json:"recorded_by"`
	SystolicBP            *int       `json:"systolic_bp,omitempty"`
	DiastolicBP           *int       `json:"diastolic_bp,omitempty"`
	HeartRate             *int       `json:"heart_rate,omitempty"`
	TemperatureC          *float64   `json:"temperature_c,omitempty"`
	WeightKg              *float64   `json:"weight_kg,omitempty"`
	BloodFlowRate         *int       `json:"blood_flow_rate,omitempty"`
	DialysateFlowRate     *int       `json:"dialysate_flow_rate,omitempty"`
	ArterialPressure      *int       `json:"arterial_pressure,omitempty"`
	VenousPressure        *int       `json:"venous_pressure,omitempty"`
	TransmembranePressure *int       `json:"transmembrane_pressure,omitempty"`
	UltrafiltrationML     *float64   `json:"ultrafiltration_ml,omitempty"`
	Note                  *string    `json:"note,omitempty"`
}

func (s *Service) AddRecord(ctx context.Context, sessionID uuid.UUID, in RecordInput) (*Record, error) {
	if !ValidPhase(in.Phase) {
		return nil, invalidInputf("invalid phase %q", in.Phase)
	}
	if in.RecordedBy == uuid.Nil {
		return nil, invalidInputf("recorded_by is required")
	}
	if err := s.requireActive(ctx, sessionID); err != nil {
		return nil, err
	}

	rec := &Record{
		SessionID:             sessionID,
		Phase:                 in.Phase,
		RecordedAt:            s.clinicalTime(in.RecordedAt),
		RecordedBy:            in.RecordedBy,
		SystolicBP:            in.SystolicBP,
		DiastolicBP:           in.DiastolicBP,
		HeartRate:             in.HeartRate,
		TemperatureC:          in.TemperatureC,
		WeightKg:              in.WeightKg,
		BloodFlowRate:         in.BloodFlowRate,
		DialysateFlowRate:     in.DialysateFlowRate,
		ArterialPressure:      in.ArterialPressure,
		VenousPressure:        in.VenousPressure,
		TransmembranePressure: in.TransmembranePressure,
		UltrafiltrationML:     in.UltrafiltrationML,
		Note:                  in.Note,
	}
	if err := s.log.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// IncidentInput carries one adverse event report.
type IncidentInput struct {
	SessionRecordID *uuid.UUID `json:"session_record_id,omitempty"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
	ReportedBy      uuid.UUID  `json:"reported_by"`
	Severity        string     `json:"severity"`
	Description     string     `json:"description"`
	Intervention    *string    `json:"intervention,omitempty"`
}

// AddIncident appends an incident and, when a record is referenced, raises
// that record's has_incident flag in the same transaction.
func (s *Service) AddIncident(ctx context.Context, sessionID uuid.UUID, in IncidentInput) (*Incident, error) {
	if !ValidSeverity(in.Severity) {
		return nil, invalidInputf("invalid severity %q", in.Severity)
	}
	if in.Description == "" {
		return nil, invalidInputf("description is required")
	}
	if in.ReportedBy == uuid.Nil {
		return nil, invalidInputf("reported_by is required")
	}
	if err := s.requireActive(ctx, sessionID); err != nil {
		return nil, err
	}

	inc := &Incident{
		SessionID:       sessionID,
		SessionRecordID: in.SessionRecordID,
		OccurredAt:      s.clinicalTime(in.OccurredAt),
		ReportedBy:      in.ReportedBy,
		Severity:        in.Severity,
		Description:     in.Description,
		Intervention:    in.Intervention,
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if in.SessionRecordID != nil {
			ok, err := s.log.SetRecordIncidentFlag(ctx, sessionID, *in.SessionRecordID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrRecordNotFound
			}
		}
		return s.log.CreateIncident(ctx, inc)
	})
	if err != nil {
		return nil, err
	}
	return inc, nil
}

// MedicationInput carries one intra-dialytic administration.
type MedicationInput struct {
	Name           string     `json:"name"`
	Dose           string     `json:"dose"`
	Route          string     `json:"route"`
	AdministeredAt *time.Time `json:"administered_at,omitempty"`
	AdministeredBy uuid.UUID  `json:"administered_by"`
	Note           *string    `json:"note,omitempty"`
}

func (s *Service) AddMedication(ctx context.Context, sessionID uuid.UUID, in MedicationInput) (*Medication, error) {
	if in.Name == "" || in.Dose == "" || in.Route == "" {
		return nil, invalidInputf("name, dose and route are required")
	}
	if in.AdministeredBy == uuid.Nil {
		return nil, invalidInputf("administered_by is required")
	}
	if err := s.requireActive(ctx, sessionID); err != nil {
		return nil, err
	}

	m := &Medication{
		SessionID:      sessionID,
		Name:           in.Name,
		Dose:           in.Dose,
		Route:          in.Route,
		AdministeredAt: s.clinicalTime(in.AdministeredAt),
		AdministeredBy: in.AdministeredBy,
		Note:           in.Note,
	}
	if err := s.log.CreateMedication(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ConsumableInput carries one supply usage entry.
type ConsumableInput struct {
	ItemName   string     `json:"item_name"`
	LotID      *uuid.UUID `json:"lot_id,omitempty"`
	Quantity   int        `json:"quantity"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	RecordedBy uuid.UUID  `json:"recorded_by"`
}

func (s *Service) AddConsumable(ctx context.Context, sessionID uuid.UUID, in ConsumableInput) (*Consumable, error) {
	if in.ItemName == "" {
		return nil, invalidInputf("item_name is required")
	}
	if in.Quantity < 1 {
		return nil, invalidInputf("quantity must be at least 1")
	}
	if in.RecordedBy == uuid.Nil {
		return nil, invalidInputf("recorded_by is required")
	}
	if err := s.requireActive(ctx, sessionID); err != nil {
		return nil, err
	}

	c := &Consumable{
		SessionID:  sessionID,
		ItemName:   in.ItemName,
		LotID:      in.LotID,
		Quantity:   in.Quantity,
		UsedAt:     s.clinicalTime(in.UsedAt),
		RecordedBy: in.RecordedBy,
	}
	if err := s.log.CreateConsumable(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SignatureInput carries one checkpoint sign-off.
type SignatureInput struct {
	Checkpoint string    `json:"checkpoint"`
	SignedBy   uuid.UUID `json:"signed_by"`
	SignerRole *string   `json:"signer_role,omitempty"`
	Note       *string   `json:"note,omitempty"`
}

// signatureWindows maps each checkpoint to the statuses it may be captured
// in. Consent and the nurse's opening signature belong to the bedside window;
// the closing and review signatures trail the treatment.
var signatureWindows = map[string][]string{
	SignPatientConsent: {StatusCheckedIn, StatusInProgress},
	SignNurseStart:     {StatusCheckedIn, StatusInProgress},
	SignNurseEnd:       {StatusInProgress, StatusCompleted},
	SignDoctorReview:   {StatusCompleted},
}

func (s *Service) AddSignature(ctx context.Context, sessionID uuid.UUID, in SignatureInput) (*Signature, error) {
	window, ok := signatureWindows[in.Checkpoint]
	if !ok {
		return nil, invalidInputf("invalid checkpoint %q", in.Checkpoint)
	}
	if in.SignedBy == uuid.Nil {
		return nil, invalidInputf("signed_by is required")
	}

	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, st := range window {
		if sess.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &InvalidTransitionError{Current: sess.Status, Attempted: "sign " + in.Checkpoint + " on"}
	}

	sg := &Signature{
		SessionID:  sessionID,
		Checkpoint: in.Checkpoint,
		SignedBy:   in.SignedBy,
		SignerRole: in.SignerRole,
		SignedAt:   s.now(),
		Note:       in.Note,
	}
	if err := s.log.CreateSignature(ctx, sg); err != nil {
		return nil, err
	}
	return sg, nil
}

func (s *Service) ListRecords(ctx context.Context, sessionID uuid.UUID) ([]*Record, error) {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.log.ListRecords(ctx, sessionID)
}

// GetDetails assembles the full read-side view of a session: references plus
// the complete clinical trail.
func (s *Service) GetDetails(ctx context.Context, id uuid.UUID) (*Details, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &Details{Session: sess}

	if d.Patient, err = s.patients.GetByID(ctx, sess.PatientID); err != nil {
		return nil, err
	}
	if d.Prescription, err = s.prescriptions.GetByID(ctx, sess.PrescriptionID); err != nil {
		return nil, err
	}
	if sess.MachineID != nil {
		if d.Machine, err = s.machines.Get(ctx, *sess.MachineID); err != nil {
			return nil, err
		}
	}
	if sess.SlotID != nil {
		if d.Slot, err = s.slots.Get(ctx, *sess.SlotID); err != nil {
			return nil, err
		}
	}

	if d.Records, err = s.log.ListRecords(ctx, id); err != nil {
		return nil, err
	}
	if d.Incidents, err = s.log.ListIncidents(ctx, id); err != nil {
		return nil, err
	}
	if d.Medications, err = s.log.ListMedications(ctx, id); err != nil {
		return nil, err
	}
	if d.Consumables, err = s.log.ListConsumables(ctx, id); err != nil {
		return nil, err
	}
	if d.Signatures, err = s.log.ListSignatures(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// clinicalTime prefers the caller's documented bedside time over the server
// clock, for entries charted after the fact.
func (s *Service) clinicalTime(at *time.Time) time.Time {
	if at != nil {
		return *at
	}
	return s.now()
}

// requireActive loads the session and rejects anything not in_progress.
func (s *Service) requireActive(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != StatusInProgress {
		return ErrSessionNotActive
	}
	return nil
}
