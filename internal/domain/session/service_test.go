package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/renalflow/renalflow/internal/domain/machine"
	"github.com/renalflow/renalflow/internal/domain/patient"
	"github.com/renalflow/renalflow/internal/domain/prescription"
	"github.com/renalflow/renalflow/internal/domain/slot"
)

// -- Mock Repositories --

type mockSessionRepo struct {
	sessions map[uuid.UUID]*Session
	counters map[int]int

	// beforeLock runs once before the next GetForUpdate returns, standing in
	// for a concurrent writer that commits before the row lock is granted.
	beforeLock func()
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{
		sessions: make(map[uuid.UUID]*Session),
		counters: make(map[int]int),
	}
}

func (m *mockSessionRepo) Create(_ context.Context, s *Session) error {
	s.ID = uuid.New()
	m.sessions[s.ID] = s
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSessionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error) {
	if m.beforeLock != nil {
		hook := m.beforeLock
		m.beforeLock = nil
		hook()
	}
	return m.GetByID(ctx, id)
}

func (m *mockSessionRepo) NextSequence(_ context.Context, year int) (int, error) {
	m.counters[year]++
	return m.counters[year], nil
}

func (m *mockSessionRepo) MarkCheckedIn(_ context.Context, id uuid.UUID) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusScheduled {
		return false, nil
	}
	s.Status = StatusCheckedIn
	return true, nil
}

func (m *mockSessionRepo) MarkStarted(_ context.Context, id uuid.UUID, machineID *uuid.UUID, at time.Time) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusCheckedIn {
		return false, nil
	}
	s.Status = StatusInProgress
	s.MachineID = machineID
	s.ActualStartTime = &at
	return true, nil
}

func (m *mockSessionRepo) MarkCompleted(_ context.Context, id uuid.UUID, at time.Time, durationMinutes int) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusInProgress {
		return false, nil
	}
	s.Status = StatusCompleted
	s.ActualEndTime = &at
	s.ActualDurationMinutes = &durationMinutes
	return true, nil
}

func (m *mockSessionRepo) MarkCancelled(_ context.Context, id uuid.UUID, by uuid.UUID, reason string, at time.Time) (bool, error) {
	s, ok := m.sessions[id]
	if !ok || Terminal(s.Status) {
		return false, nil
	}
	s.Status = StatusCancelled
	s.CancelledBy = &by
	s.CancellationReason = &reason
	s.CancelledAt = &at
	return true, nil
}

func (m *mockSessionRepo) UpdateAssignment(_ context.Context, s *Session) (bool, error) {
	cur, ok := m.sessions[s.ID]
	if !ok || Terminal(cur.Status) {
		return false, nil
	}
	cur.SlotID = s.SlotID
	cur.PrimaryNurseID = s.PrimaryNurseID
	cur.SupervisingDoctorID = s.SupervisingDoctorID
	cur.ScheduledStartTime = s.ScheduledStartTime
	return true, nil
}

func (m *mockSessionRepo) ListByDateRange(_ context.Context, from, to time.Time, limit, offset int) ([]*Session, int, error) {
	var result []*Session
	for _, s := range m.sessions {
		if !s.SessionDate.Before(from) && s.SessionDate.Before(to) {
			result = append(result, s)
		}
	}
	return result, len(result), nil
}

func (m *mockSessionRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	var result []*Session
	for _, s := range m.sessions {
		if s.PatientID == patientID {
			result = append(result, s)
		}
	}
	return result, len(result), nil
}

func (m *mockSessionRepo) ListByRecurrenceGroup(_ context.Context, groupID uuid.UUID) ([]*Session, error) {
	var result []*Session
	for _, s := range m.sessions {
		if s.RecurrenceGroupID != nil && *s.RecurrenceGroupID == groupID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *mockSessionRepo) Stats(_ context.Context, from, to *time.Time) (*Stats, error) {
	st := &Stats{}
	var totalDuration, completed int
	for _, s := range m.sessions {
		if from != nil && s.SessionDate.Before(*from) {
			continue
		}
		if to != nil && !s.SessionDate.Before(*to) {
			continue
		}
		st.Total++
		switch s.Status {
		case StatusScheduled:
			st.Scheduled++
		case StatusCheckedIn:
			st.CheckedIn++
		case StatusInProgress:
			st.InProgress++
		case StatusCompleted:
			st.Completed++
			if s.ActualDurationMinutes != nil {
				totalDuration += *s.ActualDurationMinutes
				completed++
			}
		case StatusCancelled:
			st.Cancelled++
		}
	}
	if completed > 0 {
		st.AvgDurationMinutes = float64(totalDuration) / float64(completed)
	}
	return st, nil
}

type mockLogRepo struct {
	records     map[uuid.UUID]*Record
	incidents   []*Incident
	medications []*Medication
	consumables []*Consumable
	signatures  []*Signature
}

func newMockLogRepo() *mockLogRepo {
	return &mockLogRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockLogRepo) CreateRecord(_ context.Context, r *Record) error {
	r.ID = uuid.New()
	m.records[r.ID] = r
	return nil
}

func (m *mockLogRepo) SetRecordIncidentFlag(_ context.Context, sessionID, recordID uuid.UUID) (bool, error) {
	r, ok := m.records[recordID]
	if !ok || r.SessionID != sessionID {
		return false, nil
	}
	r.HasIncident = true
	return true, nil
}

func (m *mockLogRepo) ListRecords(_ context.Context, sessionID uuid.UUID) ([]*Record, error) {
	var result []*Record
	for _, r := range m.records {
		if r.SessionID == sessionID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockLogRepo) CreateIncident(_ context.Context, in *Incident) error {
	in.ID = uuid.New()
	m.incidents = append(m.incidents, in)
	return nil
}

func (m *mockLogRepo) ListIncidents(_ context.Context, sessionID uuid.UUID) ([]*Incident, error) {
	var result []*Incident
	for _, in := range m.incidents {
		if in.SessionID == sessionID {
			result = append(result, in)
		}
	}
	return result, nil
}

func (m *mockLogRepo) CreateMedication(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	m.medications = append(m.medications, med)
	return nil
}

func (m *mockLogRepo) ListMedications(_ context.Context, sessionID uuid.UUID) ([]*Medication, error) {
	var result []*Medication
	for _, med := range m.medications {
		if med.SessionID == sessionID {
			result = append(result, med)
		}
	}
	return result, nil
}

func (m *mockLogRepo) CreateConsumable(_ context.Context, c *Consumable) error {
	c.ID = uuid.New()
	m.consumables = append(m.consumables, c)
	return nil
}

func (m *mockLogRepo) ListConsumables(_ context.Context, sessionID uuid.UUID) ([]*Consumable, error) {
	var result []*Consumable
	for _, c := range m.consumables {
		if c.SessionID == sessionID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockLogRepo) CreateSignature(_ context.Context, sg *Signature) error {
	sg.ID = uuid.New()
	m.signatures = append(m.signatures, sg)
	return nil
}

func (m *mockLogRepo) ListSignatures(_ context.Context, sessionID uuid.UUID) ([]*Signature, error) {
	var result []*Signature
	for _, sg := range m.signatures {
		if sg.SessionID == sessionID {
			result = append(result, sg)
		}
	}
	return result, nil
}

type mockPatients struct {
	patients map[uuid.UUID]*patient.Patient
}

func (m *mockPatients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	p, ok := m.patients[id]
	return ok && p.Active, nil
}

func (m *mockPatients) GetByID(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

type mockPrescriptions struct {
	prescriptions map[uuid.UUID]*prescription.Prescription
}

func (m *mockPrescriptions) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	rx, ok := m.prescriptions[id]
	if !ok {
		return nil, prescription.ErrNotFound
	}
	return rx, nil
}

type mockSlots struct {
	slots map[uuid.UUID]*slot.Slot
}

func (m *mockSlots) Get(_ context.Context, id uuid.UUID) (*slot.Slot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, slot.ErrNotFound
	}
	return s, nil
}

type mockMachineRepo struct {
	machines map[uuid.UUID]*machine.Machine
}

func newMockMachineRepo() *mockMachineRepo {
	return &mockMachineRepo{machines: make(map[uuid.UUID]*machine.Machine)}
}

func (m *mockMachineRepo) Create(_ context.Context, mc *machine.Machine) error {
	mc.ID = uuid.New()
	m.machines[mc.ID] = mc
	return nil
}

func (m *mockMachineRepo) GetByID(_ context.Context, id uuid.UUID) (*machine.Machine, error) {
	mc, ok := m.machines[id]
	if !ok {
		return nil, machine.ErrNotFound
	}
	return mc, nil
}

func (m *mockMachineRepo) List(_ context.Context, limit, offset int) ([]*machine.Machine, int, error) {
	var result []*machine.Machine
	for _, mc := range m.machines {
		result = append(result, mc)
	}
	return result, len(result), nil
}

func (m *mockMachineRepo) ListAvailable(_ context.Context, isolationOnly bool) ([]*machine.Machine, error) {
	var result []*machine.Machine
	for _, mc := range m.machines {
		if mc.Status == machine.StatusAvailable && mc.IsolationOnly == isolationOnly {
			result = append(result, mc)
		}
	}
	return result, nil
}

func (m *mockMachineRepo) Update(_ context.Context, mc *machine.Machine) error {
	m.machines[mc.ID] = mc
	return nil
}

func (m *mockMachineRepo) Bind(_ context.Context, id uuid.UUID) (bool, error) {
	mc, ok := m.machines[id]
	if !ok || mc.Status != machine.StatusAvailable {
		return false, nil
	}
	mc.Status = machine.StatusInUse
	return true, nil
}

func (m *mockMachineRepo) Release(_ context.Context, id uuid.UUID) error {
	mc, ok := m.machines[id]
	if !ok {
		return machine.ErrNotFound
	}
	mc.Status = machine.StatusAvailable
	return nil
}

func (m *mockMachineRepo) SetStatus(_ context.Context, id uuid.UUID, status string) (bool, error) {
	mc, ok := m.machines[id]
	if !ok || mc.Status == machine.StatusInUse {
		return false, nil
	}
	mc.Status = status
	return true, nil
}

func (m *mockMachineRepo) AddUsage(_ context.Context, id uuid.UUID, hours float64) error {
	mc, ok := m.machines[id]
	if !ok {
		return machine.ErrNotFound
	}
	mc.TotalHours += hours
	mc.TotalSessions++
	return nil
}

// passTx runs the function inline. Mock repos share state, so transaction
// boundaries collapse.
type passTx struct{}

func (passTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// -- Fixture --

type fixture struct {
	svc         *Service
	sessions    *mockSessionRepo
	log         *mockLogRepo
	machineRepo *mockMachineRepo
	machineSvc  *machine.Service
	patientID   uuid.UUID
	isoPatient  uuid.UUID
	rxID        uuid.UUID
	nurseID     uuid.UUID
	clock       *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	patientID := uuid.New()
	isoPatient := uuid.New()
	rxID := uuid.New()

	patients := &mockPatients{patients: map[uuid.UUID]*patient.Patient{
		patientID:  {ID: patientID, MRN: "MRN-001", FullName: "Arun Mehta", Active: true},
		isoPatient: {ID: isoPatient, MRN: "MRN-002", FullName: "Leila Haddad", RequiresIsolation: true, Active: true},
	}}
	prescriptions := &mockPrescriptions{prescriptions: map[uuid.UUID]*prescription.Prescription{
		rxID: {ID: rxID, PatientID: patientID, FrequencyPerWeek: 3, DurationMinutes: 240, Active: true},
	}}

	machineRepo := newMockMachineRepo()
	machineSvc := machine.NewService(machineRepo)

	sessions := newMockSessionRepo()
	log := newMockLogRepo()

	svc := NewService(sessions, log, machineSvc, patients, prescriptions,
		&mockSlots{slots: map[uuid.UUID]*slot.Slot{}}, passTx{})

	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	clock := &start
	svc.SetClock(func() time.Time { return *clock })

	return &fixture{
		svc:         svc,
		sessions:    sessions,
		log:         log,
		machineRepo: machineRepo,
		machineSvc:  machineSvc,
		patientID:   patientID,
		isoPatient:  isoPatient,
		rxID:        rxID,
		nurseID:     uuid.New(),
		clock:       clock,
	}
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) addMachine(t *testing.T, isolationOnly bool) *machine.Machine {
	t.Helper()
	m := &machine.Machine{Name: "Dialyzer", IsolationOnly: isolationOnly}
	if err := f.machineSvc.Create(context.Background(), m); err != nil {
		t.Fatalf("create machine: %v", err)
	}
	return m
}

func (f *fixture) schedule(t *testing.T) *Session {
	t.Helper()
	sess, err := f.svc.Create(context.Background(), CreateInput{
		PatientID:          f.patientID,
		PrescriptionID:     f.rxID,
		SessionDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ScheduledStartTime: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

// -- Tests --

func TestCreate_AssignsSequentialNumbers(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 3; i++ {
		sess := f.schedule(t)
		want := fmt.Sprintf("SES-2024-%06d", i)
		if sess.SessionNumber != want {
			t.Errorf("session %d: number = %q, want %q", i, sess.SessionNumber, want)
		}
		if sess.Status != StatusScheduled {
			t.Errorf("session %d: status = %q, want scheduled", i, sess.Status)
		}
	}
}

func TestCreate_UnknownPatient(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{
		PatientID:          uuid.New(),
		PrescriptionID:     f.rxID,
		SessionDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ScheduledStartTime: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("err = %v, want ErrPatientNotFound", err)
	}
}

func TestLifecycle_FullTreatment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.addMachine(t, false)
	sess := f.schedule(t)

	if _, err := f.svc.CheckIn(ctx, sess.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}

	started, err := f.svc.Start(ctx, sess.ID, &m.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != StatusInProgress {
		t.Errorf("status = %q, want in_progress", started.Status)
	}
	if started.ActualStartTime == nil {
		t.Fatal("actual start time not stamped")
	}
	got, _ := f.machineSvc.Get(ctx, m.ID)
	if got.Status != machine.StatusInUse {
		t.Errorf("machine status = %q, want in_use", got.Status)
	}

	f.advance(240 * time.Minute)
	done, err := f.svc.Complete(ctx, sess.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", done.Status)
	}
	if done.ActualDurationMinutes == nil || *done.ActualDurationMinutes != 240 {
		t.Errorf("duration = %v, want 240", done.ActualDurationMinutes)
	}

	got, _ = f.machineSvc.Get(ctx, m.ID)
	if got.Status != machine.StatusAvailable {
		t.Errorf("machine status after complete = %q, want available", got.Status)
	}
	if got.TotalHours != 4.0 {
		t.Errorf("machine total hours = %v, want 4.0", got.TotalHours)
	}
	if got.TotalSessions != 1 {
		t.Errorf("machine total sessions = %d, want 1", got.TotalSessions)
	}
}

func TestStart_WithoutMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.schedule(t)
	if _, err := f.svc.CheckIn(ctx, sess.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	started, err := f.svc.Start(ctx, sess.ID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.MachineID != nil {
		t.Errorf("machine id = %v, want nil", started.MachineID)
	}
}

func TestStart_MachineAlreadyClaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.addMachine(t, false)

	first := f.schedule(t)
	second := f.schedule(t)
	for _, s := range []*Session{first, second} {
		if _, err := f.svc.CheckIn(ctx, s.ID); err != nil {
			t.Fatalf("check in: %v", err)
		}
	}

	if _, err := f.svc.Start(ctx, first.ID, &m.ID); err != nil {
		t.Fatalf("first start: %v", err)
	}
	_, err := f.svc.Start(ctx, second.ID, &m.ID)
	if !errors.Is(err, machine.ErrUnavailable) {
		t.Fatalf("second start err = %v, want ErrUnavailable", err)
	}
}

func TestStart_IsolationMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	isoMachine := f.addMachine(t, true)
	standard := f.addMachine(t, false)

	// Non-isolation patient on an isolation machine.
	sess := f.schedule(t)
	if _, err := f.svc.CheckIn(ctx, sess.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := f.svc.Start(ctx, sess.ID, &isoMachine.ID); !errors.Is(err, machine.ErrIsolationMismatch) {
		t.Fatalf("err = %v, want ErrIsolationMismatch", err)
	}

	// Isolation patient on a standard machine.
	isoSess, err := f.svc.Create(ctx, CreateInput{
		PatientID:          f.isoPatient,
		PrescriptionID:     f.rxID,
		SessionDate:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ScheduledStartTime: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.CheckIn(ctx, isoSess.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := f.svc.Start(ctx, isoSess.ID, &standard.ID); !errors.Is(err, machine.ErrIsolationMismatch) {
		t.Fatalf("err = %v, want ErrIsolationMismatch", err)
	}

	// A failed bind must leave the machine untouched.
	got, _ := f.machineSvc.Get(ctx, isoMachine.ID)
	if got.Status != machine.StatusAvailable {
		t.Errorf("isolation machine status = %q, want available", got.Status)
	}
}

func TestTransitionGuards(t *testing.T) {
	machineID := uuid.New()
	tests := []struct {
		name string
		from string
		op   func(f *fixture, id uuid.UUID) error
	}{
		{"check in from in_progress", StatusInProgress, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.CheckIn(context.Background(), id)
			return err
		}},
		{"check in from completed", StatusCompleted, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.CheckIn(context.Background(), id)
			return err
		}},
		{"start from scheduled", StatusScheduled, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Start(context.Background(), id, nil)
			return err
		}},
		{"start from cancelled", StatusCancelled, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Start(context.Background(), id, nil)
			return err
		}},
		{"complete from scheduled", StatusScheduled, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Complete(context.Background(), id)
			return err
		}},
		{"complete from checked_in", StatusCheckedIn, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Complete(context.Background(), id)
			return err
		}},
		{"cancel from completed", StatusCompleted, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Cancel(context.Background(), id, machineID, "no show")
			return err
		}},
		{"cancel from cancelled", StatusCancelled, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Cancel(context.Background(), id, machineID, "no show")
			return err
		}},
		{"update from cancelled", StatusCancelled, func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.UpdateAssignment(context.Background(), id, AssignmentInput{PrimaryNurseID: &machineID})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sess := f.schedule(t)
			f.sessions.sessions[sess.ID].Status = tt.from

			err := tt.op(f, sess.ID)
			var transition *InvalidTransitionError
			if !errors.As(err, &transition) {
				t.Fatalf("err = %v, want InvalidTransitionError", err)
			}
			if transition.Current != tt.from {
				t.Errorf("transition.Current = %q, want %q", transition.Current, tt.from)
			}
		})
	}
}

func TestCancel_FromScheduled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.schedule(t)

	cancelled, err := f.svc.Cancel(ctx, sess.ID, f.nurseID, "patient unwell")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "patient unwell" {
		t.Errorf("reason = %v, want recorded", cancelled.CancellationReason)
	}
	if cancelled.CancelledAt == nil {
		t.Error("cancelled_at not stamped")
	}
}

func TestCancel_RequiresReason(t *testing.T) {
	f := newFixture(t)
	sess := f.schedule(t)
	if _, err := f.svc.Cancel(context.Background(), sess.ID, f.nurseID, ""); err == nil {
		t.Fatal("expected error for empty reason")
	}
}

func TestCancel_InProgressReleasesMachineWithoutUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.addMachine(t, false)
	sess := f.schedule(t)

	if _, err := f.svc.CheckIn(ctx, sess.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := f.svc.Start(ctx, sess.ID, &m.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.advance(90 * time.Minute)
	if _, err := f.svc.Cancel(ctx, sess.ID, f.nurseID, "severe hypotension"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got, _ := f.machineSvc.Get(ctx, m.ID)
	if got.Status != machine.StatusAvailable {
		t.Errorf("machine status = %q, want available", got.Status)
	}
	if got.TotalHours != 0 {
		t.Errorf("total hours = %v, want 0 after cancellation", got.TotalHours)
	}
	if got.TotalSessions != 0 {
		t.Errorf("total sessions = %d, want 0 after cancellation", got.TotalSessions)
	}
}

func TestCancel_StartLandingBeforeLockStillReleasesMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.addMachine(t, false)
	sess := f.schedule(t)

	if _, err := f.svc.CheckIn(ctx, sess.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}

	// The treatment starts while the cancellation is in flight, just before
	// the cancel transaction takes the row lock. The cancel must act on what
	// the start committed, not on an earlier read.
	f.sessions.beforeLock = func() {
		if _, err := f.svc.Start(ctx, sess.ID, &m.ID); err != nil {
			t.Fatalf("concurrent start: %v", err)
		}
	}

	out, err := f.svc.Cancel(ctx, sess.ID, f.nurseID, "patient transferred")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if out.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", out.Status)
	}

	got, _ := f.machineSvc.Get(ctx, m.ID)
	if got.Status != machine.StatusAvailable {
		t.Errorf("machine status = %q, want available after cancel", got.Status)
	}
	if got.TotalHours != 0 {
		t.Errorf("total hours = %v, want 0 after cancellation", got.TotalHours)
	}
}

func TestComplete_StartLandingBeforeLockStillReleasesMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.addMachine(t, false)
	sess := f.schedule(t)

	if _, err := f.svc.CheckIn(ctx, sess.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}

	f.sessions.beforeLock = func() {
		if _, err := f.svc.Start(ctx, sess.ID, &m.ID); err != nil {
			t.Fatalf("concurrent start: %v", err)
		}
		f.advance(240 * time.Minute)
	}

	out, err := f.svc.Complete(ctx, sess.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out.ActualDurationMinutes == nil || *out.ActualDurationMinutes != 240 {
		t.Errorf("duration = %v, want 240 from the committed start time", out.ActualDurationMinutes)
	}

	got, _ := f.machineSvc.Get(ctx, m.ID)
	if got.Status != machine.StatusAvailable {
		t.Errorf("machine status = %q, want available after completion", got.Status)
	}
	if got.TotalHours != 4.0 {
		t.Errorf("total hours = %v, want 4.0", got.TotalHours)
	}
}

func TestUpdateAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.schedule(t)

	doctorID := uuid.New()
	updated, err := f.svc.UpdateAssignment(ctx, sess.ID, AssignmentInput{
		PrimaryNurseID:      &f.nurseID,
		SupervisingDoctorID: &doctorID,
	})
	if err != nil {
		t.Fatalf("update assignment: %v", err)
	}
	if updated.PrimaryNurseID == nil || *updated.PrimaryNurseID != f.nurseID {
		t.Errorf("primary nurse = %v, want %v", updated.PrimaryNurseID, f.nurseID)
	}
	if updated.SupervisingDoctorID == nil || *updated.SupervisingDoctorID != doctorID {
		t.Errorf("supervising doctor = %v, want %v", updated.SupervisingDoctorID, doctorID)
	}
}

func TestStats_Window(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.addMachine(t, false)

	done := f.schedule(t)
	if _, err := f.svc.CheckIn(ctx, done.ID); err != nil {
		t.Fatalf("check in: %v", err)
	}
	if _, err := f.svc.Start(ctx, done.ID, &m.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.advance(200 * time.Minute)
	if _, err := f.svc.Complete(ctx, done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	gone := f.schedule(t)
	if _, err := f.svc.Cancel(ctx, gone.ID, f.nurseID, "transport failure"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.schedule(t)

	st, err := f.svc.GetStats(ctx, nil, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Completed != 1 || st.Cancelled != 1 || st.Scheduled != 1 {
		t.Errorf("stats = %+v, want total 3, completed 1, cancelled 1, scheduled 1", st)
	}
	if st.AvgDurationMinutes != 200 {
		t.Errorf("avg duration = %v, want 200", st.AvgDurationMinutes)
	}
}
