package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renalflow/renalflow/internal/platform/db"
)

type logPG struct{ pool *pgxpool.Pool }

func NewLogPG(pool *pgxpool.Pool) ClinicalLogRepository { return &logPG{pool: pool} }

func (r *logPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, session_id, phase, recorded_at, recorded_by, systolic_bp, diastolic_bp,
	heart_rate, temperature_c, weight_kg, blood_flow_rate, dialysate_flow_rate,
	arterial_pressure, venous_pressure, transmembrane_pressure, ultrafiltration_ml,
	has_incident, note, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Phase, &rec.RecordedAt, &rec.RecordedBy,
		&rec.SystolicBP, &rec.DiastolicBP, &rec.HeartRate, &rec.TemperatureC,
		&rec.WeightKg, &rec.BloodFlowRate, &rec.DialysateFlowRate,
		&rec.ArterialPressure, &rec.VenousPressure, &rec.TransmembranePressure,
		&rec.UltrafiltrationML, &rec.HasIncident, &rec.Note, &rec.CreatedAt)
	return &rec, err
}

func (r *logPG) CreateRecord(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_records (id, session_id, phase, recorded_at, recorded_by,
			systolic_bp, diastolic_bp, heart_rate, temperature_c, weight_kg,
			blood_flow_rate, dialysate_flow_rate, arterial_pressure, venous_pressure,
			transmembrane_pressure, ultrafiltration_ml, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		rec.ID, rec.SessionID, rec.Phase, rec.RecordedAt, rec.RecordedBy,
		rec.SystolicBP, rec.DiastolicBP, rec.HeartRate, rec.TemperatureC, rec.WeightKg,
		rec.BloodFlowRate, rec.DialysateFlowRate, rec.ArterialPressure, rec.VenousPressure,
		rec.TransmembranePressure, rec.UltrafiltrationML, rec.Note)
	return err
}

// SetRecordIncidentFlag raises has_incident on a record only when the record
// belongs to the given session, so an incident cannot tag another session's
// trail.
func (r *logPG) SetRecordIncidentFlag(ctx context.Context, sessionID, recordID uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE session_records SET has_incident = TRUE
		WHERE id = $1 AND session_id = $2`, recordID, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *logPG) ListRecords(ctx context.Context, sessionID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+recordCols+` FROM session_records
		 WHERE session_id = $1 ORDER BY recorded_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *logPG) CreateIncident(ctx context.Context, in *Incident) error {
	in.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_incidents (id, session_id, session_record_id, occurred_at,
			reported_by, severity, description, intervention)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		in.ID, in.SessionID, in.SessionRecordID, in.OccurredAt,
		in.ReportedBy, in.Severity, in.Description, in.Intervention)
	return err
}

func (r *logPG) ListIncidents(ctx context.Context, sessionID uuid.UUID) ([]*Incident, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, session_id, session_record_id, occurred_at, reported_by,
			severity, description, intervention, created_at
		FROM session_incidents WHERE session_id = $1 ORDER BY occurred_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Incident
	for rows.Next() {
		var in Incident
		if err := rows.Scan(&in.ID, &in.SessionID, &in.SessionRecordID, &in.OccurredAt,
			&in.ReportedBy, &in.Severity, &in.Description, &in.Intervention,
			&in.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &in)
	}
	return items, rows.Err()
}

func (r *logPG) CreateMedication(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_medications (id, session_id, name, dose, route,
			administered_at, administered_by, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.SessionID, m.Name, m.Dose, m.Route,
		m.AdministeredAt, m.AdministeredBy, m.Note)
	return err
}

func (r *logPG) ListMedications(ctx context.Context, sessionID uuid.UUID) ([]*Medication, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, session_id, name, dose, route, administered_at, administered_by,
			note, created_at
		FROM session_medications WHERE session_id = $1 ORDER BY administered_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Name, &m.Dose, &m.Route,
			&m.AdministeredAt, &m.AdministeredBy, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, rows.Err()
}

func (r *logPG) CreateConsumable(ctx context.Context, c *Consumable) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_consumables (id, session_id, item_name, lot_id, quantity,
			used_at, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.SessionID, c.ItemName, c.LotID, c.Quantity, c.UsedAt, c.RecordedBy)
	return err
}

func (r *logPG) ListConsumables(ctx context.Context, sessionID uuid.UUID) ([]*Consumable, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, session_id, item_name, lot_id, quantity, used_at, recorded_by, created_at
		FROM session_consumables WHERE session_id = $1 ORDER BY used_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Consumable
	for rows.Next() {
		var c Consumable
		if err := rows.Scan(&c.ID, &c.SessionID, &c.ItemName, &c.LotID, &c.Quantity,
			&c.UsedAt, &c.RecordedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *logPG) CreateSignature(ctx context.Context, sg *Signature) error {
	sg.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_signatures (id, session_id, checkpoint, signed_by,
			signer_role, signed_at, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sg.ID, sg.SessionID, sg.Checkpoint, sg.SignedBy,
		sg.SignerRole, sg.SignedAt, sg.Note)
	return err
}

func (r *logPG) ListSignatures(ctx context.Context, sessionID uuid.UUID) ([]*Signature, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, session_id, checkpoint, signed_by, signer_role, signed_at, note, created_at
		FROM session_signatures WHERE session_id = $1 ORDER BY signed_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Signature
	for rows.Next() {
		var sg Signature
		if err := rows.Scan(&sg.ID, &sg.SessionID, &sg.Checkpoint, &sg.SignedBy,
			&sg.SignerRole, &sg.SignedAt, &sg.Note, &sg.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &sg)
	}
	return items, rows.Err()
}
