package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renalflow/renalflow/internal/platform/db"
)

// ErrNotFound is returned when a prescription is absent from the caller's
// organization scope.
var ErrNotFound = errors.New("prescription not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, prescribed_by, frequency_per_week, duration_minutes,
			blood_flow_rate, dialysate_flow_rate, ultrafiltration_goal_ml, dialyzer_type,
			active, start_date, end_date, created_at, updated_at
		FROM prescriptions WHERE id = $1`, id).
		Scan(&p.ID, &p.PatientID, &p.PrescribedBy, &p.FrequencyPerWeek, &p.DurationMinutes,
			&p.BloodFlowRate, &p.DialysateFlowRate, &p.UltrafiltrationGoalML, &p.DialyzerType,
			&p.Active, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
