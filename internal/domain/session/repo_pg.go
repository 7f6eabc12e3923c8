package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renalflow/renalflow/internal/platform/db"
)

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

const sessionCols = `id, session_number, patient_id, prescription_id, machine_id, slot_id,
	status, session_date, scheduled_start_time, actual_start_time, actual_end_time,
	actual_duration_minutes, is_recurring, recurrence_group_id, primary_nurse_id,
	supervising_doctor_id, cancellation_reason, cancelled_by, cancelled_at,
	created_at, updated_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.SessionNumber, &s.PatientID, &s.PrescriptionID,
		&s.MachineID, &s.SlotID, &s.Status, &s.SessionDate, &s.ScheduledStartTime,
		&s.ActualStartTime, &s.ActualEndTime, &s.ActualDurationMinutes,
		&s.IsRecurring, &s.RecurrenceGroupID, &s.PrimaryNurseID,
		&s.SupervisingDoctorID, &s.CancellationReason, &s.CancelledBy,
		&s.CancelledAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Session) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO sessions (id, session_number, patient_id, prescription_id, slot_id,
			status, session_date, scheduled_start_time, is_recurring,
			recurrence_group_id, primary_nurse_id, supervising_doctor_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		s.ID, s.SessionNumber, s.PatientID, s.PrescriptionID, s.SlotID,
		s.Status, s.SessionDate, s.ScheduledStartTime, s.IsRecurring,
		s.RecurrenceGroupID, s.PrimaryNurseID, s.SupervisingDoctorID)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Session, error) {
	return scanSession(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) NextSequence(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO session_counters (year, value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET value = session_counters.value + 1
		RETURNING value`, year).Scan(&seq)
	return seq, err
}

func (r *repoPG) MarkCheckedIn(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE sessions SET status=$2, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusCheckedIn, StatusScheduled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) MarkStarted(ctx context.Context, id uuid.UUID, machineID *uuid.UUID, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE sessions SET status=$2, machine_id=$3, actual_start_time=$4, updated_at=NOW()
		WHERE id = $1 AND status = $5`,
		id, StatusInProgress, machineID, at, StatusCheckedIn)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, durationMinutes int) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE sessions SET status=$2, actual_end_time=$3, actual_duration_minutes=$4,
			updated_at=NOW()
		WHERE id = $1 AND status = $5`,
		id, StatusCompleted, at, durationMinutes, StatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) MarkCancelled(ctx context.Context, id uuid.UUID, by uuid.UUID, reason string, at time.Time) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE sessions SET status=$2, cancelled_by=$3, cancellation_reason=$4,
			cancelled_at=$5, updated_at=NOW()
		WHERE id = $1 AND status IN ($6, $7, $8)`,
		id, StatusCancelled, by, reason, at,
		StatusScheduled, StatusCheckedIn, StatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) UpdateAssignment(ctx context.Context, s *Session) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE sessions SET slot_id=$2, primary_nurse_id=$3, supervising_doctor_id=$4,
			scheduled_start_time=$5, updated_at=NOW()
		WHERE id = $1 AND status NOT IN ($6, $7)`,
		s.ID, s.SlotID, s.PrimaryNurseID, s.SupervisingDoctorID,
		s.ScheduledStartTime, StatusCompleted, StatusCancelled)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Session, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE session_date >= $1 AND session_date < $2`, from, to).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+sessionCols+` FROM sessions
		WHERE session_date >= $1 AND session_date < $2
		ORDER BY session_date, scheduled_start_time
		LIMIT $3 OFFSET $4`, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectSessions(rows)
	return items, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE patient_id = $1`, patientID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+sessionCols+` FROM sessions
		WHERE patient_id = $1
		ORDER BY session_date DESC, scheduled_start_time DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectSessions(rows)
	return items, total, err
}

func (r *repoPG) ListByRecurrenceGroup(ctx context.Context, groupID uuid.UUID) ([]*Session, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+sessionCols+` FROM sessions
		WHERE recurrence_group_id = $1
		ORDER BY session_date`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]*Session, error) {
	var items []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// Stats aggregates in one round trip. Status breakdowns use FILTER so the
// date predicate is applied exactly once, and the incident count joins the
// same windowed session set.
func (r *repoPG) Stats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	var st Stats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'scheduled'),
			COUNT(*) FILTER (WHERE status = 'checked_in'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COALESCE(AVG(actual_duration_minutes) FILTER (WHERE status = 'completed'), 0),
			(SELECT COUNT(*) FROM session_incidents i
			 JOIN sessions s2 ON s2.id = i.session_id
			 WHERE ($1::timestamptz IS NULL OR s2.session_date >= $1)
			   AND ($2::timestamptz IS NULL OR s2.session_date < $2))
		FROM sessions
		WHERE ($1::timestamptz IS NULL OR session_date >= $1)
		  AND ($2::timestamptz IS NULL OR session_date < $2)`,
		from, to).Scan(&st.Total, &st.Scheduled, &st.CheckedIn, &st.InProgress,
		&st.Completed, &st.Cancelled, &st.AvgDurationMinutes, &st.IncidentCount)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
