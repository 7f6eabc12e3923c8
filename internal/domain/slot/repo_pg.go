package slot

import (
	"context"
	"errors"

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

const slotCols = `id, name, start_time, end_time, days_of_week, max_patients, active, created_at, updated_at`

// days_of_week is a smallint[] column; pgx maps it to []int16 directly, so
// the typed list never leaves the adapter as anything else.
func scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot
	err := row.Scan(&sl.ID, &sl.Name, &sl.StartTime, &sl.EndTime, &sl.DaysOfWeek,
		&sl.MaxPatients, &sl.Active, &sl.CreatedAt, &sl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &sl, err
}

func (r *repoPG) Create(ctx context.Context, sl *Slot) error {
	sl.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO session_slots (id, name, start_time, end_time, days_of_week, max_patients, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sl.ID, sl.Name, sl.StartTime, sl.EndTime, sl.DaysOfWeek, sl.MaxPatients, sl.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx,
		`SELECT `+slotCols+` FROM session_slots WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, sl *Slot) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE session_slots SET name=$2, start_time=$3, end_time=$4, days_of_week=$5,
			max_patients=$6, active=$7, updated_at=NOW()
		WHERE id = $1`,
		sl.ID, sl.Name, sl.StartTime, sl.EndTime, sl.DaysOfWeek, sl.MaxPatients, sl.Active)
	return err
}

func (r *repoPG) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Slot, int, error) {
	where := ``
	if activeOnly {
		where = ` WHERE active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM session_slots`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+slotCols+` FROM session_slots`+where+` ORDER BY start_time, name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, sl)
	}
	return items, total, rows.Err()
}
