package machine

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

const machineCols = `id, name, serial_number, model_number, manufacturer, status,
	isolation_only, total_hours, total_sessions, last_service_at, note, created_at, updated_at`

func scanMachine(row pgx.Row) (*Machine, error) {
	var m Machine
	err := row.Scan(&m.ID, &m.Name, &m.SerialNumber, &m.ModelNumber, &m.Manufacturer,
		&m.Status, &m.IsolationOnly, &m.TotalHours, &m.TotalSessions,
		&m.LastServiceAt, &m.Note, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Machine) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO machines (id, name, serial_number, model_number, manufacturer,
			status, isolation_only, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.Name, m.SerialNumber, m.ModelNumber, m.Manufacturer,
		m.Status, m.IsolationOnly, m.Note)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Machine, error) {
	return scanMachine(r.conn(ctx).QueryRow(ctx,
		`SELECT `+machineCols+` FROM machines WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Machine, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM machines`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+machineCols+` FROM machines ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListAvailable(ctx context.Context, isolationOnly bool) ([]*Machine, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+machineCols+` FROM machines
		 WHERE status = $1 AND isolation_only = $2 ORDER BY name`,
		StatusAvailable, isolationOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, m *Machine) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE machines SET name=$2, serial_number=$3, model_number=$4, manufacturer=$5,
			isolation_only=$6, last_service_at=$7, note=$8, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.SerialNumber, m.ModelNumber, m.Manufacturer,
		m.IsolationOnly, m.LastServiceAt, m.Note)
	return err
}

func (r *repoPG) Bind(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE machines SET status=$2, updated_at=NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusInUse, StatusAvailable)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE machines SET status=$2, updated_at=NOW() WHERE id = $1`,
		id, StatusAvailable)
	return err
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE machines SET status=$2, updated_at=NOW()
		WHERE id = $1 AND status <> $3`,
		id, status, StatusInUse)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) AddUsage(ctx context.Context, id uuid.UUID, hours float64) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE machines
		SET total_hours = total_hours + $2, total_sessions = total_sessions + 1,
			updated_at = NOW()
		WHERE id = $1`,
		id, hours)
	return err
}
