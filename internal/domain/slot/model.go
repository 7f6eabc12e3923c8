package slot

import (
	"time"

	"github.com/google/uuid"
)

// Slot maps to the session_slots table: a named recurring weekly time window
// with a capacity ceiling. Sessions reference slots, they never own them.
type Slot struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	StartTime   string    `db:"start_time" json:"start_time"` // "HH:MM", 24h
	EndTime     string    `db:"end_time" json:"end_time"`
	DaysOfWeek  []int16   `db:"days_of_week" json:"days_of_week"` // 0=Sunday .. 6=Saturday
	MaxPatients int       `db:"max_patients" json:"max_patients"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
