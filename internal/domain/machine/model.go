package machine

import (
	"time"

	"github.com/google/uuid"
)

// Machine statuses. A machine is exclusively held while in_use; maintenance
// and out_of_service are set by the maintenance workflow, never by sessions.
const (
	StatusAvailable    = "available"
	StatusInUse        = "in_use"
	StatusMaintenance  = "maintenance"
	StatusOutOfService = "out_of_service"
)

// ValidStatus reports whether s is a known machine status.
func ValidStatus(s string) bool {
	switch s {
	case StatusAvailable, StatusInUse, StatusMaintenance, StatusOutOfService:
		return true
	}
	return false
}

// Machine maps to the machines table.
type Machine struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	SerialNumber  *string    `db:"serial_number" json:"serial_number,omitempty"`
	ModelNumber   *string    `db:"model_number" json:"model_number,omitempty"`
	Manufacturer  *string    `db:"manufacturer" json:"manufacturer,omitempty"`
	Status        string     `db:"status" json:"status"`
	IsolationOnly bool       `db:"isolation_only" json:"isolation_only"`
	TotalHours    float64    `db:"total_hours" json:"total_hours"`
	TotalSessions int        `db:"total_sessions" json:"total_sessions"`
	LastServiceAt *time.Time `db:"last_service_at" json:"last_service_at,omitempty"`
	Note          *string    `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
