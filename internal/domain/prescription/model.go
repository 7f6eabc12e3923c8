package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Prescription maps to the prescriptions table. Read-only here: the session
// core consumes frequency and clinical parameters, it never writes them.
type Prescription struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	PatientID             uuid.UUID  `db:"patient_id" json:"patient_id"`
	PrescribedBy          *uuid.UUID `db:"prescribed_by" json:"prescribed_by,omitempty"`
	FrequencyPerWeek      int        `db:"frequency_per_week" json:"frequency_per_week"`
	DurationMinutes       int        `db:"duration_minutes" json:"duration_minutes"`
	BloodFlowRate         *int       `db:"blood_flow_rate" json:"blood_flow_rate,omitempty"`
	DialysateFlowRate     *int       `db:"dialysate_flow_rate" json:"dialysate_flow_rate,omitempty"`
	UltrafiltrationGoalML *float64   `db:"ultrafiltration_goal_ml" json:"ultrafiltration_goal_ml,omitempty"`
	DialyzerType          *string    `db:"dialyzer_type" json:"dialyzer_type,omitempty"`
	Active                bool       `db:"active" json:"active"`
	StartDate             *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate               *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}
