package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. The dialysis core only reads patients;
// demographics management belongs to the patient registry service.
type Patient struct {
	ID                uuid.UUID `db:"id" json:"id"`
	MRN               string    `db:"mrn" json:"mrn"`
	FullName          string    `db:"full_name" json:"full_name"`
	RequiresIsolation bool      `db:"requires_isolation" json:"requires_isolation"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
