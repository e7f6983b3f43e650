package insights

import (
	"time"

	"github.com/google/uuid"
)

// Insight is an AI-generated summary of a patient's recent vitals.
type Insight struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	Content     string    `db:"content" json:"content"`
	GeneratedAt time.Time `db:"generated_at" json:"generated_at"`
}
