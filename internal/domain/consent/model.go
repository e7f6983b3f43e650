package consent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Consent types recorded in the audit trail.
const (
	TypeLocation = "location"
)

// ConsentRecord maps to the consents table. Records are insert-only: every
// decision becomes a new row and existing rows are never updated or deleted.
type ConsentRecord struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	ConsentType string          `db:"consent_type" json:"consent_type"`
	Granted     bool            `db:"granted" json:"granted"`
	Metadata    json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Coordinates is a device location fix.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// ConsentResult is the outcome of a location consent request. Denial and
// timeout are ordinary outcomes, not errors; Err carries a description for
// the audit trail when Granted is false.
type ConsentResult struct {
	Granted   bool         `json:"granted"`
	ConsentID uuid.UUID    `json:"consent_id"`
	Location  *Coordinates `json:"location,omitempty"`
	Err       string       `json:"error,omitempty"`
}
