package emergency

import (
	"time"

	"github.com/google/uuid"
)

// Event statuses. An event starts pending and moves to exactly one of the
// terminal states once notification dispatch has been attempted. Terminal
// states are corrected only through an explicit status update.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// ErrorCode classifies why an emergency trigger was rejected.
type ErrorCode string

const (
	CodeInvalidPatientID        ErrorCode = "INVALID_PATIENT_ID"
	CodeMissingEmergencyContact ErrorCode = "MISSING_EMERGENCY_CONTACT"
	CodeDatabaseError           ErrorCode = "DATABASE_ERROR"
	CodeUnknownError            ErrorCode = "UNKNOWN_ERROR"
)

// Event maps to the emergency_events table. Events are never deleted; they
// are the audit trail of every trigger.
type Event struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PatientID         uuid.UUID `db:"patient_id" json:"patient_id"`
	TriggeredBy       string    `db:"triggered_by" json:"triggered_by"`
	TriggeredAt       time.Time `db:"triggered_at" json:"triggered_at"`
	LocationConsented bool      `db:"location_consented" json:"location_consented"`
	Latitude          *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude         *float64  `db:"longitude" json:"longitude,omitempty"`
	Status            string    `db:"status" json:"status"`
	Notes             *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Notification maps to the emergency_notifications table: one row per
// dispatch attempt, kept for audit regardless of outcome.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	EventID   uuid.UUID  `db:"event_id" json:"event_id"`
	Channel   string     `db:"channel" json:"channel"`
	Recipient string     `db:"recipient" json:"recipient"`
	Success   bool       `db:"success" json:"success"`
	MessageID *string    `db:"message_id" json:"message_id,omitempty"`
	Error     *string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}

// NotificationResult is the outcome of one dispatch attempt to one contact.
type NotificationResult struct {
	Success     bool       `json:"success"`
	Channel     string     `json:"channel"`
	Recipient   string     `json:"recipient"`
	MessageID   string     `json:"message_id,omitempty"`
	Err         string     `json:"error,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Result is the flow-level outcome returned to the caller of a trigger.
// Success=true implies EventID resolves to a persisted Event.
type Result struct {
	Success            bool      `json:"success"`
	EventID            uuid.UUID `json:"event_id,omitempty"`
	Message            string    `json:"message"`
	NotificationStatus string    `json:"notification_status,omitempty"`
	Code               ErrorCode `json:"error,omitempty"`
}
