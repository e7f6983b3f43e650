package journal

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a patient journal note, optionally with one photo attachment.
type Entry struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	Title            string    `db:"title" json:"title"`
	Body             string    `db:"body" json:"body"`
	Mood             *string   `db:"mood" json:"mood,omitempty"`
	AttachmentURL    *string   `db:"attachment_url" json:"attachment_url,omitempty"`
	AttachmentBlobID *string   `db:"attachment_blob_id" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

var validMoods = map[string]bool{
	"great":    true,
	"good":     true,
	"okay":     true,
	"low":      true,
	"terrible": true,
}
