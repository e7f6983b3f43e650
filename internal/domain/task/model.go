package task

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a scheduled patient task (medication, appointment, measurement).
type Reminder struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Title       string     `db:"title" json:"title"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	DueAt       time.Time  `db:"due_at" json:"due_at"`
	Completed   bool       `db:"completed" json:"completed"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	NotifiedAt  *time.Time `db:"notified_at" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Overdue reports whether the reminder is past due and not completed.
func (r *Reminder) Overdue(now time.Time) bool {
	return !r.Completed && now.After(r.DueAt)
}
