package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ReminderRepository interface {
	Create(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error)
	Update(ctx context.Context, r *Reminder) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reminder, int, error)
	ListDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Reminder, error)
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
}
