package emergency

import (
	"context"

	"github.com/google/uuid"
)

type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id, patientID uuid.UUID) (*Event, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, notes *string) error
	UpdateLocation(ctx context.Context, id uuid.UUID, consented bool, latitude, longitude *float64) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Event, int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Notification, error)
}
