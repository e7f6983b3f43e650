package vitals

import (
	"context"

	"github.com/google/uuid"
)

type SnapshotRepository interface {
	Create(ctx context.Context, s *Snapshot) error
	Latest(ctx context.Context, patientID uuid.UUID) (*Snapshot, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Snapshot, int, error)
}
