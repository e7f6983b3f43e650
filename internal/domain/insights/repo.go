package insights

import (
	"context"

	"github.com/google/uuid"
)

type InsightRepository interface {
	Create(ctx context.Context, i *Insight) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Insight, int, error)
}
