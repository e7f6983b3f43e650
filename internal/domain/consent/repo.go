package consent

import (
	"context"

	"github.com/google/uuid"
)

// ConsentRepository is insert-only by design: no Update or Delete methods
// exist so the audit trail cannot be rewritten through this interface.
type ConsentRepository interface {
	Insert(ctx context.Context, r *ConsentRecord) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ConsentRecord, int, error)
}
