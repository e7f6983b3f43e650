package vitals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/platform/realtime"
)

type Service struct {
	snapshots SnapshotRepository
	publisher realtime.Publisher
	logger    zerolog.Logger
}

// NewService builds a vitals service. publisher may be nil when no
// realtime hub is wired (tests, CLI).
func NewService(snapshots SnapshotRepository, publisher realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{snapshots: snapshots, publisher: publisher, logger: logger}
}

// Record stores a snapshot and notifies realtime subscribers. Broadcast
// failures are logged only; a stored reading is never rolled back because
// a websocket client could not be told about it.
func (s *Service) Record(ctx context.Context, snap *Snapshot) error {
	if snap.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if !snap.HasMeasurements() {
		return fmt.Errorf("snapshot has no measurements")
	}
	if snap.HeartRate != nil && (*snap.HeartRate <= 0 || *snap.HeartRate > 400) {
		return fmt.Errorf("heart_rate out of range: %d", *snap.HeartRate)
	}
	if snap.OxygenSaturation != nil && (*snap.OxygenSaturation <= 0 || *snap.OxygenSaturation > 100) {
		return fmt.Errorf("oxygen_saturation out of range: %.1f", *snap.OxygenSaturation)
	}
	if snap.RecordedAt.IsZero() {
		snap.RecordedAt = time.Now().UTC()
	}

	if err := s.snapshots.Create(ctx, snap); err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}

	if s.publisher != nil {
		event := realtime.Event{
			Type:       "created",
			Topic:      realtime.VitalsTopic(snap.PatientID),
			Resource:   "vitals",
			ResourceID: snap.ID.String(),
			Timestamp:  time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error().Err(err).Str("patient_id", snap.PatientID.String()).Msg("failed to publish vitals event")
		}
	}
	return nil
}

// Latest returns the most recent snapshot for a patient.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*Snapshot, error) {
	return s.snapshots.Latest(ctx, patientID)
}

// History returns snapshots most recent first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Snapshot, int, error) {
	return s.snapshots.ListByPatient(ctx, patientID, limit, offset)
}
