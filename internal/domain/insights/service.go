package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/domain/vitals"
)

// ErrUnavailable marks generation failures from the external endpoint.
// Callers map it to a service-unavailable response; stored insights and
// dashboards are unaffected.
var ErrUnavailable = errors.New("insight generation unavailable")

const recentReadings = 20

// VitalsSource provides the readings summarised into the prompt.
type VitalsSource interface {
	History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*vitals.Snapshot, int, error)
}

type Service struct {
	insights  InsightRepository
	vitals    VitalsSource
	generator Generator
	logger    zerolog.Logger
}

func NewService(insights InsightRepository, vitalsSrc VitalsSource, generator Generator, logger zerolog.Logger) *Service {
	return &Service{
		insights:  insights,
		vitals:    vitalsSrc,
		generator: generator,
		logger:    logger.With().Str("component", "insights_service").Logger(),
	}
}

// GenerateInsight summarises the patient's recent vitals through the
// generator and stores the result.
func (s *Service) GenerateInsight(ctx context.Context, patientID uuid.UUID) (*Insight, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}

	readings, _, err := s.vitals.History(ctx, patientID, recentReadings, 0)
	if err != nil {
		return nil, fmt.Errorf("load vitals history: %w", err)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("no vitals recorded for patient")
	}

	content, err := s.generator.Generate(ctx, buildPrompt(readings))
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("insight generation failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	insight := &Insight{
		PatientID:   patientID,
		Content:     content,
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.insights.Create(ctx, insight); err != nil {
		return nil, fmt.Errorf("store insight: %w", err)
	}
	return insight, nil
}

func (s *Service) ListInsights(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Insight, int, error) {
	return s.insights.ListByPatient(ctx, patientID, limit, offset)
}

func buildPrompt(readings []*vitals.Snapshot) string {
	var b strings.Builder
	b.WriteString("Summarise the following recent patient vitals in plain language, ")
	b.WriteString("noting trends and anything outside typical ranges:\n")
	for _, r := range readings {
		fmt.Fprintf(&b, "- %s:", r.RecordedAt.UTC().Format(time.RFC3339))
		if r.HeartRate != nil {
			fmt.Fprintf(&b, " heart rate %d bpm,", *r.HeartRate)
		}
		if r.BloodPressureSys != nil && r.BloodPressureDia != nil {
			fmt.Fprintf(&b, " blood pressure %d/%d mmHg,", *r.BloodPressureSys, *r.BloodPressureDia)
		}
		if r.Temperature != nil {
			fmt.Fprintf(&b, " temperature %.1f C,", *r.Temperature)
		}
		if r.OxygenSaturation != nil {
			fmt.Fprintf(&b, " oxygen saturation %.0f%%,", *r.OxygenSaturation)
		}
		b.WriteString("\n")
	}
	return b.String()
}
