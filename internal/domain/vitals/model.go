package vitals

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot maps to the vitals table. A snapshot is one reading from a
// monitoring device; all measurements are optional because devices report
// different subsets.
type Snapshot struct {
	ID               uuid.UUID `db:"id" json:"id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	HeartRate        *int      `db:"heart_rate" json:"heart_rate,omitempty"`
	BloodPressureSys *int      `db:"blood_pressure_sys" json:"blood_pressure_sys,omitempty"`
	BloodPressureDia *int      `db:"blood_pressure_dia" json:"blood_pressure_dia,omitempty"`
	Temperature      *float64  `db:"temperature" json:"temperature,omitempty"`
	OxygenSaturation *float64  `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// HasMeasurements reports whether the snapshot carries at least one reading.
func (s *Snapshot) HasMeasurements() bool {
	return s.HeartRate != nil || s.BloodPressureSys != nil || s.BloodPressureDia != nil ||
		s.Temperature != nil || s.OxygenSaturation != nil
}
