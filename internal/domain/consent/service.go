package consent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LocationProvider obtains the patient device's current location. The
// provider is expected to block until the user answers the consent prompt
// or ctx expires; an error means denial, timeout, or hardware failure.
type LocationProvider interface {
	Current(ctx context.Context, patientID uuid.UUID) (*Coordinates, error)
}

// Manager records consent decisions and resolves location consent requests.
type Manager struct {
	repo     ConsentRepository
	location LocationProvider
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewManager(repo ConsentRepository, location LocationProvider, timeout time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{repo: repo, location: location, timeout: timeout, logger: logger}
}

// RequestLocationConsent asks the patient's device for its location, waiting
// at most the configured timeout. The decision is persisted either way; a
// denial or timeout is a normal outcome and the method never returns a Go
// error. Persistence failures are logged and reflected in the result's
// ConsentID being the zero UUID.
func (m *Manager) RequestLocationConsent(ctx context.Context, patientID uuid.UUID) ConsentResult {
	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var result ConsentResult
	loc, err := m.location.Current(reqCtx, patientID)
	if err != nil {
		result = ConsentResult{Granted: false, Err: err.Error()}
	} else {
		result = ConsentResult{Granted: true, Location: loc}
	}

	meta := map[string]interface{}{}
	if result.Err != "" {
		meta["reason"] = result.Err
	}
	if result.Location != nil {
		meta["latitude"] = result.Location.Latitude
		meta["longitude"] = result.Location.Longitude
		meta["accuracy"] = result.Location.Accuracy
	}
	metaJSON, _ := json.Marshal(meta)

	id, err := m.LogConsentDecision(ctx, patientID, TypeLocation, result.Granted, metaJSON)
	if err != nil {
		m.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("failed to persist consent decision")
	} else {
		result.ConsentID = id
	}

	return result
}

// LogConsentDecision appends one consent record. It never modifies prior
// records; the only error surface is the insert itself.
func (m *Manager) LogConsentDecision(ctx context.Context, patientID uuid.UUID, consentType string, granted bool, metadata json.RawMessage) (uuid.UUID, error) {
	rec := &ConsentRecord{
		PatientID:   patientID,
		ConsentType: consentType,
		Granted:     granted,
		Metadata:    metadata,
	}
	if err := m.repo.Insert(ctx, rec); err != nil {
		return uuid.Nil, err
	}
	return rec.ID, nil
}

// History lists a patient's consent records most recent first.
func (m *Manager) History(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ConsentRecord, int, error) {
	return m.repo.ListByPatient(ctx, patientID, limit, offset)
}
