package emergency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/domain/consent"
	"github.com/vitalink/vitalink/internal/domain/profile"
	"github.com/vitalink/vitalink/internal/domain/vitals"
	"github.com/vitalink/vitalink/internal/platform/realtime"
)

// PatientSource resolves patient records for trigger validation.
type PatientSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*profile.Patient, error)
}

// ContactSource lists a patient's emergency contacts in priority order.
type ContactSource interface {
	ListContacts(ctx context.Context, patientID uuid.UUID) ([]*profile.EmergencyContact, error)
}

// VitalsSource provides the patient's most recent vitals snapshot.
type VitalsSource interface {
	Latest(ctx context.Context, patientID uuid.UUID) (*vitals.Snapshot, error)
}

// ConsentRequester runs the location-consent flow for a patient.
type ConsentRequester interface {
	RequestLocationConsent(ctx context.Context, patientID uuid.UUID) consent.ConsentResult
}

// Controller orchestrates the emergency flow: it records the event, runs the
// consent and vitals lookups, drives notification dispatch through the
// Dispatcher, and persists the terminal status. Recording the event is
// decoupled from delivering the alert so a slow or failing channel never
// prevents the trigger from being acknowledged.
type Controller struct {
	events        EventRepository
	notifications NotificationRepository
	patients      PatientSource
	contacts      ContactSource
	vitals        VitalsSource
	consents      ConsentRequester
	dispatcher    *Dispatcher
	publisher     realtime.Publisher
	logger        zerolog.Logger
}

// NewController wires the controller. consents, vitals and publisher may be
// nil; the corresponding step is skipped.
func NewController(
	events EventRepository,
	notifications NotificationRepository,
	patients PatientSource,
	contacts ContactSource,
	vitalsSrc VitalsSource,
	consents ConsentRequester,
	dispatcher *Dispatcher,
	publisher realtime.Publisher,
	logger zerolog.Logger,
) *Controller {
	return &Controller{
		events:        events,
		notifications: notifications,
		patients:      patients,
		contacts:      contacts,
		vitals:        vitalsSrc,
		consents:      consents,
		dispatcher:    dispatcher,
		publisher:     publisher,
		logger:        logger.With().Str("component", "emergency_controller").Logger(),
	}
}

// TriggerEmergency validates the patient, verifies at least one emergency
// contact exists, and inserts a pending event. It returns as soon as the
// event row exists; consent, vitals and dispatch run afterwards via Finalize
// and report completion through status updates. Failures are reported through
// the result's error code, never as a Go error.
func (c *Controller) TriggerEmergency(ctx context.Context, patientID uuid.UUID, triggeredBy string) Result {
	if patientID == uuid.Nil {
		return Result{
			Message:            "patient id is required",
			NotificationStatus: StatusFailed,
			Code:               CodeInvalidPatientID,
		}
	}

	if _, err := c.patients.GetPatient(ctx, patientID); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return Result{
				Message:            "patient not found",
				NotificationStatus: StatusFailed,
				Code:               CodeInvalidPatientID,
			}
		}
		c.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("patient lookup failed")
		return Result{
			Message:            "could not verify patient",
			NotificationStatus: StatusFailed,
			Code:               CodeUnknownError,
		}
	}

	contacts, err := c.contacts.ListContacts(ctx, patientID)
	if err != nil {
		c.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("contact lookup failed")
		return Result{
			Message:            "could not load emergency contacts",
			NotificationStatus: StatusFailed,
			Code:               CodeDatabaseError,
		}
	}
	if len(contacts) == 0 {
		return Result{
			Message:            "no emergency contact configured",
			NotificationStatus: StatusFailed,
			Code:               CodeMissingEmergencyContact,
		}
	}

	event := &Event{
		PatientID:   patientID,
		TriggeredBy: triggeredBy,
		TriggeredAt: time.Now().UTC(),
		Status:      StatusPending,
	}
	if err := c.events.Create(ctx, event); err != nil {
		c.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("event insert failed")
		return Result{
			Message:            "could not record emergency event",
			NotificationStatus: StatusFailed,
			Code:               CodeDatabaseError,
		}
	}

	c.logger.Info().
		Str("event_id", event.ID.String()).
		Str("patient_id", patientID.String()).
		Msg("emergency triggered")

	return Result{
		Success:            true,
		EventID:            event.ID,
		Message:            "emergency recorded, notifying contacts",
		NotificationStatus: StatusPending,
	}
}

// Finalize runs the post-trigger flow for an already-recorded event: consent,
// location attachment, vitals lookup, per-contact dispatch, and terminal
// status. Every step is best-effort; the alert is attempted even when consent
// is denied or vitals are absent.
func (c *Controller) Finalize(ctx context.Context, eventID, patientID uuid.UUID) {
	if c.consents != nil {
		cr := c.consents.RequestLocationConsent(ctx, patientID)
		c.UpdateEmergencyWithLocation(ctx, eventID, cr)
	}

	event, err := c.events.GetByID(ctx, eventID, patientID)
	if err != nil {
		c.logger.Error().Err(err).Str("event_id", eventID.String()).Msg("event refetch failed")
		return
	}

	var snap *vitals.Snapshot
	if c.vitals != nil {
		snap, err = c.vitals.Latest(ctx, patientID)
		if err != nil && !errors.Is(err, vitals.ErrNotFound) {
			c.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("vitals lookup failed")
		}
	}

	contacts, err := c.contacts.ListContacts(ctx, patientID)
	if err != nil {
		c.logger.Error().Err(err).Str("patient_id", patientID.String()).Msg("contact lookup failed")
		c.UpdateEmergencyStatus(ctx, eventID, StatusFailed, strptr("could not load emergency contacts"))
		return
	}

	anySent := false
	for _, contact := range contacts {
		res := c.dispatcher.SendNotification(ctx, event, snap, contact)
		if res.Success {
			anySent = true
		}
		n := &Notification{
			EventID:   eventID,
			Channel:   res.Channel,
			Recipient: res.Recipient,
			Success:   res.Success,
			SentAt:    res.DeliveredAt,
		}
		if res.MessageID != "" {
			n.MessageID = &res.MessageID
		}
		if res.Err != "" {
			n.Error = &res.Err
		}
		if err := c.notifications.Create(ctx, n); err != nil {
			c.logger.Error().Err(err).Str("event_id", eventID.String()).Msg("notification record insert failed")
		}
	}

	status := StatusFailed
	if anySent {
		status = StatusSent
	}
	c.UpdateEmergencyStatus(ctx, eventID, status, nil)

	if c.publisher != nil {
		err := c.publisher.Publish(ctx, realtime.Event{
			Type:       "updated",
			Topic:      realtime.EmergencyTopic(patientID),
			Resource:   "emergency",
			ResourceID: eventID.String(),
			Timestamp:  time.Now().UTC(),
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("event_id", eventID.String()).Msg("realtime publish failed")
		}
	}
}

// UpdateEmergencyWithLocation attaches the consent outcome to the event. When
// consent was granted the coordinates are stored; otherwise only
// location_consented=false is recorded. Persistence failures are logged and
// swallowed so they cannot block the alert.
func (c *Controller) UpdateEmergencyWithLocation(ctx context.Context, eventID uuid.UUID, cr consent.ConsentResult) {
	var lat, lon *float64
	if cr.Granted && cr.Location != nil {
		lat = &cr.Location.Latitude
		lon = &cr.Location.Longitude
	}
	if err := c.events.UpdateLocation(ctx, eventID, cr.Granted, lat, lon); err != nil {
		c.logger.Error().Err(err).
			Str("event_id", eventID.String()).
			Bool("granted", cr.Granted).
			Msg("location attachment failed")
	}
}

// UpdateEmergencyStatus sets the event's terminal status. The update is
// idempotent and failures are logged only.
func (c *Controller) UpdateEmergencyStatus(ctx context.Context, eventID uuid.UUID, status string, notes *string) {
	if err := c.events.UpdateStatus(ctx, eventID, status, notes); err != nil {
		c.logger.Error().Err(err).
			Str("event_id", eventID.String()).
			Str("status", status).
			Msg("status update failed")
	}
}

// GetEmergencyHistory returns the patient's events, most recent first.
func (c *Controller) GetEmergencyHistory(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	return c.events.ListByPatient(ctx, patientID, limit, offset)
}

// GetEmergencyEvent looks up a single event scoped to the patient.
func (c *Controller) GetEmergencyEvent(ctx context.Context, eventID, patientID uuid.UUID) (*Event, error) {
	return c.events.GetByID(ctx, eventID, patientID)
}

// GetNotifications returns the dispatch attempts recorded for an event.
func (c *Controller) GetNotifications(ctx context.Context, eventID uuid.UUID) ([]*Notification, error) {
	return c.notifications.ListByEvent(ctx, eventID)
}

// GetLatestVitals returns the patient's most recent snapshot, or nil when
// none has been recorded.
func (c *Controller) GetLatestVitals(ctx context.Context, patientID uuid.UUID) (*vitals.Snapshot, error) {
	if c.vitals == nil {
		return nil, nil
	}
	snap, err := c.vitals.Latest(ctx, patientID)
	if errors.Is(err, vitals.ErrNotFound) {
		return nil, nil
	}
	return snap, err
}

func strptr(s string) *string { return &s }
