package emergency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/domain/profile"
	"github.com/vitalink/vitalink/internal/domain/vitals"
	"github.com/vitalink/vitalink/internal/platform/notify"
)

// Dispatcher sends emergency alerts to a single recipient over the
// recipient's preferred channel. It makes exactly one delivery attempt per
// call and reports the outcome as a NotificationResult; transport errors are
// captured in the result, never returned. There is no silent fallback to a
// different channel.
type Dispatcher struct {
	email  notify.EmailSender
	sms    notify.SMSSender
	logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher. Either sender may be nil, in which case
// the corresponding channel is reported as unavailable.
func NewDispatcher(email notify.EmailSender, sms notify.SMSSender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		email:  email,
		sms:    sms,
		logger: logger.With().Str("component", "emergency_dispatcher").Logger(),
	}
}

// ValidateChannel reports whether the channel is a supported value and its
// transport is configured.
func (d *Dispatcher) ValidateChannel(channel string) bool {
	switch channel {
	case profile.ChannelEmail:
		return d.email != nil
	case profile.ChannelSMS:
		return d.sms != nil
	default:
		return false
	}
}

// SendNotification builds the alert message from the event and the patient's
// latest known vitals and dispatches it through the contact's preferred
// channel. A contact with no address for that channel fails without any
// transport call.
func (d *Dispatcher) SendNotification(ctx context.Context, event *Event, snap *vitals.Snapshot, contact *profile.EmergencyContact) NotificationResult {
	result := NotificationResult{
		Channel:   contact.PreferredChannel,
		Recipient: "unknown",
	}

	if !d.ValidateChannel(contact.PreferredChannel) {
		result.Err = fmt.Sprintf("channel %q is not available", contact.PreferredChannel)
		d.logger.Warn().
			Str("event_id", event.ID.String()).
			Str("channel", contact.PreferredChannel).
			Msg("notification channel unavailable")
		return result
	}

	message := formatAlertMessage(event, snap)

	var msgID string
	var err error
	switch contact.PreferredChannel {
	case profile.ChannelEmail:
		if contact.Email == nil || *contact.Email == "" {
			result.Err = "contact has no email address"
			return result
		}
		result.Recipient = *contact.Email
		msgID, err = d.email.SendEmail(ctx, *contact.Email, "EMERGENCY ALERT", message)
	case profile.ChannelSMS:
		if contact.Phone == nil || *contact.Phone == "" {
			result.Err = "contact has no phone number"
			return result
		}
		result.Recipient = *contact.Phone
		msgID, err = d.sms.SendSMS(ctx, *contact.Phone, message)
	}

	if err != nil {
		result.Err = err.Error()
		d.logger.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("channel", contact.PreferredChannel).
			Str("recipient", result.Recipient).
			Msg("emergency notification failed")
		return result
	}

	now := time.Now().UTC()
	result.Success = true
	// Transports that report no id get a locally minted one so the audit row
	// stays traceable.
	result.MessageID = msgID
	if result.MessageID == "" {
		result.MessageID = uuid.NewString()
	}
	result.DeliveredAt = &now
	d.logger.Info().
		Str("event_id", event.ID.String()).
		Str("channel", contact.PreferredChannel).
		Str("recipient", result.Recipient).
		Msg("emergency notification sent")
	return result
}

// formatAlertMessage renders the alert body. Vitals lines appear only for
// measurements present in the snapshot; a nil snapshot produces no vitals
// section at all.
func formatAlertMessage(event *Event, snap *vitals.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "EMERGENCY ALERT: an emergency was triggered at %s.\n",
		event.TriggeredAt.UTC().Format(time.RFC1123))

	if snap != nil && snap.HasMeasurements() {
		b.WriteString("\nLatest known vitals:\n")
		if snap.HeartRate != nil {
			fmt.Fprintf(&b, "- Heart rate: %d bpm\n", *snap.HeartRate)
		}
		if snap.BloodPressureSys != nil && snap.BloodPressureDia != nil {
			fmt.Fprintf(&b, "- Blood pressure: %d/%d mmHg\n", *snap.BloodPressureSys, *snap.BloodPressureDia)
		}
		if snap.Temperature != nil {
			fmt.Fprintf(&b, "- Temperature: %.1f C\n", *snap.Temperature)
		}
		if snap.OxygenSaturation != nil {
			fmt.Fprintf(&b, "- Oxygen saturation: %.0f%%\n", *snap.OxygenSaturation)
		}
	}

	if event.LocationConsented && event.Latitude != nil && event.Longitude != nil {
		fmt.Fprintf(&b, "\nLast known location: %.5f, %.5f\n", *event.Latitude, *event.Longitude)
	}

	b.WriteString("\nThis automated alert is not a substitute for calling emergency services.")
	return b.String()
}
