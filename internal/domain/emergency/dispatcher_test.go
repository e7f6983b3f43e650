package emergency

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/domain/profile"
	"github.com/vitalink/vitalink/internal/domain/vitals"
	"github.com/vitalink/vitalink/internal/platform/notify"
)

func testEvent() *Event {
	return &Event{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		TriggeredBy: "user-1",
		TriggeredAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Status:      StatusPending,
	}
}

func emailContact(addr string) *profile.EmergencyContact {
	return &profile.EmergencyContact{
		ID:               uuid.New(),
		Name:             "Jordan Reyes",
		Email:            &addr,
		PreferredChannel: profile.ChannelEmail,
		Priority:         1,
	}
}

func smsContact(phone string) *profile.EmergencyContact {
	return &profile.EmergencyContact{
		ID:               uuid.New(),
		Name:             "Sam Berg",
		Phone:            &phone,
		PreferredChannel: profile.ChannelSMS,
		Priority:         2,
	}
}

func TestDispatcher_SendEmail(t *testing.T) {
	email := &notify.MockEmailSender{}
	d := NewDispatcher(email, &notify.MockSMSSender{}, zerolog.Nop())

	res := d.SendNotification(context.Background(), testEvent(), nil, emailContact("jordan@example.com"))

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Err)
	}
	if res.Channel != profile.ChannelEmail {
		t.Errorf("expected channel email, got %s", res.Channel)
	}
	if res.Recipient != "jordan@example.com" {
		t.Errorf("expected recipient jordan@example.com, got %s", res.Recipient)
	}
	if res.MessageID == "" {
		t.Error("expected message id on success")
	}
	if res.DeliveredAt == nil {
		t.Error("expected delivered_at on success")
	}
	calls := email.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 email call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Body, "not a substitute for calling emergency services") {
		t.Error("message is missing the disclaimer")
	}
}

func TestDispatcher_CarriesProviderMessageID(t *testing.T) {
	email := &notify.MockEmailSender{MessageID: "provider-msg-17"}
	d := NewDispatcher(email, nil, zerolog.Nop())

	res := d.SendNotification(context.Background(), testEvent(), nil, emailContact("jordan@example.com"))

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Err)
	}
	if res.MessageID != "provider-msg-17" {
		t.Errorf("expected the provider's message id, got %q", res.MessageID)
	}
}

func TestDispatcher_SendSMS(t *testing.T) {
	sms := &notify.MockSMSSender{}
	d := NewDispatcher(&notify.MockEmailSender{}, sms, zerolog.Nop())

	res := d.SendNotification(context.Background(), testEvent(), nil, smsContact("+14155550123"))

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Err)
	}
	if res.Recipient != "+14155550123" {
		t.Errorf("expected recipient +14155550123, got %s", res.Recipient)
	}
	if len(sms.Calls()) != 1 {
		t.Fatalf("expected 1 sms call, got %d", len(sms.Calls()))
	}
}

func TestDispatcher_MissingContactMethod_NoTransportCall(t *testing.T) {
	email := &notify.MockEmailSender{}
	sms := &notify.MockSMSSender{}
	d := NewDispatcher(email, sms, zerolog.Nop())

	contact := &profile.EmergencyContact{
		ID:               uuid.New(),
		Name:             "No Email",
		PreferredChannel: profile.ChannelEmail,
	}
	res := d.SendNotification(context.Background(), testEvent(), nil, contact)

	if res.Success {
		t.Fatal("expected failure for contact with no email address")
	}
	if res.Recipient != "unknown" {
		t.Errorf("expected recipient unknown, got %s", res.Recipient)
	}
	if len(email.Calls()) != 0 || len(sms.Calls()) != 0 {
		t.Error("no transport call should be made when the contact method is missing")
	}
}

func TestDispatcher_TransportError_CapturedInResult(t *testing.T) {
	email := &notify.MockEmailSender{ShouldFail: true, FailError: "provider rejected"}
	d := NewDispatcher(email, &notify.MockSMSSender{}, zerolog.Nop())

	res := d.SendNotification(context.Background(), testEvent(), nil, emailContact("jordan@example.com"))

	if res.Success {
		t.Fatal("expected failure when transport errors")
	}
	if res.Err != "provider rejected" {
		t.Errorf("expected transport error in result, got %q", res.Err)
	}
	if res.MessageID != "" {
		t.Error("message id must be empty on failure")
	}
	// Exactly one attempt, no internal retry.
	if len(email.Calls()) != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", len(email.Calls()))
	}
}

func TestDispatcher_NoFallbackChannel(t *testing.T) {
	email := &notify.MockEmailSender{}
	sms := &notify.MockSMSSender{}
	// SMS transport not configured.
	d := NewDispatcher(email, nil, zerolog.Nop())

	contact := smsContact("+14155550123")
	contact.Email = strptr("sam@example.com")
	res := d.SendNotification(context.Background(), testEvent(), nil, contact)

	if res.Success {
		t.Fatal("expected failure when the preferred channel is unavailable")
	}
	if len(email.Calls()) != 0 || len(sms.Calls()) != 0 {
		t.Error("dispatcher must not silently fall back to another channel")
	}
}

func TestDispatcher_ValidateChannel(t *testing.T) {
	d := NewDispatcher(&notify.MockEmailSender{}, nil, zerolog.Nop())

	if !d.ValidateChannel(profile.ChannelEmail) {
		t.Error("email should be available")
	}
	if d.ValidateChannel(profile.ChannelSMS) {
		t.Error("sms should be unavailable without a sender")
	}
	if d.ValidateChannel("carrier-pigeon") {
		t.Error("unknown channel should be invalid")
	}
}

func TestFormatAlertMessage_ConditionalVitals(t *testing.T) {
	event := testEvent()

	hr := 112
	spo2 := 91.0
	snap := &vitals.Snapshot{
		ID:               uuid.New(),
		PatientID:        event.PatientID,
		HeartRate:        &hr,
		OxygenSaturation: &spo2,
		RecordedAt:       time.Now().UTC(),
	}

	msg := formatAlertMessage(event, snap)
	if !strings.Contains(msg, "Heart rate: 112 bpm") {
		t.Error("expected heart rate line")
	}
	if !strings.Contains(msg, "Oxygen saturation: 91%") {
		t.Error("expected oxygen saturation line")
	}
	if strings.Contains(msg, "Blood pressure") || strings.Contains(msg, "Temperature") {
		t.Error("absent measurements must not appear in the message")
	}
}

func TestFormatAlertMessage_NoVitals(t *testing.T) {
	msg := formatAlertMessage(testEvent(), nil)
	if strings.Contains(msg, "Latest known vitals") {
		t.Error("vitals section must be omitted when no snapshot exists")
	}
	if !strings.Contains(msg, "not a substitute for calling emergency services") {
		t.Error("disclaimer must always be present")
	}
}

func TestFormatAlertMessage_Location(t *testing.T) {
	event := testEvent()
	lat, lon := 52.52001, 13.40495
	event.LocationConsented = true
	event.Latitude = &lat
	event.Longitude = &lon

	msg := formatAlertMessage(event, nil)
	if !strings.Contains(msg, "52.52001, 13.40495") {
		t.Error("expected location line when consent was granted")
	}

	event.LocationConsented = false
	msg = formatAlertMessage(event, nil)
	if strings.Contains(msg, "52.52001") {
		t.Error("location must not appear without consent")
	}
}
