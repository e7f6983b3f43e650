// Package notify provides the outbound Email/SMS transports used for
// emergency alerts, plus template rendering and test doubles.
package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// EmailSender is the interface for sending email messages. On success it
// returns the provider's message id, or "" when the provider reports none.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

// SMSSender is the interface for sending SMS messages. On success it returns
// the provider's message id, or "" when the provider reports none.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// ErrInvalidPhone is returned when a recipient phone number does not look
// like an E.164 number. No delivery is attempted for such numbers.
var ErrInvalidPhone = errors.New("invalid phone number")

var phoneRe = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidatePhone checks that a phone number is E.164-like: an optional leading
// plus, a non-zero first digit, and at most 15 digits total.
func ValidatePhone(number string) error {
	if !phoneRe.MatchString(number) {
		return fmt.Errorf("%w: %q", ErrInvalidPhone, number)
	}
	return nil
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "emergency-alert",
			Name:    "Emergency Alert",
			Subject: "EMERGENCY: {{patient_name}} needs help",
			Body:    "{{patient_name}} triggered an emergency alert at {{time}}. Latest vitals: {{vitals}}. Location: {{location}}.",
		},
		{
			ID:      "emergency-resolved",
			Name:    "Emergency Resolved",
			Subject: "Emergency for {{patient_name}} resolved",
			Body:    "The emergency alert for {{patient_name}} raised at {{time}} has been marked {{status}}.",
		},
		{
			ID:      "vitals-alert",
			Name:    "Vitals Alert",
			Subject: "Abnormal reading for {{patient_name}}",
			Body:    "{{patient_name}} recorded {{metric}} of {{value}} at {{time}}, outside the expected range.",
		},
		{
			ID:      "task-reminder",
			Name:    "Task Reminder",
			Subject: "Reminder: {{task_title}}",
			Body:    "Dear {{patient_name}}, this is a reminder for {{task_title}} due at {{due}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
