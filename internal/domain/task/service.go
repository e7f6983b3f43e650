package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/domain/profile"
	"github.com/vitalink/vitalink/internal/platform/notify"
	"github.com/vitalink/vitalink/internal/platform/realtime"
)

// PatientSource resolves patients for reminder notifications.
type PatientSource interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*profile.Patient, error)
}

type Service struct {
	reminders ReminderRepository
	publisher realtime.Publisher
	templates *notify.TemplateEngine
	email     notify.EmailSender
	patients  PatientSource
	logger    zerolog.Logger
}

// NewService creates the reminder service. publisher may be nil; templates,
// email and patients are only needed when NotifyDue is used.
func NewService(reminders ReminderRepository, publisher realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		reminders: reminders,
		publisher: publisher,
		logger:    logger.With().Str("component", "task_service").Logger(),
	}
}

// WithNotifier attaches the template engine, email transport and patient
// lookup used for due-reminder notifications.
func (s *Service) WithNotifier(templates *notify.TemplateEngine, email notify.EmailSender, patients PatientSource) *Service {
	s.templates = templates
	s.email = email
	s.patients = patients
	return s
}

func (s *Service) CreateReminder(ctx context.Context, r *Reminder) error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if r.DueAt.IsZero() {
		return fmt.Errorf("due_at is required")
	}
	if err := s.reminders.Create(ctx, r); err != nil {
		return err
	}
	s.broadcast(ctx, "created", r)
	return nil
}

func (s *Service) GetReminder(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	return s.reminders.GetByID(ctx, id)
}

func (s *Service) ListReminders(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reminder, int, error) {
	return s.reminders.ListByPatient(ctx, patientID, limit, offset)
}

// CompleteReminder marks a reminder done. Completing an already-completed
// reminder is a no-op and does not broadcast a second change.
func (s *Service) CompleteReminder(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Completed {
		return r, nil
	}
	now := time.Now().UTC()
	r.Completed = true
	r.CompletedAt = &now
	if err := s.reminders.Update(ctx, r); err != nil {
		return nil, err
	}
	s.broadcast(ctx, "updated", r)
	return r, nil
}

func (s *Service) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.reminders.Delete(ctx, id); err != nil {
		return err
	}
	s.broadcast(ctx, "deleted", r)
	return nil
}

// NotifyDue emails the "task-reminder" template for every incomplete,
// not-yet-notified reminder due at or before now. A reminder is notified
// at most once; delivery is best-effort per reminder.
func (s *Service) NotifyDue(ctx context.Context, now time.Time, limit int) int {
	if s.templates == nil || s.email == nil || s.patients == nil {
		return 0
	}
	due, err := s.reminders.ListDueBefore(ctx, now, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("due reminder lookup failed")
		return 0
	}

	sent := 0
	for _, r := range due {
		p, err := s.patients.GetPatient(ctx, r.PatientID)
		if err != nil || p.Email == nil || *p.Email == "" {
			continue
		}
		subject, body, err := s.templates.Render("task-reminder", map[string]string{
			"patient_name": p.Name,
			"task_title":   r.Title,
			"due":          r.DueAt.UTC().Format(time.RFC1123),
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("reminder template render failed")
			continue
		}
		if _, err := s.email.SendEmail(ctx, *p.Email, subject, body); err != nil {
			s.logger.Warn().Err(err).
				Str("reminder_id", r.ID.String()).
				Msg("reminder email failed")
			continue
		}
		if err := s.reminders.MarkNotified(ctx, r.ID, now); err != nil {
			s.logger.Warn().Err(err).
				Str("reminder_id", r.ID.String()).
				Msg("reminder notified marker failed")
		}
		sent++
	}
	return sent
}

func (s *Service) broadcast(ctx context.Context, changeType string, r *Reminder) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, realtime.Event{
		Type:       changeType,
		Topic:      realtime.TasksTopic(r.PatientID),
		Resource:   "reminder",
		ResourceID: r.ID.String(),
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("reminder_id", r.ID.String()).Msg("realtime publish failed")
	}
}
