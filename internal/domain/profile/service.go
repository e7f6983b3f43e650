package profile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vitalink/vitalink/internal/platform/notify"
)

type Service struct {
	patients PatientRepository
	contacts ContactRepository
}

func NewService(patients PatientRepository, contacts ContactRepository) *Service {
	return &Service{patients: patients, contacts: contacts}
}

var validChannels = map[string]bool{
	ChannelEmail: true,
	ChannelSMS:   true,
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Phone != nil && *p.Phone != "" {
		if err := notify.ValidatePhone(*p.Phone); err != nil {
			return err
		}
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Phone != nil && *p.Phone != "" {
		if err := notify.ValidatePhone(*p.Phone); err != nil {
			return err
		}
	}
	return s.patients.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) validateContact(c *EmergencyContact) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validChannels[c.PreferredChannel] {
		return fmt.Errorf("invalid preferred_channel: %s", c.PreferredChannel)
	}
	hasEmail := c.Email != nil && *c.Email != ""
	hasPhone := c.Phone != nil && *c.Phone != ""
	if !hasEmail && !hasPhone {
		return fmt.Errorf("contact needs an email or a phone number")
	}
	if c.PreferredChannel == ChannelEmail && !hasEmail {
		return fmt.Errorf("preferred channel is email but no email is set")
	}
	if c.PreferredChannel == ChannelSMS && !hasPhone {
		return fmt.Errorf("preferred channel is sms but no phone is set")
	}
	if hasPhone {
		if err := notify.ValidatePhone(*c.Phone); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) AddContact(ctx context.Context, c *EmergencyContact) error {
	if err := s.validateContact(c); err != nil {
		return err
	}
	if _, err := s.patients.GetByID(ctx, c.PatientID); err != nil {
		return fmt.Errorf("patient %s: %w", c.PatientID, err)
	}
	return s.contacts.Create(ctx, c)
}

func (s *Service) GetContact(ctx context.Context, id uuid.UUID) (*EmergencyContact, error) {
	return s.contacts.GetByID(ctx, id)
}

func (s *Service) UpdateContact(ctx context.Context, c *EmergencyContact) error {
	if err := s.validateContact(c); err != nil {
		return err
	}
	return s.contacts.Update(ctx, c)
}

func (s *Service) DeleteContact(ctx context.Context, id uuid.UUID) error {
	return s.contacts.Delete(ctx, id)
}

// ListContacts returns a patient's emergency contacts in priority order.
func (s *Service) ListContacts(ctx context.Context, patientID uuid.UUID) ([]*EmergencyContact, error) {
	return s.contacts.ListByPatient(ctx, patientID)
}
