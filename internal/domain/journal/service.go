package journal

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vitalink/vitalink/internal/platform/blobstore"
	"github.com/vitalink/vitalink/internal/platform/realtime"
)

type Service struct {
	entries   EntryRepository
	blobs     blobstore.BlobStore
	publisher realtime.Publisher
	logger    zerolog.Logger
}

// NewService creates the journal service. blobs is required for attachments;
// publisher may be nil.
func NewService(entries EntryRepository, blobs blobstore.BlobStore, publisher realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		entries:   entries,
		blobs:     blobs,
		publisher: publisher,
		logger:    logger.With().Str("component", "journal_service").Logger(),
	}
}

func (s *Service) CreateEntry(ctx context.Context, e *Entry) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if e.Mood != nil && !validMoods[*e.Mood] {
		return fmt.Errorf("invalid mood: %s", *e.Mood)
	}
	if err := s.entries.Create(ctx, e); err != nil {
		return err
	}
	s.broadcast(ctx, "created", e)
	return nil
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.entries.GetByID(ctx, id)
}

func (s *Service) ListEntries(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.entries.ListByPatient(ctx, patientID, limit, offset)
}

// AttachPhoto uploads the photo to the blob store and records its URL on the
// entry. Replacing an existing attachment removes the previous blob.
func (s *Service) AttachPhoto(ctx context.Context, entryID uuid.UUID, fileName, contentType string, data []byte) (*Entry, error) {
	e, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	meta, err := s.blobs.Upload(ctx, blobstore.BlobMetadata{
		FileName:    fileName,
		ContentType: contentType,
		PatientID:   e.PatientID.String(),
		Category:    "journal-photo",
	}, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}

	url := attachmentURL(meta.ID)
	if err := s.entries.SetAttachment(ctx, entryID, &url, &meta.ID); err != nil {
		if delErr := s.blobs.Delete(ctx, meta.ID); delErr != nil {
			s.logger.Warn().Err(delErr).Str("blob_id", meta.ID).Msg("orphan blob cleanup failed")
		}
		return nil, err
	}

	if e.AttachmentBlobID != nil {
		if err := s.blobs.Delete(ctx, *e.AttachmentBlobID); err != nil {
			s.logger.Warn().Err(err).Str("blob_id", *e.AttachmentBlobID).Msg("previous attachment cleanup failed")
		}
	}

	e.AttachmentURL = &url
	e.AttachmentBlobID = &meta.ID
	s.broadcast(ctx, "updated", e)
	return e, nil
}

// DeleteEntry removes the entry and its attachment blob, if any. Blob removal
// is best-effort; the entry row is the source of truth.
func (s *Service) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, id); err != nil {
		return err
	}
	if e.AttachmentBlobID != nil {
		if err := s.blobs.Delete(ctx, *e.AttachmentBlobID); err != nil {
			s.logger.Warn().Err(err).Str("blob_id", *e.AttachmentBlobID).Msg("attachment blob removal failed")
		}
	}
	s.broadcast(ctx, "deleted", e)
	return nil
}

func attachmentURL(blobID string) string {
	return "/api/attachments/" + blobID
}

func (s *Service) broadcast(ctx context.Context, changeType string, e *Entry) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, realtime.Event{
		Type:       changeType,
		Topic:      realtime.JournalTopic(e.PatientID),
		Resource:   "journal_entry",
		ResourceID: e.ID.String(),
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("entry_id", e.ID.String()).Msg("realtime publish failed")
	}
}
