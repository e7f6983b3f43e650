package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FSBlobStore stores blob content and metadata on the local filesystem.
// Each blob occupies two files under the root directory: "<id>.bin" for
// content and "<id>.json" for metadata. Listing and search scan the
// metadata sidecars; the store is intended for single-node deployments.
type FSBlobStore struct {
	root string
	mu   sync.RWMutex
}

// NewFSBlobStore creates the root directory if needed and returns a store.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &FSBlobStore{root: root}, nil
}

func (s *FSBlobStore) contentPath(id string) string {
	return filepath.Join(s.root, id+".bin")
}

func (s *FSBlobStore) metaPath(id string) string {
	return filepath.Join(s.root, id+".json")
}

// Upload validates inputs, writes content and metadata sidecar to disk.
func (s *FSBlobStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if err := validateUpload(meta, data); err != nil {
		return nil, err
	}

	h := sha256.Sum256(data)

	meta.ID = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = time.Now().UTC()

	if meta.Tags == nil {
		meta.Tags = make(map[string]string)
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.contentPath(meta.ID), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing content: %w", err)
	}
	if err := os.WriteFile(s.metaPath(meta.ID), metaJSON, 0o644); err != nil {
		os.Remove(s.contentPath(meta.ID))
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	out := meta
	return &out, nil
}

// Download opens the content file and returns it with its metadata.
func (s *FSBlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	meta, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	f, err := os.Open(s.contentPath(id))
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("opening content: %w", err)
	}

	return f, meta, nil
}

// Delete removes both the content and the metadata sidecar.
func (s *FSBlobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.metaPath(id)); os.IsNotExist(err) {
		return ErrBlobNotFound
	}

	if err := os.Remove(s.contentPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing content: %w", err)
	}
	if err := os.Remove(s.metaPath(id)); err != nil {
		return fmt.Errorf("removing metadata: %w", err)
	}
	return nil
}

// GetMetadata reads the metadata sidecar for a blob.
func (s *FSBlobStore) GetMetadata(_ context.Context, id string) (*BlobMetadata, error) {
	s.mu.RLock()
	data, err := os.ReadFile(s.metaPath(id))
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("reading metadata: %w", err)
	}

	var meta BlobMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	return &meta, nil
}

// ListByPatient scans metadata sidecars for blobs belonging to a patient.
func (s *FSBlobStore) ListByPatient(ctx context.Context, patientID, category string, limit, offset int) ([]*BlobMetadata, int, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matched []*BlobMetadata
	for _, m := range all {
		if m.PatientID != patientID {
			continue
		}
		if category != "" && m.Category != category {
			continue
		}
		matched = append(matched, m)
	}

	return pageOf(matched, limit, offset)
}

// Search scans metadata sidecars for blobs matching the search parameters.
func (s *FSBlobStore) Search(ctx context.Context, params SearchParams) ([]*BlobMetadata, int, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matched []*BlobMetadata
	for _, m := range all {
		if matchesSearch(m, params) {
			matched = append(matched, m)
		}
	}

	return pageOf(matched, params.Limit, params.Offset)
}

func (s *FSBlobStore) scan(_ context.Context) ([]*BlobMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading storage dir: %w", err)
	}

	var out []*BlobMetadata
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue // Sidecar removed mid-scan.
		}
		var meta BlobMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		out = append(out, &meta)
	}
	return out, nil
}

var (
	_ BlobStore = (*InMemoryBlobStore)(nil)
	_ BlobStore = (*FSBlobStore)(nil)
)
