package retry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueuedRequest is an outbound HTTP request captured while the upstream was
// unreachable, replayed later in arrival order.
type QueuedRequest struct {
	ID         uuid.UUID         `json:"id"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	RetryCount int               `json:"retry_count"`
	LastError  string            `json:"last_error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// QueueRepo persists queued requests.
type QueueRepo interface {
	Enqueue(ctx context.Context, r *QueuedRequest) error
	ListOldestFirst(ctx context.Context, limit int) ([]*QueuedRequest, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RecordFailure(ctx context.Context, id uuid.UUID, lastError string) error
	Count(ctx context.Context) (int, error)
}

// Replayer performs one delivery attempt for a queued request.
type Replayer interface {
	Replay(ctx context.Context, r *QueuedRequest) error
}

// HTTPReplayer replays queued requests over HTTP. Any non-2xx status counts
// as a failed attempt.
type HTTPReplayer struct {
	Client *http.Client
}

func NewHTTPReplayer() *HTTPReplayer {
	return &HTTPReplayer{Client: &http.Client{Timeout: 15 * time.Second}}
}

func (h *HTTPReplayer) Replay(ctx context.Context, r *QueuedRequest) error {
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}
	return nil
}

// Queue drains stored requests in FIFO order. Replays that succeed are
// deleted; failures bump retry_count and record the error, and the request
// stays queued for the next pass.
type Queue struct {
	repo     QueueRepo
	replayer Replayer
	logger   zerolog.Logger
}

func NewQueue(repo QueueRepo, replayer Replayer, logger zerolog.Logger) *Queue {
	if replayer == nil {
		replayer = NewHTTPReplayer()
	}
	return &Queue{repo: repo, replayer: replayer, logger: logger}
}

// Enqueue stores a request for later replay.
func (q *Queue) Enqueue(ctx context.Context, r *QueuedRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	return q.repo.Enqueue(ctx, r)
}

// ProcessResult summarizes one drain pass.
type ProcessResult struct {
	Attempted int
	Delivered int
	Failed    int
}

// Process drains up to limit queued requests, oldest first. A limit of 0
// processes everything currently queued.
func (q *Queue) Process(ctx context.Context, limit int) (ProcessResult, error) {
	var res ProcessResult

	if limit <= 0 {
		n, err := q.repo.Count(ctx)
		if err != nil {
			return res, fmt.Errorf("count queued requests: %w", err)
		}
		limit = n
	}

	pending, err := q.repo.ListOldestFirst(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("list queued requests: %w", err)
	}

	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++

		if err := q.replayer.Replay(ctx, r); err != nil {
			res.Failed++
			q.logger.Warn().
				Str("request_id", r.ID.String()).
				Str("url", r.URL).
				Int("retry_count", r.RetryCount+1).
				Err(err).
				Msg("queued request replay failed")
			if recErr := q.repo.RecordFailure(ctx, r.ID, err.Error()); recErr != nil {
				return res, fmt.Errorf("record failure for %s: %w", r.ID, recErr)
			}
			continue
		}

		res.Delivered++
		if err := q.repo.Delete(ctx, r.ID); err != nil {
			return res, fmt.Errorf("delete delivered request %s: %w", r.ID, err)
		}
	}

	return res, nil
}

// InMemoryQueueRepo is a QueueRepo backed by an ordered in-memory list.
// Used in tests and as a fallback when no database is configured.
type InMemoryQueueRepo struct {
	mu    sync.Mutex
	items []*QueuedRequest
}

func NewInMemoryQueueRepo() *InMemoryQueueRepo {
	return &InMemoryQueueRepo{}
}

func (s *InMemoryQueueRepo) Enqueue(_ context.Context, r *QueuedRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.items = append(s.items, &cp)
	return nil
}

func (s *InMemoryQueueRepo) ListOldestFirst(_ context.Context, limit int) ([]*QueuedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*QueuedRequest, n)
	for i := 0; i < n; i++ {
		cp := *s.items[i]
		out[i] = &cp
	}
	return out, nil
}

func (s *InMemoryQueueRepo) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.items {
		if r.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("queued request %s not found", id)
}

func (s *InMemoryQueueRepo) RecordFailure(_ context.Context, id uuid.UUID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.items {
		if r.ID == id {
			r.RetryCount++
			r.LastError = lastError
			r.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("queued request %s not found", id)
}

func (s *InMemoryQueueRepo) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}
