package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queuedRequestCols = `id, method, url, headers, body, retry_count, last_error, created_at, updated_at`

// PGQueueRepo is a QueueRepo backed by PostgreSQL.
type PGQueueRepo struct {
	pool *pgxpool.Pool
}

func NewPGQueueRepo(pool *pgxpool.Pool) *PGQueueRepo {
	return &PGQueueRepo{pool: pool}
}

func scanQueuedRequest(row pgx.Row) (*QueuedRequest, error) {
	var r QueuedRequest
	var headers []byte
	var lastError *string
	err := row.Scan(&r.ID, &r.Method, &r.URL, &headers, &r.Body, &r.RetryCount, &lastError, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastError != nil {
		r.LastError = *lastError
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &r.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	return &r, nil
}

func (s *PGQueueRepo) Enqueue(ctx context.Context, r *QueuedRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	headers, err := json.Marshal(r.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO offline_queue (id, method, url, headers, body, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.Method, r.URL, headers, r.Body, r.RetryCount, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue request: %w", err)
	}
	return nil
}

func (s *PGQueueRepo) ListOldestFirst(ctx context.Context, limit int) ([]*QueuedRequest, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM offline_queue
		ORDER BY created_at ASC, id ASC
		LIMIT $1`, queuedRequestCols),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list queued requests: %w", err)
	}
	defer rows.Close()

	var result []*QueuedRequest
	for rows.Next() {
		r, err := scanQueuedRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queued request: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *PGQueueRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM offline_queue WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queued request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queued request %s not found", id)
	}
	return nil
}

func (s *PGQueueRepo) RecordFailure(ctx context.Context, id uuid.UUID, lastError string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE offline_queue
		SET retry_count = retry_count + 1, last_error = $2, updated_at = $3
		WHERE id = $1`,
		id, lastError, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queued request %s not found", id)
	}
	return nil
}

func (s *PGQueueRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM offline_queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count queued requests: %w", err)
	}
	return n, nil
}

var _ QueueRepo = (*PGQueueRepo)(nil)
