package insights

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type insightRepoPG struct{ pool *pgxpool.Pool }

func NewInsightRepoPG(pool *pgxpool.Pool) InsightRepository {
	return &insightRepoPG{pool: pool}
}

const insightCols = `id, patient_id, content, generated_at`

func scanInsight(row pgx.Row) (*Insight, error) {
	var i Insight
	err := row.Scan(&i.ID, &i.PatientID, &i.Content, &i.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &i, err
}

func (r *insightRepoPG) Create(ctx context.Context, i *Insight) error {
	i.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO insights (id, patient_id, content, generated_at)
		VALUES ($1, $2, $3, $4)`,
		i.ID, i.PatientID, i.Content, i.GeneratedAt)
	return err
}

func (r *insightRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Insight, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM insights WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+insightCols+` FROM insights
		WHERE patient_id = $1 ORDER BY generated_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Insight
	for rows.Next() {
		i, err := scanInsight(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}

var _ InsightRepository = (*insightRepoPG)(nil)
