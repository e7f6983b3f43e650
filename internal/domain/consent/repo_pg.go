package consent

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type consentRepoPG struct{ pool *pgxpool.Pool }

func NewConsentRepoPG(pool *pgxpool.Pool) ConsentRepository {
	return &consentRepoPG{pool: pool}
}

const consentCols = `id, patient_id, consent_type, granted, metadata, created_at`

func scanConsent(row pgx.Row) (*ConsentRecord, error) {
	var r ConsentRecord
	err := row.Scan(&r.ID, &r.PatientID, &r.ConsentType, &r.Granted, &r.Metadata, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &r, err
}

func (repo *consentRepoPG) Insert(ctx context.Context, r *ConsentRecord) error {
	r.ID = uuid.New()
	_, err := repo.pool.Exec(ctx, `
		INSERT INTO consents (id, patient_id, consent_type, granted, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.PatientID, r.ConsentType, r.Granted, r.Metadata)
	return err
}

func (repo *consentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*ConsentRecord, int, error) {
	var total int
	if err := repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM consents WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := repo.pool.Query(ctx, `
		SELECT `+consentCols+` FROM consents
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ConsentRecord
	for rows.Next() {
		r, err := scanConsent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

var _ ConsentRepository = (*consentRepoPG)(nil)
