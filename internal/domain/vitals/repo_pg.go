package vitals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type snapshotRepoPG struct{ pool *pgxpool.Pool }

func NewSnapshotRepoPG(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepoPG{pool: pool}
}

const snapshotCols = `id, patient_id, heart_rate, blood_pressure_sys, blood_pressure_dia,
	temperature, oxygen_saturation, recorded_at, created_at`

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var s Snapshot
	err := row.Scan(&s.ID, &s.PatientID, &s.HeartRate, &s.BloodPressureSys, &s.BloodPressureDia,
		&s.Temperature, &s.OxygenSaturation, &s.RecordedAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *snapshotRepoPG) Create(ctx context.Context, s *Snapshot) error {
	s.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO vitals (id, patient_id, heart_rate, blood_pressure_sys, blood_pressure_dia,
			temperature, oxygen_saturation, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.PatientID, s.HeartRate, s.BloodPressureSys, s.BloodPressureDia,
		s.Temperature, s.OxygenSaturation, s.RecordedAt)
	return err
}

func (r *snapshotRepoPG) Latest(ctx context.Context, patientID uuid.UUID) (*Snapshot, error) {
	return scanSnapshot(r.pool.QueryRow(ctx, `
		SELECT `+snapshotCols+` FROM vitals
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT 1`, patientID))
}

func (r *snapshotRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Snapshot, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vitals WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+snapshotCols+` FROM vitals
		WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

var _ SnapshotRepository = (*snapshotRepoPG)(nil)
