package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type reminderRepoPG struct{ pool *pgxpool.Pool }

func NewReminderRepoPG(pool *pgxpool.Pool) ReminderRepository {
	return &reminderRepoPG{pool: pool}
}

const reminderCols = `id, patient_id, title, notes, due_at, completed, completed_at, notified_at, created_at, updated_at`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rem Reminder
	err := row.Scan(&rem.ID, &rem.PatientID, &rem.Title, &rem.Notes, &rem.DueAt,
		&rem.Completed, &rem.CompletedAt, &rem.NotifiedAt, &rem.CreatedAt, &rem.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &rem, err
}

func (r *reminderRepoPG) Create(ctx context.Context, rem *Reminder) error {
	rem.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminders (id, patient_id, title, notes, due_at, completed)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rem.ID, rem.PatientID, rem.Title, rem.Notes, rem.DueAt, rem.Completed)
	return err
}

func (r *reminderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error) {
	return scanReminder(r.pool.QueryRow(ctx, `
		SELECT `+reminderCols+` FROM reminders WHERE id = $1`, id))
}

func (r *reminderRepoPG) Update(ctx context.Context, rem *Reminder) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders SET title = $2, notes = $3, due_at = $4, completed = $5,
			completed_at = $6, updated_at = NOW()
		WHERE id = $1`,
		rem.ID, rem.Title, rem.Notes, rem.DueAt, rem.Completed, rem.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", rem.ID, ErrNotFound)
	}
	return nil
}

func (r *reminderRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *reminderRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Reminder, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reminders WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderCols+` FROM reminders
		WHERE patient_id = $1 ORDER BY due_at ASC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rem)
	}
	return items, total, rows.Err()
}

func (r *reminderRepoPG) ListDueBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reminderCols+` FROM reminders
		WHERE completed = FALSE AND notified_at IS NULL AND due_at <= $1
		ORDER BY due_at ASC LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rem)
	}
	return items, rows.Err()
}

func (r *reminderRepoPG) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders SET notified_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reminder %s: %w", id, ErrNotFound)
	}
	return nil
}

var _ ReminderRepository = (*reminderRepoPG)(nil)
