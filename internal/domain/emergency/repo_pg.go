package emergency

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type eventRepoPG struct{ pool *pgxpool.Pool }

func NewEventRepoPG(pool *pgxpool.Pool) EventRepository {
	return &eventRepoPG{pool: pool}
}

const eventCols = `id, patient_id, triggered_by, triggered_at, location_consented,
	latitude, longitude, status, notes, created_at, updated_at`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.PatientID, &e.TriggeredBy, &e.TriggeredAt, &e.LocationConsented,
		&e.Latitude, &e.Longitude, &e.Status, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *eventRepoPG) Create(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO emergency_events (id, patient_id, triggered_by, triggered_at, location_consented, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.PatientID, e.TriggeredBy, e.TriggeredAt, e.LocationConsented, e.Status, e.Notes)
	return err
}

func (r *eventRepoPG) GetByID(ctx context.Context, id, patientID uuid.UUID) (*Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `
		SELECT `+eventCols+` FROM emergency_events WHERE id = $1 AND patient_id = $2`, id, patientID))
}

func (r *eventRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string, notes *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE emergency_events SET status = $2, notes = COALESCE($3, notes), updated_at = NOW()
		WHERE id = $1`, id, status, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *eventRepoPG) UpdateLocation(ctx context.Context, id uuid.UUID, consented bool, latitude, longitude *float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE emergency_events SET location_consented = $2, latitude = $3, longitude = $4, updated_at = NOW()
		WHERE id = $1`, id, consented, latitude, longitude)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *eventRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Event, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM emergency_events WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventCols+` FROM emergency_events
		WHERE patient_id = $1 ORDER BY triggered_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

type notificationRepoPG struct{ pool *pgxpool.Pool }

func NewNotificationRepoPG(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepoPG{pool: pool}
}

const notificationCols = `id, event_id, channel, recipient, success, message_id, error, created_at, sent_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.EventID, &n.Channel, &n.Recipient, &n.Success,
		&n.MessageID, &n.Error, &n.CreatedAt, &n.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &n, err
}

func (r *notificationRepoPG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO emergency_notifications (id, event_id, channel, recipient, success, message_id, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.EventID, n.Channel, n.Recipient, n.Success, n.MessageID, n.Error, n.SentAt)
	return err
}

func (r *notificationRepoPG) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationCols+` FROM emergency_notifications
		WHERE event_id = $1 ORDER BY created_at ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

var (
	_ EventRepository        = (*eventRepoPG)(nil)
	_ NotificationRepository = (*notificationRepoPG)(nil)
)
