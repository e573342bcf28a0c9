// Package store persists monitoring events in Postgres. The store backs the
// snapshot transport and the REST fallback the dashboard polls when the live
// connection is down. Schema: scripts/schema.sql.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"homepal-gateway/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// InsertEvent stores ev, ignoring duplicates by id so re-delivered records
// are idempotent. Events with an unparseable origin time are stamped with
// the local time; they are still part of the history even though they never
// notify.
func (s *Store) InsertEvent(ctx context.Context, ev models.RawEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	origin, ok := ev.Time.Time()
	if !ok {
		origin = time.Now()
	}

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO events (id, action, time, is_handled, device_id, patient_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Action, origin, ev.IsHandled, ev.DeviceID, ev.PatientID, ev.Description,
	)
	if err != nil {
		return fmt.Errorf("insert event %s failed: %w", ev.ID, err)
	}
	return nil
}

// RecentEvents returns the limit most recent events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]models.RawEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, action, time, is_handled, device_id, patient_id, description
		FROM events
		ORDER BY time DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events failed: %w", err)
	}
	defer rows.Close()

	var events []models.RawEvent
	for rows.Next() {
		var (
			ev     models.RawEvent
			origin time.Time
		)
		if err := rows.Scan(&ev.ID, &ev.Action, &origin, &ev.IsHandled, &ev.DeviceID, &ev.PatientID, &ev.Description); err != nil {
			return nil, fmt.Errorf("scan event failed: %w", err)
		}
		ev.Time = models.NewEventTime(origin)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read recent events failed: %w", err)
	}
	return events, nil
}

// MarkHandled records a caregiver acknowledgment. Returns false when no such
// event exists.
func (s *Store) MarkHandled(ctx context.Context, id string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE events SET is_handled = TRUE WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("mark event %s handled failed: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}
