package events

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nuid"

	"github.com/flowcal/project/internal/timeutil"
)

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS events (
  id text PRIMARY KEY,
  user_id text NOT NULL,
  title text NOT NULL,
  description text NOT NULL DEFAULT '',
  start_time timestamptz NOT NULL,
  end_time timestamptz NOT NULL,
  location text NOT NULL DEFAULT '',
  color text NOT NULL DEFAULT 'bg-blue-500',
  attendees text[] NOT NULL DEFAULT '{}',
  organizer text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT now(),
  updated_at timestamptz NOT NULL DEFAULT now()
)`

const createEventsIndexSQL = `
CREATE INDEX IF NOT EXISTS events_user_start_idx ON events (user_id, start_time)`

// PostgresRepository implements Gateway on a pgx pool. Events are stored
// with absolute start/end timestamps; the clock/date split used everywhere
// else in the process happens on the way in and out.
type PostgresRepository struct {
	Pool  *pgxpool.Pool
	NewID func() string
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{Pool: pool, NewID: nuid.Next}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createEventsTableSQL); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx, createEventsIndexSQL)
	return err
}

func (r *PostgresRepository) Create(ctx context.Context, userID string, event Event) (string, error) {
	event.Normalize()
	start, err := timeutil.Combine(event.Date, event.StartTime)
	if err != nil {
		return "", err
	}
	end, err := timeutil.Combine(event.Date, event.EndTime)
	if err != nil {
		return "", err
	}

	id := r.NewID()
	_, err = r.Pool.Exec(ctx,
		`INSERT INTO events (id, user_id, title, description, start_time, end_time, location, color, attendees, organizer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, userID, event.Title, event.Description, start, end,
		event.Location, event.Color, event.Attendees, event.Organizer,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]Event, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT id, title, description, start_time, end_time, location, color, attendees, organizer
		 FROM events
		 WHERE user_id = $1
		 ORDER BY start_time ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var e Event
		var start, end time.Time
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Description, &start, &end,
			&e.Location, &e.Color, &e.Attendees, &e.Organizer,
		); err != nil {
			return nil, err
		}
		e.Date, e.StartTime = timeutil.Split(start.Local())
		_, e.EndTime = timeutil.Split(end.Local())
		if e.Attendees == nil {
			e.Attendees = []string{}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, userID, eventID string, event Event) error {
	event.Normalize()
	start, err := timeutil.Combine(event.Date, event.StartTime)
	if err != nil {
		return err
	}
	end, err := timeutil.Combine(event.Date, event.EndTime)
	if err != nil {
		return err
	}

	tag, err := r.Pool.Exec(ctx,
		`UPDATE events
		 SET title = $3, description = $4, start_time = $5, end_time = $6,
		     location = $7, color = $8, attendees = $9, organizer = $10,
		     updated_at = now()
		 WHERE id = $1 AND user_id = $2`,
		eventID, userID, event.Title, event.Description, start, end,
		event.Location, event.Color, event.Attendees, event.Organizer,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(tag)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, eventID string) error {
	tag, err := r.Pool.Exec(ctx,
		`DELETE FROM events WHERE id = $1 AND user_id = $2`,
		eventID, userID,
	)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(tag)
}

func rowsAffectedOrNotFound(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// IsNoRows normalizes pgx's no-rows sentinel for callers doing lookups.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
