package dbgen

import (
	"context"
	"time"
)

const eventColumns = `id, season_id, sport_id, name, kind, event_date, status, created_at, updated_at`

func scanEvent(row interface{ Scan(...interface{}) error }) (Event, error) {
	var i Event
	err := row.Scan(
		&i.ID,
		&i.SeasonID,
		&i.SportID,
		&i.Name,
		&i.Kind,
		&i.EventDate,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listEvents(ctx context.Context, query string, args ...interface{}) ([]Event, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Event{}
	for rows.Next() {
		i, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createEvent = `
INSERT INTO events (season_id, sport_id, name, kind, event_date, status)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING ` + eventColumns

type CreateEventParams struct {
	SeasonID  int64
	SportID   int64
	Name      string
	Kind      string
	EventDate time.Time
	Status    string
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	row := q.queryRow(ctx, createEvent,
		arg.SeasonID,
		arg.SportID,
		arg.Name,
		arg.Kind,
		arg.EventDate,
		arg.Status,
	)
	return scanEvent(row)
}

const getEvent = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`

func (q *Queries) GetEvent(ctx context.Context, id int64) (Event, error) {
	return scanEvent(q.queryRow(ctx, getEvent, id))
}

const listEvents = `
SELECT ` + eventColumns + ` FROM events
WHERE (? = 0 OR season_id = ?)
  AND (? = 0 OR sport_id = ?)
ORDER BY event_date, id`

type ListEventsParams struct {
	SeasonID int64
	SportID  int64
}

// ListEvents filters by season and sport; a zero ID disables that filter.
func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]Event, error) {
	return q.listEvents(ctx, listEvents, arg.SeasonID, arg.SeasonID, arg.SportID, arg.SportID)
}

const listParticipationEventsAwaitingAward = `
SELECT ` + eventColumns + ` FROM events e
WHERE e.season_id = ?
  AND e.kind = 'participation'
  AND e.status = 'completed'
  AND EXISTS (SELECT 1 FROM event_attendance a WHERE a.event_id = e.id)
  AND NOT EXISTS (
      SELECT 1 FROM point_entries p
      WHERE p.event_id = e.id AND p.category = 'participation'
  )
ORDER BY e.event_date, e.id`

func (q *Queries) ListParticipationEventsAwaitingAward(ctx context.Context, seasonID int64) ([]Event, error) {
	return q.listEvents(ctx, listParticipationEventsAwaitingAward, seasonID)
}

const updateEvent = `
UPDATE events
SET season_id = ?, sport_id = ?, name = ?, kind = ?, event_date = ?, status = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + eventColumns

type UpdateEventParams struct {
	ID        int64
	SeasonID  int64
	SportID   int64
	Name      string
	Kind      string
	EventDate time.Time
	Status    string
}

func (q *Queries) UpdateEvent(ctx context.Context, arg UpdateEventParams) (Event, error) {
	row := q.queryRow(ctx, updateEvent,
		arg.SeasonID,
		arg.SportID,
		arg.Name,
		arg.Kind,
		arg.EventDate,
		arg.Status,
		arg.ID,
	)
	return scanEvent(row)
}

const updateEventStatus = `UPDATE events SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) UpdateEventStatus(ctx context.Context, id int64, status string) error {
	_, err := q.exec(ctx, updateEventStatus, status, id)
	return err
}

const deleteEvent = `DELETE FROM events WHERE id = ?`

func (q *Queries) DeleteEvent(ctx context.Context, id int64) (int64, error) {
	result, err := q.exec(ctx, deleteEvent, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
