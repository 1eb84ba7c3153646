package dbgen

import (
	"context"
	"time"
)

const attendanceColumns = `id, event_id, club_id, registered_count, attended_count, eligible_count, created_at, updated_at`

func scanAttendance(row interface{ Scan(...interface{}) error }) (EventAttendance, error) {
	var i EventAttendance
	err := row.Scan(
		&i.ID,
		&i.EventID,
		&i.ClubID,
		&i.RegisteredCount,
		&i.AttendedCount,
		&i.EligibleCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertAttendance = `
INSERT INTO event_attendance (event_id, club_id, registered_count, attended_count, eligible_count)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (event_id, club_id) DO UPDATE SET
    registered_count = excluded.registered_count,
    attended_count = excluded.attended_count,
    eligible_count = excluded.eligible_count,
    updated_at = CURRENT_TIMESTAMP
RETURNING ` + attendanceColumns

type UpsertAttendanceParams struct {
	EventID         int64
	ClubID          int64
	RegisteredCount int64
	AttendedCount   int64
	EligibleCount   int64
}

func (q *Queries) UpsertAttendance(ctx context.Context, arg UpsertAttendanceParams) (EventAttendance, error) {
	row := q.queryRow(ctx, upsertAttendance,
		arg.EventID,
		arg.ClubID,
		arg.RegisteredCount,
		arg.AttendedCount,
		arg.EligibleCount,
	)
	return scanAttendance(row)
}

const listEventAttendance = `
SELECT a.id, a.event_id, a.club_id, c.name, c.code,
       a.registered_count, a.attended_count, a.eligible_count, a.updated_at
FROM event_attendance a
JOIN clubs c ON c.id = a.club_id
WHERE a.event_id = ?
ORDER BY c.name`

type ListEventAttendanceRow struct {
	ID              int64
	EventID         int64
	ClubID          int64
	ClubName        string
	ClubCode        string
	RegisteredCount int64
	AttendedCount   int64
	EligibleCount   int64
	UpdatedAt       time.Time
}

func (q *Queries) ListEventAttendance(ctx context.Context, eventID int64) ([]ListEventAttendanceRow, error) {
	rows, err := q.query(ctx, listEventAttendance, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListEventAttendanceRow{}
	for rows.Next() {
		var i ListEventAttendanceRow
		if err := rows.Scan(
			&i.ID,
			&i.EventID,
			&i.ClubID,
			&i.ClubName,
			&i.ClubCode,
			&i.RegisteredCount,
			&i.AttendedCount,
			&i.EligibleCount,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listClubAttendance = `
SELECT e.id, e.name, e.event_date, a.attended_count, a.eligible_count
FROM event_attendance a
JOIN events e ON e.id = a.event_id
WHERE a.club_id = ? AND e.season_id = ?
ORDER BY e.event_date DESC, e.id DESC`

type ListClubAttendanceRow struct {
	EventID       int64
	EventName     string
	EventDate     time.Time
	AttendedCount int64
	EligibleCount int64
}

func (q *Queries) ListClubAttendance(ctx context.Context, clubID, seasonID int64) ([]ListClubAttendanceRow, error) {
	rows, err := q.query(ctx, listClubAttendance, clubID, seasonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListClubAttendanceRow{}
	for rows.Next() {
		var i ListClubAttendanceRow
		if err := rows.Scan(&i.EventID, &i.EventName, &i.EventDate, &i.AttendedCount, &i.EligibleCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
