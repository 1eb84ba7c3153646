package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const pointEntryColumns = `id, season_id, club_id, event_id, category, points, reason, created_by, created_at`

func scanPointEntry(row interface{ Scan(...interface{}) error }) (PointEntry, error) {
	var i PointEntry
	err := row.Scan(
		&i.ID,
		&i.SeasonID,
		&i.ClubID,
		&i.EventID,
		&i.Category,
		&i.Points,
		&i.Reason,
		&i.CreatedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createPointEntry = `
INSERT INTO point_entries (season_id, club_id, event_id, category, points, reason, created_by)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + pointEntryColumns

type CreatePointEntryParams struct {
	SeasonID  int64
	ClubID    int64
	EventID   sql.NullInt64
	Category  string
	Points    int64
	Reason    string
	CreatedBy sql.NullInt64
}

func (q *Queries) CreatePointEntry(ctx context.Context, arg CreatePointEntryParams) (PointEntry, error) {
	row := q.queryRow(ctx, createPointEntry,
		arg.SeasonID,
		arg.ClubID,
		arg.EventID,
		arg.Category,
		arg.Points,
		arg.Reason,
		arg.CreatedBy,
	)
	return scanPointEntry(row)
}

const getPointEntry = `SELECT ` + pointEntryColumns + ` FROM point_entries WHERE id = ?`

func (q *Queries) GetPointEntry(ctx context.Context, id int64) (PointEntry, error) {
	return scanPointEntry(q.queryRow(ctx, getPointEntry, id))
}

const listPointEntries = `
SELECT p.id, p.season_id, p.club_id, c.name, p.event_id, e.name, p.category, p.points, p.reason, p.created_at
FROM point_entries p
JOIN clubs c ON c.id = p.club_id
LEFT JOIN events e ON e.id = p.event_id
WHERE p.season_id = ?
  AND (? = 0 OR p.club_id = ?)
ORDER BY p.created_at DESC, p.id DESC
LIMIT ?`

type ListPointEntriesParams struct {
	SeasonID int64
	ClubID   int64
	Limit    int64
}

type ListPointEntriesRow struct {
	ID        int64          `json:"id"`
	SeasonID  int64          `json:"seasonId"`
	ClubID    int64          `json:"clubId"`
	ClubName  string         `json:"clubName"`
	EventID   sql.NullInt64  `json:"eventId"`
	EventName sql.NullString `json:"eventName"`
	Category  string         `json:"category"`
	Points    int64          `json:"points"`
	Reason    string         `json:"reason"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ListPointEntries lists a season's ledger, newest first; ClubID 0 lists all clubs.
func (q *Queries) ListPointEntries(ctx context.Context, arg ListPointEntriesParams) ([]ListPointEntriesRow, error) {
	rows, err := q.query(ctx, listPointEntries, arg.SeasonID, arg.ClubID, arg.ClubID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListPointEntriesRow{}
	for rows.Next() {
		var i ListPointEntriesRow
		if err := rows.Scan(
			&i.ID,
			&i.SeasonID,
			&i.ClubID,
			&i.ClubName,
			&i.EventID,
			&i.EventName,
			&i.Category,
			&i.Points,
			&i.Reason,
			&i.CreatedAt,
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

const deletePointEntry = `DELETE FROM point_entries WHERE id = ?`

func (q *Queries) DeletePointEntry(ctx context.Context, id int64) (int64, error) {
	result, err := q.exec(ctx, deletePointEntry, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteEventPointEntries = `DELETE FROM point_entries WHERE event_id = ? AND category = ?`

// DeleteEventPointEntries removes an event's generated entries of one category
// so they can be recomputed.
func (q *Queries) DeleteEventPointEntries(ctx context.Context, eventID int64, category string) (int64, error) {
	result, err := q.exec(ctx, deleteEventPointEntries, eventID, category)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const leaderboardRows = `
SELECT c.id, c.name, c.code, p.category, COALESCE(SUM(p.points), 0)
FROM clubs c
LEFT JOIN point_entries p
    ON p.club_id = c.id
   AND p.season_id = ?
   AND (? = 0 OR p.event_id IN (SELECT e.id FROM events e WHERE e.sport_id = ?))
WHERE c.status = 'active'
GROUP BY c.id, c.name, c.code, p.category
ORDER BY c.id`

type LeaderboardRowsParams struct {
	SeasonID int64
	SportID  int64
}

type LeaderboardRowsRow struct {
	ClubID   int64
	ClubName string
	ClubCode string
	Category sql.NullString
	Points   int64
}

// LeaderboardRows returns one row per active club and point category. Clubs
// without entries appear once with a NULL category.
func (q *Queries) LeaderboardRows(ctx context.Context, arg LeaderboardRowsParams) ([]LeaderboardRowsRow, error) {
	rows, err := q.query(ctx, leaderboardRows, arg.SeasonID, arg.SportID, arg.SportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LeaderboardRowsRow{}
	for rows.Next() {
		var i LeaderboardRowsRow
		if err := rows.Scan(&i.ClubID, &i.ClubName, &i.ClubCode, &i.Category, &i.Points); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
