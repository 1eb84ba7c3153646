package dbgen

import (
	"context"
	"database/sql"
)

const matchColumns = `id, event_id, round, position, home_club_id, away_club_id, home_score, away_score, is_third_place, created_at, updated_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (TournamentMatch, error) {
	var i TournamentMatch
	err := row.Scan(
		&i.ID,
		&i.EventID,
		&i.Round,
		&i.Position,
		&i.HomeClubID,
		&i.AwayClubID,
		&i.HomeScore,
		&i.AwayScore,
		&i.IsThirdPlace,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMatch = `
INSERT INTO tournament_matches (event_id, round, position, home_club_id, away_club_id, home_score, away_score, is_third_place)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + matchColumns

type CreateMatchParams struct {
	EventID      int64
	Round        int64
	Position     int64
	HomeClubID   sql.NullInt64
	AwayClubID   sql.NullInt64
	HomeScore    sql.NullInt64
	AwayScore    sql.NullInt64
	IsThirdPlace bool
}

func (q *Queries) CreateMatch(ctx context.Context, arg CreateMatchParams) (TournamentMatch, error) {
	row := q.queryRow(ctx, createMatch,
		arg.EventID,
		arg.Round,
		arg.Position,
		arg.HomeClubID,
		arg.AwayClubID,
		arg.HomeScore,
		arg.AwayScore,
		arg.IsThirdPlace,
	)
	return scanMatch(row)
}

const getMatch = `SELECT ` + matchColumns + ` FROM tournament_matches WHERE id = ?`

func (q *Queries) GetMatch(ctx context.Context, id int64) (TournamentMatch, error) {
	return scanMatch(q.queryRow(ctx, getMatch, id))
}

const listEventMatches = `
SELECT ` + matchColumns + ` FROM tournament_matches
WHERE event_id = ?
ORDER BY is_third_place, round, position`

func (q *Queries) ListEventMatches(ctx context.Context, eventID int64) ([]TournamentMatch, error) {
	rows, err := q.query(ctx, listEventMatches, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []TournamentMatch{}
	for rows.Next() {
		i, err := scanMatch(rows)
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

const updateMatch = `
UPDATE tournament_matches
SET round = ?, position = ?, home_club_id = ?, away_club_id = ?, home_score = ?, away_score = ?,
    is_third_place = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + matchColumns

type UpdateMatchParams struct {
	ID           int64
	Round        int64
	Position     int64
	HomeClubID   sql.NullInt64
	AwayClubID   sql.NullInt64
	HomeScore    sql.NullInt64
	AwayScore    sql.NullInt64
	IsThirdPlace bool
}

func (q *Queries) UpdateMatch(ctx context.Context, arg UpdateMatchParams) (TournamentMatch, error) {
	row := q.queryRow(ctx, updateMatch,
		arg.Round,
		arg.Position,
		arg.HomeClubID,
		arg.AwayClubID,
		arg.HomeScore,
		arg.AwayScore,
		arg.IsThirdPlace,
		arg.ID,
	)
	return scanMatch(row)
}

const deleteMatch = `DELETE FROM tournament_matches WHERE id = ?`

func (q *Queries) DeleteMatch(ctx context.Context, id int64) (int64, error) {
	result, err := q.exec(ctx, deleteMatch, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
