package dbgen

import (
	"context"
	"time"
)

const seasonColumns = `id, name, starts_on, ends_on, status, created_at, updated_at`

func scanSeason(row interface{ Scan(...interface{}) error }) (Season, error) {
	var i Season
	err := row.Scan(&i.ID, &i.Name, &i.StartsOn, &i.EndsOn, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createSeason = `
INSERT INTO seasons (name, starts_on, ends_on, status) VALUES (?, ?, ?, ?)
RETURNING ` + seasonColumns

type CreateSeasonParams struct {
	Name     string
	StartsOn time.Time
	EndsOn   time.Time
	Status   string
}

func (q *Queries) CreateSeason(ctx context.Context, arg CreateSeasonParams) (Season, error) {
	return scanSeason(q.queryRow(ctx, createSeason, arg.Name, arg.StartsOn, arg.EndsOn, arg.Status))
}

const getSeason = `SELECT ` + seasonColumns + ` FROM seasons WHERE id = ?`

func (q *Queries) GetSeason(ctx context.Context, id int64) (Season, error) {
	return scanSeason(q.queryRow(ctx, getSeason, id))
}

const getActiveSeason = `
SELECT ` + seasonColumns + ` FROM seasons
WHERE status = 'active'
ORDER BY starts_on DESC, id DESC
LIMIT 1`

// GetActiveSeason returns the most recently started active season.
func (q *Queries) GetActiveSeason(ctx context.Context) (Season, error) {
	return scanSeason(q.queryRow(ctx, getActiveSeason))
}

const listSeasons = `SELECT ` + seasonColumns + ` FROM seasons ORDER BY starts_on DESC, id DESC`

func (q *Queries) ListSeasons(ctx context.Context) ([]Season, error) {
	rows, err := q.query(ctx, listSeasons)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Season{}
	for rows.Next() {
		i, err := scanSeason(rows)
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

const updateSeason = `
UPDATE seasons SET name = ?, starts_on = ?, ends_on = ?, status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + seasonColumns

type UpdateSeasonParams struct {
	ID       int64
	Name     string
	StartsOn time.Time
	EndsOn   time.Time
	Status   string
}

func (q *Queries) UpdateSeason(ctx context.Context, arg UpdateSeasonParams) (Season, error) {
	return scanSeason(q.queryRow(ctx, updateSeason, arg.Name, arg.StartsOn, arg.EndsOn, arg.Status, arg.ID))
}

const deleteSeason = `DELETE FROM seasons WHERE id = ?`

func (q *Queries) DeleteSeason(ctx context.Context, id int64) (int64, error) {
	result, err := q.exec(ctx, deleteSeason, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
