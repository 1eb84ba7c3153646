package dbgen

import "context"

const sportColumns = `id, name, slug, status, created_at, updated_at`

func scanSport(row interface{ Scan(...interface{}) error }) (Sport, error) {
	var i Sport
	err := row.Scan(&i.ID, &i.Name, &i.Slug, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createSport = `INSERT INTO sports (name, slug, status) VALUES (?, ?, ?) RETURNING ` + sportColumns

type CreateSportParams struct {
	Name   string
	Slug   string
	Status string
}

func (q *Queries) CreateSport(ctx context.Context, arg CreateSportParams) (Sport, error) {
	return scanSport(q.queryRow(ctx, createSport, arg.Name, arg.Slug, arg.Status))
}

const getSport = `SELECT ` + sportColumns + ` FROM sports WHERE id = ?`

func (q *Queries) GetSport(ctx context.Context, id int64) (Sport, error) {
	return scanSport(q.queryRow(ctx, getSport, id))
}

const listSports = `SELECT ` + sportColumns + ` FROM sports ORDER BY name`

func (q *Queries) ListSports(ctx context.Context) ([]Sport, error) {
	rows, err := q.query(ctx, listSports)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Sport{}
	for rows.Next() {
		i, err := scanSport(rows)
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

const updateSport = `
UPDATE sports SET name = ?, slug = ?, status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + sportColumns

type UpdateSportParams struct {
	ID     int64
	Name   string
	Slug   string
	Status string
}

func (q *Queries) UpdateSport(ctx context.Context, arg UpdateSportParams) (Sport, error) {
	return scanSport(q.queryRow(ctx, updateSport, arg.Name, arg.Slug, arg.Status, arg.ID))
}

const deleteSport = `DELETE FROM sports WHERE id = ?`

func (q *Queries) DeleteSport(ctx context.Context, id int64) (int64, error) {
	result, err := q.exec(ctx, deleteSport, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
