package dbgen

import (
	"context"
)

const clubColumns = `id, name, code, contact_name, contact_email, contact_phone, member_count, status, created_at, updated_at`

func scanClub(row interface{ Scan(...interface{}) error }) (Club, error) {
	var i Club
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Code,
		&i.ContactName,
		&i.ContactEmail,
		&i.ContactPhone,
		&i.MemberCount,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listClubs(ctx context.Context, query string, args ...interface{}) ([]Club, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Club{}
	for rows.Next() {
		i, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createClub = `
INSERT INTO clubs (name, code, contact_name, contact_email, contact_phone, member_count, status)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + clubColumns

type CreateClubParams struct {
	Name         string
	Code         string
	ContactName  string
	ContactEmail string
	ContactPhone string
	MemberCount  int64
	Status       string
}

func (q *Queries) CreateClub(ctx context.Context, arg CreateClubParams) (Club, error) {
	row := q.queryRow(ctx, createClub,
		arg.Name,
		arg.Code,
		arg.ContactName,
		arg.ContactEmail,
		arg.ContactPhone,
		arg.MemberCount,
		arg.Status,
	)
	return scanClub(row)
}

const getClub = `SELECT ` + clubColumns + ` FROM clubs WHERE id = ?`

func (q *Queries) GetClub(ctx context.Context, id int64) (Club, error) {
	return scanClub(q.queryRow(ctx, getClub, id))
}

const getClubByCode = `SELECT ` + clubColumns + ` FROM clubs WHERE code = UPPER(?)`

func (q *Queries) GetClubByCode(ctx context.Context, code string) (Club, error) {
	return scanClub(q.queryRow(ctx, getClubByCode, code))
}

const listClubs = `SELECT ` + clubColumns + ` FROM clubs ORDER BY name`

func (q *Queries) ListClubs(ctx context.Context) ([]Club, error) {
	return q.listClubs(ctx, listClubs)
}

const listActiveClubs = `SELECT ` + clubColumns + ` FROM clubs WHERE status = 'active' ORDER BY name`

func (q *Queries) ListActiveClubs(ctx context.Context) ([]Club, error) {
	return q.listClubs(ctx, listActiveClubs)
}

const searchClubs = `SELECT ` + clubColumns + ` FROM clubs
WHERE LOWER(name) LIKE LOWER(?) OR LOWER(code) LIKE LOWER(?)
ORDER BY name
LIMIT ?`

type SearchClubsParams struct {
	Term  string
	Limit int64
}

// SearchClubs matches name or code by substring.
func (q *Queries) SearchClubs(ctx context.Context, arg SearchClubsParams) ([]Club, error) {
	pattern := "%" + arg.Term + "%"
	return q.listClubs(ctx, searchClubs, pattern, pattern, arg.Limit)
}

const updateClub = `
UPDATE clubs
SET name = ?, code = ?, contact_name = ?, contact_email = ?, contact_phone = ?,
    member_count = ?, status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
RETURNING ` + clubColumns

type UpdateClubParams struct {
	ID           int64
	Name         string
	Code         string
	ContactName  string
	ContactEmail string
	ContactPhone string
	MemberCount  int64
	Status       string
}

func (q *Queries) UpdateClub(ctx context.Context, arg UpdateClubParams) (Club, error) {
	row := q.queryRow(ctx, updateClub,
		arg.Name,
		arg.Code,
		arg.ContactName,
		arg.ContactEmail,
		arg.ContactPhone,
		arg.MemberCount,
		arg.Status,
		arg.ID,
	)
	return scanClub(row)
}

const updateClubMemberCount = `UPDATE clubs SET member_count = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

func (q *Queries) UpdateClubMemberCount(ctx context.Context, id int64, memberCount int64) error {
	_, err := q.exec(ctx, updateClubMemberCount, memberCount, id)
	return err
}

const deleteClub = `DELETE FROM clubs WHERE id = ?`

func (q *Queries) DeleteClub(ctx context.Context, id int64) (int64, error) {
	result, err := q.exec(ctx, deleteClub, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
