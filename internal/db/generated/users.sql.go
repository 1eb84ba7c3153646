package dbgen

import (
	"context"
	"database/sql"
)

const userColumns = `id, username, display_name, email, role, club_id, password_hash, external_id, status, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.DisplayName,
		&i.Email,
		&i.Role,
		&i.ClubID,
		&i.PasswordHash,
		&i.ExternalID,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `
INSERT INTO users (username, display_name, email, role, club_id, password_hash, status)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + userColumns

type CreateUserParams struct {
	Username     string
	DisplayName  string
	Email        sql.NullString
	Role         string
	ClubID       sql.NullInt64
	PasswordHash sql.NullString
	Status       string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.queryRow(ctx, createUser,
		arg.Username,
		arg.DisplayName,
		arg.Email,
		arg.Role,
		arg.ClubID,
		arg.PasswordHash,
		arg.Status,
	)
	return scanUser(row)
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.queryRow(ctx, getUserByID, id))
}

const getUserByUsername = `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER(?)`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(q.queryRow(ctx, getUserByUsername, username))
}

const upsertExternalUser = `
INSERT INTO users (username, display_name, email, role, club_id, external_id, status)
VALUES (?, ?, ?, ?, ?, ?, 'active')
ON CONFLICT (external_id) DO UPDATE SET
    username = excluded.username,
    display_name = excluded.display_name,
    email = excluded.email,
    role = excluded.role,
    club_id = excluded.club_id,
    updated_at = CURRENT_TIMESTAMP
RETURNING ` + userColumns

type UpsertExternalUserParams struct {
	Username    string
	DisplayName string
	Email       sql.NullString
	Role        string
	ClubID      sql.NullInt64
	ExternalID  string
}

// UpsertExternalUser provisions or refreshes an account that authenticated
// through the membership API.
func (q *Queries) UpsertExternalUser(ctx context.Context, arg UpsertExternalUserParams) (User, error) {
	row := q.queryRow(ctx, upsertExternalUser,
		arg.Username,
		arg.DisplayName,
		arg.Email,
		arg.Role,
		arg.ClubID,
		arg.ExternalID,
	)
	return scanUser(row)
}
