package dbgen

import (
	"database/sql"
	"time"
)

type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	DisplayName  string         `json:"displayName"`
	Email        sql.NullString `json:"email"`
	Role         string         `json:"role"`
	ClubID       sql.NullInt64  `json:"clubId"`
	PasswordHash sql.NullString `json:"-"`
	ExternalID   sql.NullString `json:"externalId"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type Club struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	ContactName  string    `json:"contactName"`
	ContactEmail string    `json:"contactEmail"`
	ContactPhone string    `json:"contactPhone"`
	MemberCount  int64     `json:"memberCount"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Sport struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Season struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartsOn  time.Time `json:"startsOn"`
	EndsOn    time.Time `json:"endsOn"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Event struct {
	ID        int64     `json:"id"`
	SeasonID  int64     `json:"seasonId"`
	SportID   int64     `json:"sportId"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	EventDate time.Time `json:"eventDate"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type EventAttendance struct {
	ID              int64     `json:"id"`
	EventID         int64     `json:"eventId"`
	ClubID          int64     `json:"clubId"`
	RegisteredCount int64     `json:"registeredCount"`
	AttendedCount   int64     `json:"attendedCount"`
	EligibleCount   int64     `json:"eligibleCount"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type TournamentMatch struct {
	ID           int64         `json:"id"`
	EventID      int64         `json:"eventId"`
	Round        int64         `json:"round"`
	Position     int64         `json:"position"`
	HomeClubID   sql.NullInt64 `json:"homeClubId"`
	AwayClubID   sql.NullInt64 `json:"awayClubId"`
	HomeScore    sql.NullInt64 `json:"homeScore"`
	AwayScore    sql.NullInt64 `json:"awayScore"`
	IsThirdPlace bool          `json:"isThirdPlace"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type PointEntry struct {
	ID        int64         `json:"id"`
	SeasonID  int64         `json:"seasonId"`
	ClubID    int64         `json:"clubId"`
	EventID   sql.NullInt64 `json:"eventId"`
	Category  string        `json:"category"`
	Points    int64         `json:"points"`
	Reason    string        `json:"reason"`
	CreatedBy sql.NullInt64 `json:"createdBy"`
	CreatedAt time.Time     `json:"createdAt"`
}
