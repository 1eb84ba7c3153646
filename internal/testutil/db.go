package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedClub inserts an active club with the given roster size.
func SeedClub(t *testing.T, database *db.DB, name string, memberCount int64) dbgen.Club {
	t.Helper()

	code := strings.ToUpper(strings.ReplaceAll(name, " ", ""))
	if len(code) > 6 {
		code = code[:6]
	}
	club, err := database.Queries.CreateClub(context.Background(), dbgen.CreateClubParams{
		Name:         name,
		Code:         code,
		ContactEmail: strings.ToLower(code) + "@clubs.test",
		MemberCount:  memberCount,
		Status:       "active",
	})
	if err != nil {
		t.Fatalf("insert club %q: %v", name, err)
	}
	return club
}

// SeedSeason inserts an active season covering the given year.
func SeedSeason(t *testing.T, database *db.DB, year int) dbgen.Season {
	t.Helper()

	season, err := database.Queries.CreateSeason(context.Background(), dbgen.CreateSeasonParams{
		Name:     "Season " + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006"),
		StartsOn: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		EndsOn:   time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:   "active",
	})
	if err != nil {
		t.Fatalf("insert season: %v", err)
	}
	return season
}

// SeedSport inserts an active sport.
func SeedSport(t *testing.T, database *db.DB, name string) dbgen.Sport {
	t.Helper()

	sport, err := database.Queries.CreateSport(context.Background(), dbgen.CreateSportParams{
		Name:   name,
		Slug:   strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Status: "active",
	})
	if err != nil {
		t.Fatalf("insert sport %q: %v", name, err)
	}
	return sport
}

// SeedEvent inserts a scheduled event of the given kind.
func SeedEvent(t *testing.T, database *db.DB, seasonID, sportID int64, name, kind string) dbgen.Event {
	t.Helper()

	event, err := database.Queries.CreateEvent(context.Background(), dbgen.CreateEventParams{
		SeasonID:  seasonID,
		SportID:   sportID,
		Name:      name,
		Kind:      kind,
		EventDate: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Status:    "scheduled",
	})
	if err != nil {
		t.Fatalf("insert event %q: %v", name, err)
	}
	return event
}

// SeedMatch inserts a bracket match. A zero club ID leaves that side empty and
// a negative score leaves the score unset.
func SeedMatch(t *testing.T, database *db.DB, eventID, round, position, homeID, awayID, homeScore, awayScore int64) dbgen.TournamentMatch {
	t.Helper()

	match, err := database.Queries.CreateMatch(context.Background(), dbgen.CreateMatchParams{
		EventID:    eventID,
		Round:      round,
		Position:   position,
		HomeClubID: nullID(homeID),
		AwayClubID: nullID(awayID),
		HomeScore:  nullScore(homeScore),
		AwayScore:  nullScore(awayScore),
	})
	if err != nil {
		t.Fatalf("insert match r%d p%d: %v", round, position, err)
	}
	return match
}

func nullID(id int64) sql.NullInt64 {
	if id <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func nullScore(score int64) sql.NullInt64 {
	if score < 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: score, Valid: true}
}

// SeedUser inserts an active local user without a password.
func SeedUser(t *testing.T, database *db.DB, username, role string, clubID int64) dbgen.User {
	t.Helper()

	user, err := database.Queries.CreateUser(context.Background(), dbgen.CreateUserParams{
		Username:    username,
		DisplayName: username,
		Role:        role,
		ClubID:      nullID(clubID),
		Status:      "active",
	})
	if err != nil {
		t.Fatalf("insert user %q: %v", username, err)
	}
	return user
}
