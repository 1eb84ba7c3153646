package leaderboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/leagues"
	"github.com/rcl-league/portal/internal/testutil"
)

func setupLeaderboardTest(t *testing.T) *db.DB {
	t.Helper()

	database := testutil.NewTestDB(t)
	prev := queries
	t.Cleanup(func() { queries = prev })
	queries = database.Queries
	return database
}

func addEntry(t *testing.T, database *db.DB, seasonID, clubID, eventID int64, category string, points int64) {
	t.Helper()

	params := dbgen.CreatePointEntryParams{
		SeasonID: seasonID,
		ClubID:   clubID,
		Category: category,
		Points:   points,
	}
	if eventID > 0 {
		params.EventID = sql.NullInt64{Int64: eventID, Valid: true}
	}
	if _, err := database.Queries.CreatePointEntry(context.Background(), params); err != nil {
		t.Fatalf("insert point entry: %v", err)
	}
}

func getLeaderboard(t *testing.T, target string) (leaderboardResponse, int) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", "application/json")
	recorder := httptest.NewRecorder()
	HandleLeaderboard(recorder, req)
	if recorder.Code != http.StatusOK {
		return leaderboardResponse{}, recorder.Code
	}
	var resp leaderboardResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	return resp, recorder.Code
}

func TestHandleLeaderboard(t *testing.T) {
	database := setupLeaderboardTest(t)

	season := testutil.SeedSeason(t, database, 2024)
	swim := testutil.SeedSport(t, database, "Swimming")
	run := testutil.SeedSport(t, database, "Running")
	gala := testutil.SeedEvent(t, database, season.ID, swim.ID, "Gala", "tournament")
	relay := testutil.SeedEvent(t, database, season.ID, run.ID, "Relay", "participation")

	ash := testutil.SeedClub(t, database, "Ash", 10)
	birch := testutil.SeedClub(t, database, "Birch", 10)
	cedar := testutil.SeedClub(t, database, "Cedar", 10)
	testutil.SeedClub(t, database, "Dogwood", 10)

	addEntry(t, database, season.ID, ash.ID, gala.ID, leagues.CategoryPlacement, 10)
	addEntry(t, database, season.ID, ash.ID, 0, leagues.CategoryDeduction, -3)
	addEntry(t, database, season.ID, birch.ID, gala.ID, leagues.CategoryPlacement, 7)
	addEntry(t, database, season.ID, cedar.ID, relay.ID, leagues.CategoryParticipation, 5)
	addEntry(t, database, season.ID, cedar.ID, 0, leagues.CategoryAward, 2)

	resp, code := getLeaderboard(t, "/api/v1/leaderboard")
	if code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
	if resp.Season.ID != season.ID || resp.Sport != nil {
		t.Fatalf("unexpected leaderboard scope: %+v", resp)
	}
	if len(resp.Entries) != 4 {
		t.Fatalf("expected every active club, got %d entries", len(resp.Entries))
	}

	want := []struct {
		name  string
		rank  int
		total int64
	}{
		{"Ash", 1, 7},
		{"Birch", 1, 7},
		{"Cedar", 1, 7},
		{"Dogwood", 4, 0},
	}
	for i, w := range want {
		got := resp.Entries[i]
		if got.ClubName != w.name || got.Rank != w.rank || got.Total != w.total {
			t.Fatalf("entry %d: expected %+v, got %+v", i, w, got)
		}
	}
	if resp.Entries[0].Placement != 10 || resp.Entries[0].Deductions != -3 {
		t.Fatalf("unexpected breakdown: %+v", resp.Entries[0])
	}

	resp, _ = getLeaderboard(t, "/api/v1/leaderboard?sport_id="+strconv.FormatInt(swim.ID, 10)+"&season_id="+strconv.FormatInt(season.ID, 10))
	if resp.Sport == nil || resp.Sport.ID != swim.ID {
		t.Fatalf("expected sport in response, got %+v", resp.Sport)
	}
	if resp.Entries[0].ClubName != "Ash" || resp.Entries[0].Total != 10 {
		t.Fatalf("expected sport filter to drop manual entries, got %+v", resp.Entries[0])
	}
	if resp.Entries[1].ClubName != "Birch" || resp.Entries[1].Rank != 2 {
		t.Fatalf("unexpected second place: %+v", resp.Entries[1])
	}
	if resp.Entries[2].Total != 0 || resp.Entries[2].Rank != 3 || resp.Entries[3].Rank != 3 {
		t.Fatalf("expected clubs without swimming points to tie at 3, got %+v", resp.Entries[2:])
	}
}

func TestHandleLeaderboardErrors(t *testing.T) {
	database := setupLeaderboardTest(t)

	if _, code := getLeaderboard(t, "/api/v1/leaderboard"); code != http.StatusNotFound {
		t.Fatalf("expected 404 without an active season, got %d", code)
	}

	testutil.SeedSeason(t, database, 2024)
	tests := []struct {
		target string
		want   int
	}{
		{"/api/v1/leaderboard?season_id=abc", http.StatusBadRequest},
		{"/api/v1/leaderboard?season_id=999", http.StatusNotFound},
		{"/api/v1/leaderboard?sport_id=-1", http.StatusBadRequest},
		{"/api/v1/leaderboard?sport_id=999", http.StatusNotFound},
	}
	for _, tt := range tests {
		if _, code := getLeaderboard(t, tt.target); code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.target, tt.want, code)
		}
	}
}

func TestHandleLeaderboardFragment(t *testing.T) {
	database := setupLeaderboardTest(t)
	testutil.SeedSeason(t, database, 2024)
	testutil.SeedClub(t, database, "Ash & Oak", 10)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	req.Header.Set("HX-Request", "true")
	recorder := httptest.NewRecorder()
	HandleLeaderboard(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	if body := recorder.Body.String(); !strings.Contains(body, "Ash &amp; Oak") || !strings.Contains(body, "<table") {
		t.Fatalf("unexpected fragment: %s", body)
	}
}
