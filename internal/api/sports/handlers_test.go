package sports

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/testutil"
)

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Five-a-side Football": "five-a-side-football",
		"  Table   Tennis ":    "table-tennis",
		"Rowing (Sculls)":      "rowing-sculls",
		"!!!":                  "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSportLifecycle(t *testing.T) {
	database := testutil.NewTestDB(t)
	prevQueries := queries
	t.Cleanup(func() { queries = prevQueries })
	queries = database.Queries

	rec := httptest.NewRecorder()
	HandleSportCreate(rec, jsonRequest(t, http.MethodPost, "/api/v1/sports", map[string]any{"name": "Table Tennis"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sport dbgen.Sport
	if err := json.Unmarshal(rec.Body.Bytes(), &sport); err != nil {
		t.Fatalf("decode sport: %v", err)
	}
	if sport.Slug != "table-tennis" || sport.Status != "active" {
		t.Fatalf("unexpected sport %+v", sport)
	}

	rec = httptest.NewRecorder()
	HandleSportCreate(rec, jsonRequest(t, http.MethodPost, "/api/v1/sports", map[string]any{"name": "Table Tennis"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", rec.Code)
	}

	id := strconv.FormatInt(sport.ID, 10)
	req := jsonRequest(t, http.MethodPut, "/api/v1/sports/"+id, map[string]any{"name": "Table Tennis", "status": "retired"})
	req.SetPathValue("id", id)
	rec = httptest.NewRecorder()
	HandleSportUpdate(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = jsonRequest(t, http.MethodGet, "/api/v1/sports/"+id, nil)
	req.SetPathValue("id", id)
	rec = httptest.NewRecorder()
	HandleSportGet(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &sport); err != nil {
		t.Fatalf("decode sport: %v", err)
	}
	if sport.Status != "retired" {
		t.Fatalf("expected retired sport, got %+v", sport)
	}

	rec = httptest.NewRecorder()
	HandleSportList(rec, jsonRequest(t, http.MethodGet, "/api/v1/sports", nil))
	var sports []dbgen.Sport
	if err := json.Unmarshal(rec.Body.Bytes(), &sports); err != nil {
		t.Fatalf("decode sports: %v", err)
	}
	if len(sports) != 1 {
		t.Fatalf("expected one sport, got %d", len(sports))
	}
}

func TestSportDeleteWithEventsConflicts(t *testing.T) {
	database := testutil.NewTestDB(t)
	prevQueries := queries
	t.Cleanup(func() { queries = prevQueries })
	queries = database.Queries

	season := testutil.SeedSeason(t, database, 2026)
	sport := testutil.SeedSport(t, database, "Squash")
	testutil.SeedEvent(t, database, season.ID, sport.ID, "Squash Open", "tournament")

	id := strconv.FormatInt(sport.ID, 10)
	req := jsonRequest(t, http.MethodDelete, "/api/v1/sports/"+id, nil)
	req.SetPathValue("id", id)
	rec := httptest.NewRecorder()
	HandleSportDelete(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSportCreateRejectsInvalidStatus(t *testing.T) {
	database := testutil.NewTestDB(t)
	prevQueries := queries
	t.Cleanup(func() { queries = prevQueries })
	queries = database.Queries

	rec := httptest.NewRecorder()
	HandleSportCreate(rec, jsonRequest(t, http.MethodPost, "/api/v1/sports", map[string]any{"name": "Golf", "status": "paused"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
