package seasons

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

func setupSeasonsTest(t *testing.T) {
	t.Helper()

	database := testutil.NewTestDB(t)
	prevQueries := queries
	t.Cleanup(func() { queries = prevQueries })
	queries = database.Queries
}

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

func TestParseSeasonRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     seasonRequest
		wantErr bool
		status  string
	}{
		{"defaults to draft", seasonRequest{Name: "2026", StartsOn: "2026-01-01", EndsOn: "2026-12-31"}, false, "draft"},
		{"same day", seasonRequest{Name: "Cup", StartsOn: "2026-05-01", EndsOn: "2026-05-01", Status: "active"}, false, "active"},
		{"ends before start", seasonRequest{Name: "x", StartsOn: "2026-05-02", EndsOn: "2026-05-01"}, true, ""},
		{"bad date", seasonRequest{Name: "x", StartsOn: "May 1", EndsOn: "2026-05-01"}, true, ""},
		{"missing name", seasonRequest{StartsOn: "2026-05-01", EndsOn: "2026-05-01"}, true, ""},
		{"bad status", seasonRequest{Name: "x", StartsOn: "2026-05-01", EndsOn: "2026-05-01", Status: "open"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := parseSeasonRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if !tt.wantErr && in.Status != tt.status {
				t.Fatalf("expected status %q, got %q", tt.status, in.Status)
			}
		})
	}
}

func TestSeasonCreateAndUpdate(t *testing.T) {
	setupSeasonsTest(t)

	rec := httptest.NewRecorder()
	HandleSeasonCreate(rec, jsonRequest(t, http.MethodPost, "/api/v1/seasons", map[string]any{
		"name": "Season 2026", "startsOn": "2026-01-01", "endsOn": "2026-12-31", "status": "active",
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var season dbgen.Season
	if err := json.Unmarshal(rec.Body.Bytes(), &season); err != nil {
		t.Fatalf("decode season: %v", err)
	}

	rec = httptest.NewRecorder()
	HandleSeasonCreate(rec, jsonRequest(t, http.MethodPost, "/api/v1/seasons", map[string]any{
		"name": "Season 2026", "startsOn": "2026-01-01", "endsOn": "2026-12-31",
	}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	id := strconv.FormatInt(season.ID, 10)
	req := jsonRequest(t, http.MethodPut, "/api/v1/seasons/"+id, map[string]any{
		"name": "Season 2026", "startsOn": "2026-01-01", "endsOn": "2026-12-31", "status": "closed",
	})
	req.SetPathValue("id", id)
	rec = httptest.NewRecorder()
	HandleSeasonUpdate(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &season); err != nil {
		t.Fatalf("decode season: %v", err)
	}
	if season.Status != "closed" {
		t.Fatalf("expected closed season, got %q", season.Status)
	}

	req = jsonRequest(t, http.MethodPut, "/api/v1/seasons/999", map[string]any{
		"name": "Ghost", "startsOn": "2026-01-01", "endsOn": "2026-12-31",
	})
	req.SetPathValue("id", "999")
	rec = httptest.NewRecorder()
	HandleSeasonUpdate(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSeasonDelete(t *testing.T) {
	setupSeasonsTest(t)

	req := jsonRequest(t, http.MethodDelete, "/api/v1/seasons/42", nil)
	req.SetPathValue("id", "42")
	rec := httptest.NewRecorder()
	HandleSeasonDelete(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	req = jsonRequest(t, http.MethodDelete, "/api/v1/seasons/abc", nil)
	req.SetPathValue("id", "abc")
	rec = httptest.NewRecorder()
	HandleSeasonDelete(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
