package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/rcl-league/portal/internal/api/authz"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/leagues"
	dashboardtempl "github.com/rcl-league/portal/internal/templates/components/dashboard"
	"github.com/rcl-league/portal/internal/testutil"
)

type dashboardFixture struct {
	ash   dbgen.Club
	birch dbgen.Club
}

func setupDashboardTest(t *testing.T) dashboardFixture {
	t.Helper()

	database := testutil.NewTestDB(t)
	prev := queries
	t.Cleanup(func() { queries = prev })
	queries = database.Queries

	ctx := context.Background()
	season := testutil.SeedSeason(t, database, 2024)
	sport := testutil.SeedSport(t, database, "Rowing")
	event := testutil.SeedEvent(t, database, season.ID, sport.ID, "Regatta", "participation")
	ash := testutil.SeedClub(t, database, "Ash", 12)
	birch := testutil.SeedClub(t, database, "Birch", 8)

	if _, err := database.Queries.UpsertAttendance(ctx, dbgen.UpsertAttendanceParams{
		EventID: event.ID, ClubID: ash.ID, RegisteredCount: 10, AttendedCount: 9, EligibleCount: 12,
	}); err != nil {
		t.Fatalf("record attendance: %v", err)
	}
	for _, entry := range []dbgen.CreatePointEntryParams{
		{SeasonID: season.ID, ClubID: birch.ID, Category: leagues.CategoryAward, Points: 8, Reason: "Hosting"},
		{SeasonID: season.ID, ClubID: ash.ID, Category: leagues.CategoryAward, Points: 4, Reason: "Fair play"},
		{SeasonID: season.ID, ClubID: ash.ID, Category: leagues.CategoryDeduction, Points: -1, Reason: "Forfeit"},
	} {
		if _, err := database.Queries.CreatePointEntry(ctx, entry); err != nil {
			t.Fatalf("insert entry: %v", err)
		}
	}
	return dashboardFixture{ash: ash, birch: birch}
}

func clubUser(role string, clubID int64) *authz.AuthUser {
	return &authz.AuthUser{ID: 50, Role: role, ClubID: &clubID}
}

func metricsRequest(target string, user *authz.AuthUser) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", "application/json")
	if user != nil {
		req = req.WithContext(authz.ContextWithUser(req.Context(), user))
	}
	return req
}

func TestHandleDashboardMetrics(t *testing.T) {
	f := setupDashboardTest(t)

	recorder := httptest.NewRecorder()
	HandleDashboardMetrics(recorder, metricsRequest("/api/v1/dashboard/metrics", clubUser(authz.RoleMember, f.ash.ID)))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var data dashboardtempl.DashboardData
	if err := json.NewDecoder(recorder.Body).Decode(&data); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if data.ClubID != f.ash.ID || data.Total != 3 || data.Rank != 2 || data.ClubCount != 2 {
		t.Fatalf("unexpected standing: %+v", data)
	}
	if data.Breakdown.Awards != 4 || data.Breakdown.Deductions != -1 {
		t.Fatalf("unexpected breakdown: %+v", data.Breakdown)
	}
	if len(data.RecentEntries) != 2 {
		t.Fatalf("expected only the club's entries, got %+v", data.RecentEntries)
	}
	if len(data.Attendance) != 1 || data.Attendance[0].Percent != 75 {
		t.Fatalf("unexpected attendance: %+v", data.Attendance)
	}
}

func TestDashboardAccess(t *testing.T) {
	f := setupDashboardTest(t)
	birchID := strconv.FormatInt(f.birch.ID, 10)

	tests := []struct {
		name   string
		target string
		user   *authz.AuthUser
		want   int
	}{
		{"unauthenticated", "/api/v1/dashboard/metrics", nil, http.StatusUnauthorized},
		{"other club", "/api/v1/dashboard/metrics?club_id=" + birchID, clubUser(authz.RoleClubManager, f.ash.ID), http.StatusForbidden},
		{"no club", "/api/v1/dashboard/metrics", &authz.AuthUser{ID: 7, Role: authz.RoleMember}, http.StatusForbidden},
		{"bad club id", "/api/v1/dashboard/metrics?club_id=x", clubUser(authz.RoleMember, f.ash.ID), http.StatusBadRequest},
		{"admin needs club", "/api/v1/dashboard/metrics", &authz.AuthUser{ID: 1, Role: authz.RoleAdmin}, http.StatusBadRequest},
		{"admin any club", "/api/v1/dashboard/metrics?club_id=" + birchID, &authz.AuthUser{ID: 1, Role: authz.RoleAdmin}, http.StatusOK},
		{"missing club", "/api/v1/dashboard/metrics?club_id=999", &authz.AuthUser{ID: 1, Role: authz.RoleAdmin}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			HandleDashboardMetrics(recorder, metricsRequest(tt.target, tt.user))
			if recorder.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestHandleDashboardPageAdminSelector(t *testing.T) {
	setupDashboardTest(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: 1, Role: authz.RoleAdmin, DisplayName: "Registrar"}))
	recorder := httptest.NewRecorder()
	HandleDashboardPage(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	body := recorder.Body.String()
	if !strings.Contains(body, `name="club_id"`) || !strings.Contains(body, ">Birch<") {
		t.Fatalf("expected club selector, got %s", body)
	}
	if strings.Contains(body, `id="club-total"`) {
		t.Fatalf("expected no metrics before a club is chosen")
	}
}
