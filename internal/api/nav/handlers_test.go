package nav

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rcl-league/portal/internal/api/authz"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/testutil"
)

func hrefs(items []MenuItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Href)
	}
	return out
}

func TestMenuFor(t *testing.T) {
	clubID := int64(3)
	tests := []struct {
		name string
		user *authz.AuthUser
		want []string
	}{
		{"anonymous", nil, []string{"/login"}},
		{"member without club", &authz.AuthUser{ID: 1, Role: authz.RoleMember}, []string{"/leaderboard", "/events"}},
		{"club manager", &authz.AuthUser{ID: 2, Role: authz.RoleClubManager, ClubID: &clubID}, []string{"/dashboard", "/leaderboard", "/events"}},
		{"admin", &authz.AuthUser{ID: 3, Role: authz.RoleAdmin}, []string{"/dashboard", "/leaderboard", "/events", "/clubs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hrefs(MenuFor(tt.user))
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestHandleMenuHTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nav/menu?current=/clubs", nil)
	req.Header.Set("HX-Request", "true")
	req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: 1, Role: authz.RoleAdmin}))
	rec := httptest.NewRecorder()

	HandleMenu(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `href="/clubs"`) || !strings.Contains(body, "font-semibold") {
		t.Fatalf("expected highlighted clubs link, got %s", body)
	}
}

func TestHandleSearch(t *testing.T) {
	database := testutil.NewTestDB(t)
	InitHandlers(database.Queries)

	testutil.SeedClub(t, database, "Harbour Rowing", 20)
	testutil.SeedClub(t, database, "Hillside", 12)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nav/search?q=harb", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	HandleSearch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var clubs []dbgen.Club
	if err := json.Unmarshal(rec.Body.Bytes(), &clubs); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(clubs) != 1 || clubs[0].Name != "Harbour Rowing" {
		t.Fatalf("expected one match, got %+v", clubs)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/nav/search?q=", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	HandleSearch(rec, req)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty results, got %q", rec.Body.String())
	}
}
