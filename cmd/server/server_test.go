package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rcl-league/portal/internal/api/authz"
)

func TestRouteGates(t *testing.T) {
	mux := http.NewServeMux()
	registerRoutes(mux, t.TempDir())

	clubID := int64(3)
	member := &authz.AuthUser{ID: 9, Role: authz.RoleMember, ClubID: &clubID}

	tests := []struct {
		name   string
		method string
		target string
		user   *authz.AuthUser
		want   int
	}{
		{"health", http.MethodGet, "/health", nil, http.StatusOK},
		{"anonymous api", http.MethodGet, "/api/v1/leaderboard", nil, http.StatusUnauthorized},
		{"anonymous page", http.MethodGet, "/leaderboard", nil, http.StatusSeeOther},
		{"member on admin api", http.MethodPost, "/api/v1/points/awards", member, http.StatusForbidden},
		{"member on attendance", http.MethodPut, "/api/v1/events/1/attendance/3", member, http.StatusForbidden},
		{"member on admin page", http.MethodGet, "/clubs", member, http.StatusForbidden},
		{"member on sport list", http.MethodGet, "/api/v1/sports", member, http.StatusForbidden},
		{"member on sport", http.MethodGet, "/api/v1/sports/1", member, http.StatusForbidden},
		{"member on season list", http.MethodGet, "/api/v1/seasons", member, http.StatusForbidden},
		{"member on season", http.MethodGet, "/api/v1/seasons/1", member, http.StatusForbidden},
		{"wrong method", http.MethodDelete, "/api/v1/leaderboard", member, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.user != nil {
				req = req.WithContext(authz.ContextWithUser(req.Context(), tt.user))
			}
			recorder := httptest.NewRecorder()
			mux.ServeHTTP(recorder, req)
			if recorder.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, recorder.Code)
			}
		})
	}
}

func TestHandleHome(t *testing.T) {
	clubID := int64(3)
	tests := []struct {
		user *authz.AuthUser
		want string
	}{
		{&authz.AuthUser{ID: 1, Role: authz.RoleAdmin}, "/leaderboard"},
		{&authz.AuthUser{ID: 2, Role: authz.RoleMember, ClubID: &clubID}, "/dashboard"},
		{&authz.AuthUser{ID: 3, Role: authz.RoleClubManager, ClubID: &clubID}, "/dashboard"},
		{&authz.AuthUser{ID: 4, Role: authz.RoleMember}, "/leaderboard"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(authz.ContextWithUser(req.Context(), tt.user))
		recorder := httptest.NewRecorder()
		handleHome(recorder, req)
		if got := recorder.Header().Get("Location"); got != tt.want {
			t.Fatalf("role %s: expected redirect to %s, got %s", tt.user.Role, tt.want, got)
		}
	}
}
