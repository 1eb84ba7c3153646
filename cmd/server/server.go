// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api"
	"github.com/rcl-league/portal/internal/api/auth"
	"github.com/rcl-league/portal/internal/api/authz"
	"github.com/rcl-league/portal/internal/api/clubs"
	"github.com/rcl-league/portal/internal/api/dashboard"
	"github.com/rcl-league/portal/internal/api/events"
	"github.com/rcl-league/portal/internal/api/leaderboard"
	"github.com/rcl-league/portal/internal/api/nav"
	"github.com/rcl-league/portal/internal/api/points"
	"github.com/rcl-league/portal/internal/api/seasons"
	"github.com/rcl-league/portal/internal/api/sports"
	"github.com/rcl-league/portal/internal/api/tournaments"
	"github.com/rcl-league/portal/internal/config"
)

func newServer(cfg *config.Config) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithAuth,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	registerRoutes(router, cfg.App.StaticDir)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// page requires a signed-in user and redirects anonymous visitors to /login.
func page(h http.HandlerFunc, roles ...string) http.Handler {
	if len(roles) == 0 {
		return api.WithSignIn(h)
	}
	return api.WithSignIn(api.WithRole(roles...)(h))
}

// anyone admits every signed-in role.
func anyone(h http.HandlerFunc) http.Handler {
	return api.WithRole(authz.RoleClubManager, authz.RoleMember)(h)
}

// adminOnly admits admins.
func adminOnly(h http.HandlerFunc) http.Handler {
	return api.WithRole()(h)
}

func registerRoutes(mux *http.ServeMux, staticDir string) {
	mux.Handle("GET /{$}", page(handleHome))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Auth
	mux.HandleFunc("GET /login", auth.HandleLoginPage)
	mux.HandleFunc("POST /auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /auth/logout", auth.HandleLogout)

	// Navigation
	mux.HandleFunc("GET /api/v1/nav/menu", nav.HandleMenu)
	mux.HandleFunc("GET /api/v1/nav/menu/close", nav.HandleMenuClose)
	mux.Handle("GET /api/v1/nav/search", anyone(nav.HandleSearch))

	// Clubs
	mux.Handle("GET /clubs", page(clubs.HandleClubsPage, authz.RoleAdmin))
	mux.Handle("GET /api/v1/clubs", adminOnly(clubs.HandleClubList))
	mux.Handle("POST /api/v1/clubs", adminOnly(clubs.HandleClubCreate))
	mux.Handle("GET /api/v1/clubs/{id}", anyone(clubs.HandleClubGet))
	mux.Handle("PUT /api/v1/clubs/{id}", adminOnly(clubs.HandleClubUpdate))
	mux.Handle("DELETE /api/v1/clubs/{id}", adminOnly(clubs.HandleClubDelete))

	// Sports
	mux.Handle("GET /api/v1/sports", adminOnly(sports.HandleSportList))
	mux.Handle("POST /api/v1/sports", adminOnly(sports.HandleSportCreate))
	mux.Handle("GET /api/v1/sports/{id}", adminOnly(sports.HandleSportGet))
	mux.Handle("PUT /api/v1/sports/{id}", adminOnly(sports.HandleSportUpdate))
	mux.Handle("DELETE /api/v1/sports/{id}", adminOnly(sports.HandleSportDelete))

	// Seasons
	mux.Handle("GET /api/v1/seasons", adminOnly(seasons.HandleSeasonList))
	mux.Handle("POST /api/v1/seasons", adminOnly(seasons.HandleSeasonCreate))
	mux.Handle("GET /api/v1/seasons/{id}", adminOnly(seasons.HandleSeasonGet))
	mux.Handle("PUT /api/v1/seasons/{id}", adminOnly(seasons.HandleSeasonUpdate))
	mux.Handle("DELETE /api/v1/seasons/{id}", adminOnly(seasons.HandleSeasonDelete))

	// Events and attendance
	mux.Handle("GET /events", page(events.HandleEventsPage))
	mux.Handle("GET /api/v1/events", anyone(events.HandleEventList))
	mux.Handle("POST /api/v1/events", adminOnly(events.HandleEventCreate))
	mux.Handle("GET /api/v1/events/{id}", anyone(events.HandleEventGet))
	mux.Handle("PUT /api/v1/events/{id}", adminOnly(events.HandleEventUpdate))
	mux.Handle("DELETE /api/v1/events/{id}", adminOnly(events.HandleEventDelete))
	mux.Handle("GET /api/v1/events/{id}/attendance", anyone(events.HandleAttendanceList))
	mux.Handle("PUT /api/v1/events/{id}/attendance/{club_id}", api.WithRole(authz.RoleClubManager)(http.HandlerFunc(events.HandleAttendanceUpsert)))
	mux.Handle("POST /api/v1/events/{id}/participation/award", adminOnly(events.HandleParticipationAward))

	// Tournaments
	mux.Handle("GET /api/v1/events/{id}/matches", anyone(tournaments.HandleMatchList))
	mux.Handle("POST /api/v1/events/{id}/matches", adminOnly(tournaments.HandleMatchCreate))
	mux.Handle("PUT /api/v1/events/{id}/matches/{match_id}", adminOnly(tournaments.HandleMatchUpdate))
	mux.Handle("DELETE /api/v1/events/{id}/matches/{match_id}", adminOnly(tournaments.HandleMatchDelete))
	mux.Handle("POST /api/v1/events/{id}/bracket", adminOnly(tournaments.HandleBracketGenerate))
	mux.Handle("GET /api/v1/events/{id}/standings", anyone(tournaments.HandleStandings))
	mux.Handle("POST /api/v1/events/{id}/finalize", adminOnly(tournaments.HandleFinalize))

	// Points ledger
	mux.Handle("GET /api/v1/points", anyone(points.HandlePointList))
	mux.Handle("POST /api/v1/points/awards", adminOnly(points.HandleAwardCreate))
	mux.Handle("POST /api/v1/points/deductions", adminOnly(points.HandleDeductionCreate))
	mux.Handle("DELETE /api/v1/points/{id}", adminOnly(points.HandlePointDelete))

	// Leaderboard and dashboard
	mux.Handle("GET /leaderboard", page(leaderboard.HandleLeaderboardPage))
	mux.Handle("GET /api/v1/leaderboard", anyone(leaderboard.HandleLeaderboard))
	mux.Handle("GET /dashboard", page(dashboard.HandleDashboardPage))
	mux.Handle("GET /api/v1/dashboard/metrics", anyone(dashboard.HandleDashboardMetrics))

	fs := http.FileServer(http.Dir(staticDir))
	mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().
			Str("path", r.URL.Path).
			Str("static_dir", staticDir).
			Msg("Static file request")
		http.StripPrefix("/static/", fs).ServeHTTP(w, r)
	}))
}

func handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, authz.LandingPath(authz.UserFromContext(r.Context())), http.StatusSeeOther)
}
