// internal/api/dashboard/handlers.go
package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rcl-league/portal/internal/api/apiutil"
	"github.com/rcl-league/portal/internal/api/authz"
	appdb "github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/leagues"
	dashboardtempl "github.com/rcl-league/portal/internal/templates/components/dashboard"
)

const (
	dashboardQueryTimeout = 5 * time.Second
	recentEntryLimit      = 10
)

var (
	queries     *dbgen.Queries
	queriesOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB) {
	if database == nil {
		log.Warn().Msg("InitHandlers called with nil database; dashboard handlers will be unavailable")
		return
	}
	queriesOnce.Do(func() {
		queries = database.Queries
	})
}

// HandleDashboardPage renders the dashboard page for GET /dashboard.
func HandleDashboardPage(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	user := authz.UserFromContext(r.Context())
	clubID, err := resolveClubID(r, user)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := requireDashboardAccess(user, clubID); err != nil {
		respondAccessError(w, r, clubID, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dashboardQueryTimeout)
	defer cancel()

	var data dashboardtempl.DashboardData
	if clubID > 0 {
		data, err = buildDashboardData(ctx, q, r, clubID)
		if err != nil {
			apiutil.WriteError(w, r, err, "Failed to build dashboard data")
			return
		}
	}

	if authz.IsAdmin(user) {
		clubs, err := q.ListActiveClubs(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load clubs for dashboard")
			http.Error(w, "Failed to load clubs", http.StatusInternalServerError)
			return
		}
		data.ShowClubSelector = true
		data.Clubs = make([]dashboardtempl.ClubOption, 0, len(clubs))
		for _, club := range clubs {
			data.Clubs = append(data.Clubs, dashboardtempl.ClubOption{ID: club.ID, Name: club.Name})
		}
	}

	apiutil.RenderPage(w, r, "Dashboard", dashboardtempl.DashboardLayout(data))
}

// HandleDashboardMetrics returns the dashboard metrics for GET /api/v1/dashboard/metrics.
func HandleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	user := authz.UserFromContext(r.Context())
	clubID, err := resolveClubID(r, user)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := requireDashboardAccess(user, clubID); err != nil {
		respondAccessError(w, r, clubID, err)
		return
	}
	if clubID == 0 {
		http.Error(w, "club_id is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dashboardQueryTimeout)
	defer cancel()

	data, err := buildDashboardData(ctx, q, r, clubID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to build dashboard metrics")
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, data); err != nil {
			logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to write dashboard response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, dashboardtempl.DashboardMetrics(data), nil, "Failed to render dashboard metrics", "Failed to render metrics")
}

func buildDashboardData(ctx context.Context, q *dbgen.Queries, r *http.Request, clubID int64) (dashboardtempl.DashboardData, error) {
	club, err := q.GetClub(ctx, clubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dashboardtempl.DashboardData{}, apiutil.HandlerError{Status: http.StatusNotFound, Message: "Club not found", Err: err}
		}
		return dashboardtempl.DashboardData{}, err
	}
	season, err := apiutil.ResolveSeason(ctx, q, r)
	if err != nil {
		return dashboardtempl.DashboardData{}, err
	}

	data := dashboardtempl.DashboardData{
		ClubID:     club.ID,
		ClubName:   club.Name,
		SeasonID:   season.ID,
		SeasonName: season.Name,
	}

	var (
		board      []leagues.LeaderboardEntry
		entries    []dbgen.ListPointEntriesRow
		attendance []dbgen.ListClubAttendanceRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		board, err = leagues.CalculateLeaderboard(gctx, q, season.ID, 0)
		if err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = q.ListPointEntries(gctx, dbgen.ListPointEntriesParams{SeasonID: season.ID, ClubID: club.ID, Limit: recentEntryLimit})
		if err != nil {
			return fmt.Errorf("recent entries: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		attendance, err = q.ListClubAttendance(gctx, club.ID, season.ID)
		if err != nil {
			return fmt.Errorf("attendance: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return dashboardtempl.DashboardData{}, err
	}

	data.ClubCount = len(board)
	for _, entry := range board {
		if entry.ClubID != club.ID {
			continue
		}
		data.Rank = entry.Rank
		data.Total = entry.Total
		data.Breakdown = dashboardtempl.PointsBreakdown{
			Placement:     entry.Placement,
			Participation: entry.Participation,
			Awards:        entry.Awards,
			Deductions:    entry.Deductions,
		}
		break
	}

	data.RecentEntries = make([]dashboardtempl.RecentEntry, 0, len(entries))
	for _, entry := range entries {
		data.RecentEntries = append(data.RecentEntries, dashboardtempl.RecentEntry{
			Date:      entry.CreatedAt,
			EventName: entry.EventName.String,
			Category:  entry.Category,
			Points:    entry.Points,
			Reason:    entry.Reason,
		})
	}

	data.Attendance = make([]dashboardtempl.AttendanceSummary, 0, len(attendance))
	for _, row := range attendance {
		data.Attendance = append(data.Attendance, dashboardtempl.AttendanceSummary{
			EventID:   row.EventID,
			EventName: row.EventName,
			EventDate: row.EventDate,
			Attended:  row.AttendedCount,
			Eligible:  row.EligibleCount,
			Percent:   leagues.ParticipationPercent(row.AttendedCount, row.EligibleCount),
		})
	}
	return data, nil
}

// resolveClubID picks the club from ?club_id, falling back to the user's own
// club. Admins without a club get 0 and a club picker.
func resolveClubID(r *http.Request, user *authz.AuthUser) (int64, error) {
	rawClubID := strings.TrimSpace(r.URL.Query().Get("club_id"))
	if rawClubID != "" {
		clubID, err := apiutil.ParsePositiveInt64Field(rawClubID, "club_id")
		if err != nil {
			return 0, fmt.Errorf("club_id must be a positive integer")
		}
		return clubID, nil
	}
	if user != nil && user.ClubID != nil {
		return *user.ClubID, nil
	}
	return 0, nil
}

func requireDashboardAccess(user *authz.AuthUser, clubID int64) error {
	if user == nil {
		return authz.ErrUnauthenticated
	}
	if authz.IsAdmin(user) {
		return nil
	}
	if user.ClubID == nil || *user.ClubID != clubID {
		return authz.ErrForbidden
	}
	return nil
}

func respondAccessError(w http.ResponseWriter, r *http.Request, clubID int64, err error) {
	logger := log.Ctx(r.Context())
	user := authz.UserFromContext(r.Context())

	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		logger.Warn().Int64("club_id", clubID).Msg("Dashboard access denied: unauthenticated")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, authz.ErrForbidden):
		logEvent := logger.Warn().Int64("club_id", clubID)
		if user != nil {
			logEvent = logEvent.Int64("user_id", user.ID).Str("role", user.Role)
		}
		logEvent.Msg("Dashboard access denied: forbidden")
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		logger.Error().Err(err).Int64("club_id", clubID).Msg("Dashboard access denied: error")
		http.Error(w, "Failed to authorize request", http.StatusInternalServerError)
	}
}

func loadQueries() *dbgen.Queries {
	return queries
}
