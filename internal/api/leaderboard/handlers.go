// internal/api/leaderboard/handlers.go
package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	appdb "github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/leagues"
)

const leaderboardQueryTimeout = 5 * time.Second

var (
	queries     *dbgen.Queries
	queriesOnce sync.Once
)

type leaderboardResponse struct {
	Season  dbgen.Season               `json:"season"`
	Sport   *dbgen.Sport               `json:"sport,omitempty"`
	Entries []leagues.LeaderboardEntry `json:"entries"`
}

type leaderboardView struct {
	leaderboardResponse
	Seasons []dbgen.Season
	Sports  []dbgen.Sport
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB) {
	if database == nil {
		log.Warn().Msg("InitHandlers called with nil database; leaderboard handlers will be unavailable")
		return
	}
	queriesOnce.Do(func() {
		queries = database.Queries
	})
}

func loadQueries() *dbgen.Queries {
	return queries
}

// HandleLeaderboardPage renders the leaderboard page for GET /leaderboard.
func HandleLeaderboardPage(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leaderboardQueryTimeout)
	defer cancel()

	board, err := loadLeaderboard(ctx, q, r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load leaderboard")
		return
	}

	view := leaderboardView{leaderboardResponse: board}
	if view.Seasons, err = q.ListSeasons(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to load seasons for leaderboard")
		http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if view.Sports, err = q.ListSports(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to load sports for leaderboard")
		http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	apiutil.RenderPage(w, r, "Leaderboard", leaderboardPageComponent(view))
}

// GET /api/v1/leaderboard
func HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leaderboardQueryTimeout)
	defer cancel()

	board, err := loadLeaderboard(ctx, q, r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load leaderboard")
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, board); err != nil {
			logger.Error().Err(err).Int64("season_id", board.Season.ID).Msg("Failed to write leaderboard response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, tableComponent(board.Entries), nil, "Failed to render leaderboard", "Failed to render leaderboard")
}

func loadLeaderboard(ctx context.Context, q *dbgen.Queries, r *http.Request) (leaderboardResponse, error) {
	sportID, err := apiutil.QueryID(r, "sport_id")
	if err != nil {
		return leaderboardResponse{}, apiutil.FieldError{Field: "sport_id", Reason: "must be a positive integer"}
	}

	season, err := apiutil.ResolveSeason(ctx, q, r)
	if err != nil {
		return leaderboardResponse{}, err
	}

	board := leaderboardResponse{Season: season}
	if sportID > 0 {
		sport, err := q.GetSport(ctx, sportID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return leaderboardResponse{}, apiutil.HandlerError{Status: http.StatusNotFound, Message: "Sport not found", Err: err}
			}
			return leaderboardResponse{}, err
		}
		board.Sport = &sport
	}

	board.Entries, err = leagues.CalculateLeaderboard(ctx, q, season.ID, sportID)
	if err != nil {
		return leaderboardResponse{}, err
	}
	return board, nil
}
