// internal/api/seasons/handlers.go
package seasons

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

const (
	seasonQueryTimeout = 5 * time.Second
	seasonIDParam      = "id"
)

var (
	queries     *dbgen.Queries
	queriesOnce sync.Once
)

type seasonRequest struct {
	Name     string `json:"name" validate:"required,max=60"`
	StartsOn string `json:"startsOn" validate:"required"`
	EndsOn   string `json:"endsOn" validate:"required"`
	Status   string `json:"status" validate:"omitempty,oneof=draft active closed"`
}

type seasonInput struct {
	Name     string
	StartsOn time.Time
	EndsOn   time.Time
	Status   string
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *dbgen.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

func loadQueries() *dbgen.Queries {
	return queries
}

// GET /api/v1/seasons
func HandleSeasonList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), seasonQueryTimeout)
	defer cancel()

	seasons, err := q.ListSeasons(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch seasons")
		http.Error(w, "Failed to load seasons", http.StatusInternalServerError)
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, seasons); err != nil {
			logger.Error().Err(err).Msg("Failed to write seasons response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, seasonListComponent(seasons), nil, "Failed to render seasons", "Failed to render seasons")
}

// GET /api/v1/seasons/{id}
func HandleSeasonGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	seasonID, err := apiutil.PathID(r, seasonIDParam)
	if err != nil {
		http.Error(w, "Invalid season ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), seasonQueryTimeout)
	defer cancel()

	season, err := q.GetSeason(ctx, seasonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Season not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("season_id", seasonID).Msg("Failed to fetch season")
		http.Error(w, "Failed to load season", http.StatusInternalServerError)
		return
	}
	writeSeason(w, r, http.StatusOK, season)
}

// POST /api/v1/seasons
func HandleSeasonCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	in, err := decodeSeasonRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid season request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), seasonQueryTimeout)
	defer cancel()

	season, err := q.CreateSeason(ctx, dbgen.CreateSeasonParams{
		Name:     in.Name,
		StartsOn: in.StartsOn,
		EndsOn:   in.EndsOn,
		Status:   in.Status,
	})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			http.Error(w, "A season with this name already exists", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Str("name", in.Name).Msg("Failed to create season")
		http.Error(w, "Failed to create season", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("season_id", season.ID).Str("status", season.Status).Msg("Season created")
	writeSeason(w, r, http.StatusCreated, season)
}

// PUT /api/v1/seasons/{id}
func HandleSeasonUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	seasonID, err := apiutil.PathID(r, seasonIDParam)
	if err != nil {
		http.Error(w, "Invalid season ID", http.StatusBadRequest)
		return
	}
	in, err := decodeSeasonRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid season request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), seasonQueryTimeout)
	defer cancel()

	season, err := q.UpdateSeason(ctx, dbgen.UpdateSeasonParams{
		ID:       seasonID,
		Name:     in.Name,
		StartsOn: in.StartsOn,
		EndsOn:   in.EndsOn,
		Status:   in.Status,
	})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			http.Error(w, "A season with this name already exists", http.StatusConflict)
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Season not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("season_id", seasonID).Msg("Failed to update season")
		http.Error(w, "Failed to update season", http.StatusInternalServerError)
		return
	}
	writeSeason(w, r, http.StatusOK, season)
}

// DELETE /api/v1/seasons/{id}
func HandleSeasonDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	seasonID, err := apiutil.PathID(r, seasonIDParam)
	if err != nil {
		http.Error(w, "Invalid season ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), seasonQueryTimeout)
	defer cancel()

	deleted, err := q.DeleteSeason(ctx, seasonID)
	if err != nil {
		if apiutil.IsForeignKeyViolation(err) {
			http.Error(w, "Season is still in use; close it instead", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Int64("season_id", seasonID).Msg("Failed to delete season")
		http.Error(w, "Failed to delete season", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		http.Error(w, "Season not found", http.StatusNotFound)
		return
	}

	logger.Info().Int64("season_id", seasonID).Msg("Season deleted")

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true}); err != nil {
			logger.Error().Err(err).Int64("season_id", seasonID).Msg("Failed to write season response")
		}
		return
	}
	apiutil.WriteHTMLFeedback(w, http.StatusOK, "Season deleted")
}

func decodeSeasonRequest(r *http.Request) (seasonInput, error) {
	var req seasonRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return seasonInput{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return seasonInput{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		req = seasonRequest{
			Name:     r.FormValue("name"),
			StartsOn: apiutil.FirstNonEmpty(r.FormValue("starts_on"), r.FormValue("startsOn")),
			EndsOn:   apiutil.FirstNonEmpty(r.FormValue("ends_on"), r.FormValue("endsOn")),
			Status:   r.FormValue("status"),
		}
	}
	return parseSeasonRequest(req)
}

func parseSeasonRequest(req seasonRequest) (seasonInput, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Status = strings.TrimSpace(req.Status)
	if err := apiutil.ValidateStruct(req); err != nil {
		return seasonInput{}, err
	}

	startsOn, err := apiutil.ParseDateField(req.StartsOn, "startsOn")
	if err != nil {
		return seasonInput{}, apiutil.FieldError{Field: "startsOn", Reason: "must be a date (YYYY-MM-DD)"}
	}
	endsOn, err := apiutil.ParseDateField(req.EndsOn, "endsOn")
	if err != nil {
		return seasonInput{}, apiutil.FieldError{Field: "endsOn", Reason: "must be a date (YYYY-MM-DD)"}
	}
	if endsOn.Before(startsOn) {
		return seasonInput{}, apiutil.FieldError{Field: "endsOn", Reason: "must not be before startsOn"}
	}

	status := req.Status
	if status == "" {
		status = "draft"
	}
	return seasonInput{Name: req.Name, StartsOn: startsOn, EndsOn: endsOn, Status: status}, nil
}

func writeSeason(w http.ResponseWriter, r *http.Request, status int, season dbgen.Season) {
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, status, season); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Int64("season_id", season.ID).Msg("Failed to write season response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, seasonListComponent([]dbgen.Season{season}), nil, "Failed to render season", "Failed to render season")
}

func seasonListComponent(seasons []dbgen.Season) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<table class="w-full text-sm"><thead><tr><th class="text-left">Season</th><th>Starts</th><th>Ends</th><th>Status</th></tr></thead><tbody>`)
		for _, season := range seasons {
			b.WriteString(`<tr><td>` + html.EscapeString(season.Name) + `</td><td>` + apiutil.FormatDate(season.StartsOn) +
				`</td><td>` + apiutil.FormatDate(season.EndsOn) + `</td><td>` + html.EscapeString(season.Status) + `</td></tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
