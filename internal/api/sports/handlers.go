// internal/api/sports/handlers.go
package sports

import (
	"context"
	"database/sql"
	"errors"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/a-h/templ"
	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

const (
	sportQueryTimeout = 5 * time.Second
	sportIDParam      = "id"
)

var (
	queries     *dbgen.Queries
	queriesOnce sync.Once
)

type sportRequest struct {
	Name   string `json:"name" validate:"required,max=60"`
	Slug   string `json:"slug" validate:"max=60"`
	Status string `json:"status" validate:"omitempty,oneof=active retired"`
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

// Slugify lower-cases name and joins its words with hyphens.
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// GET /api/v1/sports
func HandleSportList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sportQueryTimeout)
	defer cancel()

	sports, err := q.ListSports(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch sports")
		http.Error(w, "Failed to load sports", http.StatusInternalServerError)
		return
	}
	writeSports(w, r, http.StatusOK, sports)
}

// GET /api/v1/sports/{id}
func HandleSportGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sportID, err := apiutil.PathID(r, sportIDParam)
	if err != nil {
		http.Error(w, "Invalid sport ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sportQueryTimeout)
	defer cancel()

	sport, err := q.GetSport(ctx, sportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Sport not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("sport_id", sportID).Msg("Failed to fetch sport")
		http.Error(w, "Failed to load sport", http.StatusInternalServerError)
		return
	}
	writeSports(w, r, http.StatusOK, []dbgen.Sport{sport})
}

// POST /api/v1/sports
func HandleSportCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeSportRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid sport request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sportQueryTimeout)
	defer cancel()

	sport, err := q.CreateSport(ctx, dbgen.CreateSportParams{Name: req.Name, Slug: req.Slug, Status: req.Status})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			http.Error(w, "A sport with this name or slug already exists", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Str("slug", req.Slug).Msg("Failed to create sport")
		http.Error(w, "Failed to create sport", http.StatusInternalServerError)
		return
	}
	writeSports(w, r, http.StatusCreated, []dbgen.Sport{sport})
}

// PUT /api/v1/sports/{id}
func HandleSportUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sportID, err := apiutil.PathID(r, sportIDParam)
	if err != nil {
		http.Error(w, "Invalid sport ID", http.StatusBadRequest)
		return
	}
	req, err := decodeSportRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid sport request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sportQueryTimeout)
	defer cancel()

	sport, err := q.UpdateSport(ctx, dbgen.UpdateSportParams{ID: sportID, Name: req.Name, Slug: req.Slug, Status: req.Status})
	if err != nil {
		if apiutil.IsUniqueViolation(err) {
			http.Error(w, "A sport with this name or slug already exists", http.StatusConflict)
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Sport not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("sport_id", sportID).Msg("Failed to update sport")
		http.Error(w, "Failed to update sport", http.StatusInternalServerError)
		return
	}
	writeSports(w, r, http.StatusOK, []dbgen.Sport{sport})
}

// DELETE /api/v1/sports/{id}
func HandleSportDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sportID, err := apiutil.PathID(r, sportIDParam)
	if err != nil {
		http.Error(w, "Invalid sport ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sportQueryTimeout)
	defer cancel()

	deleted, err := q.DeleteSport(ctx, sportID)
	if err != nil {
		if apiutil.IsForeignKeyViolation(err) {
			http.Error(w, "Sport has events; retire it instead", http.StatusConflict)
			return
		}
		logger.Error().Err(err).Int64("sport_id", sportID).Msg("Failed to delete sport")
		http.Error(w, "Failed to delete sport", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		http.Error(w, "Sport not found", http.StatusNotFound)
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true}); err != nil {
			logger.Error().Err(err).Int64("sport_id", sportID).Msg("Failed to write sport response")
		}
		return
	}
	apiutil.WriteHTMLFeedback(w, http.StatusOK, "Sport deleted")
}

func decodeSportRequest(r *http.Request) (sportRequest, error) {
	var req sportRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return req, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		req = sportRequest{Name: r.FormValue("name"), Slug: r.FormValue("slug"), Status: r.FormValue("status")}
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Status = strings.TrimSpace(req.Status)
	if err := apiutil.ValidateStruct(req); err != nil {
		return req, err
	}
	req.Slug = Slugify(apiutil.FirstNonEmpty(req.Slug, req.Name))
	if req.Slug == "" {
		return req, apiutil.FieldError{Field: "slug", Reason: "must contain letters or digits"}
	}
	if req.Status == "" {
		req.Status = "active"
	}
	return req, nil
}

func writeSports(w http.ResponseWriter, r *http.Request, status int, sports []dbgen.Sport) {
	if apiutil.IsJSONRequest(r) {
		var payload any = sports
		if r.Method != http.MethodGet || r.PathValue(sportIDParam) != "" {
			payload = sports[0]
		}
		if err := apiutil.WriteJSON(w, status, payload); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write sport response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, sportListComponent(sports), nil, "Failed to render sports", "Failed to render sports")
}

func sportListComponent(sports []dbgen.Sport) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<ul class="divide-y text-sm">`)
		for _, sport := range sports {
			b.WriteString(`<li id="sport-` + strconv.FormatInt(sport.ID, 10) + `" class="flex justify-between py-1"><span>` +
				html.EscapeString(sport.Name) + `</span><span class="text-gray-500">` + html.EscapeString(sport.Status) + `</span></li>`)
		}
		b.WriteString(`</ul>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
