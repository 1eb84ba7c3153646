// internal/api/events/handlers.go
package events

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	appdb "github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/email"
	"github.com/rcl-league/portal/internal/leagues"
)

const (
	eventQueryTimeout = 5 * time.Second
	eventIDParam      = "id"
	clubIDParam       = "club_id"
)

var (
	queries     *dbgen.Queries
	store       *appdb.DB
	scoring     leagues.Scoring
	mailer      email.EmailSender
	queriesOnce sync.Once
)

type eventRequest struct {
	SeasonID  int64  `json:"seasonId" validate:"required,gt=0"`
	SportID   int64  `json:"sportId" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required,max=120"`
	Kind      string `json:"kind" validate:"required,oneof=tournament participation"`
	EventDate string `json:"eventDate" validate:"required"`
	Status    string `json:"status" validate:"omitempty,oneof=scheduled completed cancelled"`
}

type eventInput struct {
	SeasonID  int64
	SportID   int64
	Name      string
	Kind      string
	EventDate time.Time
	Status    string
}

// InitHandlers must be called during server startup before handling requests.
// sender may be nil when email is disabled.
func InitHandlers(database *appdb.DB, rules leagues.Scoring, sender email.EmailSender) {
	if database == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = database.Queries
		store = database
		scoring = rules
		mailer = sender
	})
}

func loadQueries() *dbgen.Queries {
	return queries
}

func loadDB() *appdb.DB {
	return store
}

// GET /events
func HandleEventsPage(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	filter, err := eventFilter(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid event filter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), eventQueryTimeout)
	defer cancel()

	if filter.SeasonID == 0 {
		season, err := q.GetActiveSeason(ctx)
		switch {
		case err == nil:
			filter.SeasonID = season.ID
		case !errors.Is(err, sql.ErrNoRows):
			logger.Error().Err(err).Msg("Failed to fetch active season")
			http.Error(w, "Failed to load events", http.StatusInternalServerError)
			return
		}
	}

	events, err := q.ListEvents(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch events")
		http.Error(w, "Failed to load events", http.StatusInternalServerError)
		return
	}
	apiutil.RenderPage(w, r, "Events", eventsPageComponent(events))
}

// GET /api/v1/events
func HandleEventList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	filter, err := eventFilter(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid event filter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), eventQueryTimeout)
	defer cancel()

	events, err := q.ListEvents(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Int64("season_id", filter.SeasonID).Msg("Failed to fetch events")
		http.Error(w, "Failed to load events", http.StatusInternalServerError)
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, events); err != nil {
			logger.Error().Err(err).Msg("Failed to write events response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, eventListComponent(events), nil, "Failed to render events", "Failed to render events")
}

// GET /api/v1/events/{id}
func HandleEventGet(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	eventID, err := apiutil.PathID(r, eventIDParam)
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), eventQueryTimeout)
	defer cancel()

	event, err := q.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to fetch event")
		http.Error(w, "Failed to load event", http.StatusInternalServerError)
		return
	}
	writeEvent(w, r, http.StatusOK, event)
}

// POST /api/v1/events
func HandleEventCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	in, err := decodeEventRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid event request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), eventQueryTimeout)
	defer cancel()

	if err := checkEventParents(ctx, q, in); err != nil {
		apiutil.WriteError(w, r, err, "Failed to validate event")
		return
	}

	event, err := q.CreateEvent(ctx, dbgen.CreateEventParams{
		SeasonID:  in.SeasonID,
		SportID:   in.SportID,
		Name:      in.Name,
		Kind:      in.Kind,
		EventDate: in.EventDate,
		Status:    in.Status,
	})
	if err != nil {
		if apiutil.IsForeignKeyViolation(err) {
			http.Error(w, "Season or sport not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Str("name", in.Name).Msg("Failed to create event")
		http.Error(w, "Failed to create event", http.StatusInternalServerError)
		return
	}

	logger.Info().Int64("event_id", event.ID).Str("kind", event.Kind).Int64("season_id", event.SeasonID).Msg("Event created")
	writeEvent(w, r, http.StatusCreated, event)
}

// PUT /api/v1/events/{id}
func HandleEventUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	eventID, err := apiutil.PathID(r, eventIDParam)
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}
	in, err := decodeEventRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid event request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), eventQueryTimeout)
	defer cancel()

	existing, err := q.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to fetch event")
		http.Error(w, "Failed to update event", http.StatusInternalServerError)
		return
	}
	if existing.Kind != in.Kind {
		matches, err := q.ListEventMatches(ctx, eventID)
		if err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to fetch event matches")
			http.Error(w, "Failed to update event", http.StatusInternalServerError)
			return
		}
		if len(matches) > 0 {
			http.Error(w, "Event kind cannot change once matches exist", http.StatusConflict)
			return
		}
	}
	if existing.SportID != in.SportID || existing.SeasonID != in.SeasonID {
		if err := checkEventParents(ctx, q, in); err != nil {
			apiutil.WriteError(w, r, err, "Failed to validate event")
			return
		}
	}

	event, err := q.UpdateEvent(ctx, dbgen.UpdateEventParams{
		ID:        eventID,
		SeasonID:  in.SeasonID,
		SportID:   in.SportID,
		Name:      in.Name,
		Kind:      in.Kind,
		EventDate: in.EventDate,
		Status:    in.Status,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		if apiutil.IsForeignKeyViolation(err) {
			http.Error(w, "Season or sport not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to update event")
		http.Error(w, "Failed to update event", http.StatusInternalServerError)
		return
	}
	writeEvent(w, r, http.StatusOK, event)
}

// DELETE /api/v1/events/{id}
func HandleEventDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	eventID, err := apiutil.PathID(r, eventIDParam)
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), eventQueryTimeout)
	defer cancel()

	deleted, err := q.DeleteEvent(ctx, eventID)
	if err != nil {
		logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to delete event")
		http.Error(w, "Failed to delete event", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}

	logger.Info().Int64("event_id", eventID).Msg("Event deleted")

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true}); err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to write event response")
		}
		return
	}
	apiutil.WriteHTMLFeedback(w, http.StatusOK, "Event deleted")
}

func eventFilter(r *http.Request) (dbgen.ListEventsParams, error) {
	seasonID, err := apiutil.QueryID(r, "season_id")
	if err != nil {
		return dbgen.ListEventsParams{}, apiutil.FieldError{Field: "season_id", Reason: "must be a positive integer"}
	}
	sportID, err := apiutil.QueryID(r, "sport_id")
	if err != nil {
		return dbgen.ListEventsParams{}, apiutil.FieldError{Field: "sport_id", Reason: "must be a positive integer"}
	}
	return dbgen.ListEventsParams{SeasonID: seasonID, SportID: sportID}, nil
}

// checkEventParents rejects events for missing or closed seasons and retired
// sports.
func checkEventParents(ctx context.Context, q *dbgen.Queries, in eventInput) error {
	season, err := q.GetSeason(ctx, in.SeasonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Season not found", Err: err}
		}
		return err
	}
	if season.Status == "closed" {
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "Season is closed"}
	}
	if in.EventDate.Before(season.StartsOn) || in.EventDate.After(season.EndsOn) {
		return apiutil.FieldError{Field: "eventDate", Reason: "must fall within the season"}
	}

	sport, err := q.GetSport(ctx, in.SportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Sport not found", Err: err}
		}
		return err
	}
	if sport.Status == "retired" {
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "Sport is retired"}
	}
	return nil
}

func decodeEventRequest(r *http.Request) (eventInput, error) {
	var req eventRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return eventInput{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return eventInput{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		seasonID, err := apiutil.ParsePositiveInt64Field(apiutil.FirstNonEmpty(r.FormValue("season_id"), r.FormValue("seasonId")), "seasonId")
		if err != nil {
			return eventInput{}, apiutil.FieldError{Field: "seasonId", Reason: "must be a positive integer"}
		}
		sportID, err := apiutil.ParsePositiveInt64Field(apiutil.FirstNonEmpty(r.FormValue("sport_id"), r.FormValue("sportId")), "sportId")
		if err != nil {
			return eventInput{}, apiutil.FieldError{Field: "sportId", Reason: "must be a positive integer"}
		}
		req = eventRequest{
			SeasonID:  seasonID,
			SportID:   sportID,
			Name:      r.FormValue("name"),
			Kind:      r.FormValue("kind"),
			EventDate: apiutil.FirstNonEmpty(r.FormValue("event_date"), r.FormValue("eventDate")),
			Status:    r.FormValue("status"),
		}
	}
	return parseEventRequest(req)
}

func parseEventRequest(req eventRequest) (eventInput, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Kind = strings.TrimSpace(req.Kind)
	req.Status = strings.TrimSpace(req.Status)
	if err := apiutil.ValidateStruct(req); err != nil {
		return eventInput{}, err
	}

	eventDate, err := apiutil.ParseDateField(req.EventDate, "eventDate")
	if err != nil {
		return eventInput{}, apiutil.FieldError{Field: "eventDate", Reason: "must be a date (YYYY-MM-DD)"}
	}

	status := req.Status
	if status == "" {
		status = "scheduled"
	}
	return eventInput{
		SeasonID:  req.SeasonID,
		SportID:   req.SportID,
		Name:      req.Name,
		Kind:      req.Kind,
		EventDate: eventDate,
		Status:    status,
	}, nil
}

func writeEvent(w http.ResponseWriter, r *http.Request, status int, event dbgen.Event) {
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, status, event); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Int64("event_id", event.ID).Msg("Failed to write event response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, eventListComponent([]dbgen.Event{event}), nil, "Failed to render event", "Failed to render event")
}
