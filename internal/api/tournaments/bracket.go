package tournaments

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	appdb "github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/email"
	"github.com/rcl-league/portal/internal/leagues"
)

type bracketRequest struct {
	ClubIDs    []int64 `json:"clubIds" validate:"required,min=2,max=64,dive,gt=0"`
	ThirdPlace bool    `json:"thirdPlace"`
}

type standingRow struct {
	leagues.Placement
	ClubName string `json:"clubName"`
	Points   int    `json:"points"`
}

type standingsResponse struct {
	EventID    int64         `json:"eventId"`
	EventName  string        `json:"eventName"`
	Status     string        `json:"status"`
	Rounds     int           `json:"rounds"`
	Complete   bool          `json:"complete"`
	ChampionID int64         `json:"championId,omitempty"`
	Standings  []standingRow `json:"standings"`
}

// POST /api/v1/events/{id}/bracket
func HandleBracketGenerate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	database := loadDB()
	if q == nil || database == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	eventID, err := apiutil.PathID(r, eventIDParam)
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}
	req, err := decodeBracketRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid bracket request")
		return
	}
	slots, err := leagues.GenerateBracket(req.ClubIDs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), tournamentQueryTimeout)
	defer cancel()

	var created []dbgen.TournamentMatch
	err = database.RunInTx(ctx, func(txdb *appdb.DB) error {
		qtx := txdb.Queries

		if _, err := loadTournament(ctx, qtx, eventID, true); err != nil {
			return err
		}
		existing, err := qtx.ListEventMatches(ctx, eventID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apiutil.HandlerError{Status: http.StatusConflict, Message: "Event already has matches"}
		}

		for _, slot := range slots {
			match, err := qtx.CreateMatch(ctx, dbgen.CreateMatchParams{
				EventID:    eventID,
				Round:      int64(slot.Round),
				Position:   int64(slot.Position),
				HomeClubID: nullClub(slot.HomeClubID),
				AwayClubID: nullClub(slot.AwayClubID),
			})
			if err != nil {
				return matchWriteError(err)
			}
			created = append(created, match)
		}
		if req.ThirdPlace && len(req.ClubIDs) >= 4 {
			match, err := qtx.CreateMatch(ctx, dbgen.CreateMatchParams{
				EventID:      eventID,
				Round:        int64(leagues.BracketRounds(len(req.ClubIDs))),
				Position:     1,
				IsThirdPlace: true,
			})
			if err != nil {
				return matchWriteError(err)
			}
			created = append(created, match)
		}
		return nil
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to generate bracket")
		return
	}

	logger.Info().
		Int64("event_id", eventID).
		Int("clubs", len(req.ClubIDs)).
		Int("matches", len(created)).
		Msg("Bracket generated")

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusCreated, created); err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to write bracket response")
		}
		return
	}
	names, err := clubNames(ctx, q)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch clubs")
		http.Error(w, "Failed to render bracket", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	apiutil.RenderHTMLComponent(r.Context(), w, matchListComponent(eventID, created, names), nil, "Failed to render bracket", "Failed to render bracket")
}

// GET /api/v1/events/{id}/standings
func HandleStandings(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), tournamentQueryTimeout)
	defer cancel()

	event, err := loadTournament(ctx, q, eventID, false)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to load tournament")
		return
	}
	placements, err := leagues.CalculatePlacements(ctx, q, eventID)
	if err != nil {
		apiutil.WriteError(w, r, bracketError(err), "Failed to calculate standings")
		return
	}
	names, err := clubNames(ctx, q)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch clubs")
		http.Error(w, "Failed to load standings", http.StatusInternalServerError)
		return
	}

	resp := buildStandings(event, placements, names)
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to write standings response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, standingsComponent(resp), nil, "Failed to render standings", "Failed to render standings")
}

// POST /api/v1/events/{id}/finalize
func HandleFinalize(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	database := loadDB()
	if q == nil || database == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	eventID, err := apiutil.PathID(r, eventIDParam)
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), tournamentQueryTimeout)
	defer cancel()

	var (
		event      dbgen.Event
		placements leagues.Placements
		entries    []dbgen.PointEntry
	)
	err = database.RunInTx(ctx, func(txdb *appdb.DB) error {
		qtx := txdb.Queries

		var err error
		event, err = loadTournament(ctx, qtx, eventID, false)
		if err != nil {
			return err
		}
		if event.Status == "cancelled" {
			return apiutil.HandlerError{Status: http.StatusConflict, Message: "Event is cancelled"}
		}
		placements, entries, err = leagues.AwardPlacements(ctx, qtx, event, scoring.PlacementTable, scoring.PlacementFallback, apiutil.ActorID(r.Context()))
		if err != nil {
			return bracketError(err)
		}
		event.Status = "completed"
		return nil
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to finalize tournament")
		return
	}

	logger.Info().
		Int64("event_id", eventID).
		Int64("champion_id", placements.ChampionID).
		Int("entries", len(entries)).
		Msg("Tournament finalized")

	names, err := clubNames(ctx, q)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch clubs")
		names = map[int64]string{}
	}
	resp := buildStandings(event, placements, names)
	notifyResults(r.Context(), q, event, resp)

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to write finalize response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, standingsComponent(resp), nil, "Failed to render standings", "Failed to render standings")
}

func buildStandings(event dbgen.Event, placements leagues.Placements, names map[int64]string) standingsResponse {
	resp := standingsResponse{
		EventID:    event.ID,
		EventName:  event.Name,
		Status:     event.Status,
		Rounds:     placements.Rounds,
		Complete:   placements.Complete,
		ChampionID: placements.ChampionID,
		Standings:  make([]standingRow, 0, len(placements.Standings)),
	}
	for _, p := range placements.Standings {
		resp.Standings = append(resp.Standings, standingRow{
			Placement: p,
			ClubName:  names[p.ClubID],
			Points:    leagues.PlacementPoints(p.Place, scoring.PlacementTable, scoring.PlacementFallback),
		})
	}
	return resp
}

func notifyResults(ctx context.Context, q *dbgen.Queries, event dbgen.Event, resp standingsResponse) {
	if mailer == nil {
		return
	}
	results := make([]email.TournamentResult, 0, len(resp.Standings))
	for _, row := range resp.Standings {
		results = append(results, email.TournamentResult{Place: row.Place, ClubName: row.ClubName, Points: int64(row.Points)})
	}
	logger := log.Ctx(ctx)
	for _, row := range resp.Standings {
		email.SendClubNotification(ctx, q, mailer, row.ClubID, email.BuildTournamentResults(email.TournamentResultsDetails{
			ClubName:  row.ClubName,
			EventName: event.Name,
			EventDate: event.EventDate,
			Place:     row.Place,
			Points:    int64(row.Points),
			Results:   results,
		}), logger)
	}
}

func decodeBracketRequest(r *http.Request) (bracketRequest, error) {
	var req bracketRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return bracketRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return bracketRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		// Seeds arrive either as repeated club_ids fields or one comma list.
		var raw []string
		for _, value := range r.Form["club_ids"] {
			raw = append(raw, strings.Split(value, ",")...)
		}
		for _, value := range raw {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return bracketRequest{}, apiutil.FieldError{Field: "clubIds", Reason: "must be a list of club IDs"}
			}
			req.ClubIDs = append(req.ClubIDs, id)
		}
		thirdPlace, err := apiutil.ParseBool(r.FormValue("third_place"))
		if err != nil {
			return bracketRequest{}, apiutil.FieldError{Field: "thirdPlace", Reason: "must be true or false"}
		}
		req.ThirdPlace = thirdPlace
	}
	if err := apiutil.ValidateStruct(req); err != nil {
		return bracketRequest{}, err
	}
	return req, nil
}

func nullClub(id int64) sql.NullInt64 {
	if id <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
