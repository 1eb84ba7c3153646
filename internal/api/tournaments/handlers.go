// internal/api/tournaments/handlers.go
package tournaments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
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
	tournamentQueryTimeout = 5 * time.Second
	eventIDParam           = "id"
	matchIDParam           = "match_id"
)

var (
	queries     *dbgen.Queries
	store       *appdb.DB
	scoring     leagues.Scoring
	mailer      email.EmailSender
	queriesOnce sync.Once
)

type matchRequest struct {
	Round        int64  `json:"round" validate:"required,gte=1"`
	Position     int64  `json:"position" validate:"required,gte=1"`
	HomeClubID   *int64 `json:"homeClubId" validate:"omitempty,gt=0"`
	AwayClubID   *int64 `json:"awayClubId" validate:"omitempty,gt=0"`
	HomeScore    *int64 `json:"homeScore" validate:"omitempty,gte=0"`
	AwayScore    *int64 `json:"awayScore" validate:"omitempty,gte=0"`
	IsThirdPlace bool   `json:"isThirdPlace"`
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

// GET /api/v1/events/{id}/matches
func HandleMatchList(w http.ResponseWriter, r *http.Request) {
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

	if _, err := loadTournament(ctx, q, eventID, false); err != nil {
		apiutil.WriteError(w, r, err, "Failed to load tournament")
		return
	}
	matches, err := q.ListEventMatches(ctx, eventID)
	if err != nil {
		logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to fetch matches")
		http.Error(w, "Failed to load matches", http.StatusInternalServerError)
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, matches); err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to write matches response")
		}
		return
	}
	names, err := clubNames(ctx, q)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch clubs")
		http.Error(w, "Failed to load matches", http.StatusInternalServerError)
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, matchListComponent(eventID, matches, names), nil, "Failed to render matches", "Failed to render matches")
}

// POST /api/v1/events/{id}/matches
func HandleMatchCreate(w http.ResponseWriter, r *http.Request) {
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
	req, err := decodeMatchRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid match request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), tournamentQueryTimeout)
	defer cancel()

	var created dbgen.TournamentMatch
	err = database.RunInTx(ctx, func(txdb *appdb.DB) error {
		qtx := txdb.Queries

		if _, err := loadTournament(ctx, qtx, eventID, true); err != nil {
			return err
		}
		var err error
		created, err = qtx.CreateMatch(ctx, dbgen.CreateMatchParams{
			EventID:      eventID,
			Round:        req.Round,
			Position:     req.Position,
			HomeClubID:   apiutil.ToNullInt64(req.HomeClubID),
			AwayClubID:   apiutil.ToNullInt64(req.AwayClubID),
			HomeScore:    apiutil.ToNullInt64(req.HomeScore),
			AwayScore:    apiutil.ToNullInt64(req.AwayScore),
			IsThirdPlace: req.IsThirdPlace,
		})
		if err != nil {
			return matchWriteError(err)
		}
		if err := advanceWinner(ctx, qtx, created); err != nil {
			return err
		}
		return checkBracket(ctx, qtx, eventID)
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to create match")
		return
	}

	logger.Info().Int64("event_id", eventID).Int64("match_id", created.ID).Int64("round", created.Round).Msg("Match created")
	writeMatch(w, r, http.StatusCreated, created)
}

// PUT /api/v1/events/{id}/matches/{match_id}
func HandleMatchUpdate(w http.ResponseWriter, r *http.Request) {
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
	matchID, err := apiutil.PathID(r, matchIDParam)
	if err != nil {
		http.Error(w, "Invalid match ID", http.StatusBadRequest)
		return
	}
	req, err := decodeMatchRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid match request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), tournamentQueryTimeout)
	defer cancel()

	var updated dbgen.TournamentMatch
	err = database.RunInTx(ctx, func(txdb *appdb.DB) error {
		qtx := txdb.Queries

		if _, err := loadTournament(ctx, qtx, eventID, true); err != nil {
			return err
		}
		existing, err := qtx.GetMatch(ctx, matchID)
		if err != nil || existing.EventID != eventID {
			if err == nil || errors.Is(err, sql.ErrNoRows) {
				return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Match not found", Err: sql.ErrNoRows}
			}
			return err
		}

		updated, err = qtx.UpdateMatch(ctx, dbgen.UpdateMatchParams{
			ID:           matchID,
			Round:        req.Round,
			Position:     req.Position,
			HomeClubID:   apiutil.ToNullInt64(req.HomeClubID),
			AwayClubID:   apiutil.ToNullInt64(req.AwayClubID),
			HomeScore:    apiutil.ToNullInt64(req.HomeScore),
			AwayScore:    apiutil.ToNullInt64(req.AwayScore),
			IsThirdPlace: req.IsThirdPlace,
		})
		if err != nil {
			return matchWriteError(err)
		}
		if err := retractWinner(ctx, qtx, existing, updated); err != nil {
			return err
		}
		if err := advanceWinner(ctx, qtx, updated); err != nil {
			return err
		}
		return checkBracket(ctx, qtx, eventID)
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to update match")
		return
	}

	logger.Info().Int64("event_id", eventID).Int64("match_id", matchID).Bool("decided", decided(updated)).Msg("Match updated")
	writeMatch(w, r, http.StatusOK, updated)
}

// DELETE /api/v1/events/{id}/matches/{match_id}
func HandleMatchDelete(w http.ResponseWriter, r *http.Request) {
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
	matchID, err := apiutil.PathID(r, matchIDParam)
	if err != nil {
		http.Error(w, "Invalid match ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), tournamentQueryTimeout)
	defer cancel()

	if _, err := loadTournament(ctx, q, eventID, true); err != nil {
		apiutil.WriteError(w, r, err, "Failed to load tournament")
		return
	}
	match, err := q.GetMatch(ctx, matchID)
	if err != nil || match.EventID != eventID {
		if err == nil || errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Match not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("match_id", matchID).Msg("Failed to fetch match")
		http.Error(w, "Failed to delete match", http.StatusInternalServerError)
		return
	}

	deleted, err := q.DeleteMatch(ctx, matchID)
	if err != nil {
		logger.Error().Err(err).Int64("match_id", matchID).Msg("Failed to delete match")
		http.Error(w, "Failed to delete match", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		http.Error(w, "Match not found", http.StatusNotFound)
		return
	}

	logger.Info().Int64("event_id", eventID).Int64("match_id", matchID).Msg("Match deleted")

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true}); err != nil {
			logger.Error().Err(err).Int64("match_id", matchID).Msg("Failed to write match response")
		}
		return
	}
	apiutil.WriteHTMLFeedback(w, http.StatusOK, "Match deleted")
}

// loadTournament fetches a tournament event. When forWrite is set, completed
// and cancelled events are rejected.
func loadTournament(ctx context.Context, q *dbgen.Queries, eventID int64, forWrite bool) (dbgen.Event, error) {
	event, err := q.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.Event{}, apiutil.HandlerError{Status: http.StatusNotFound, Message: "Event not found", Err: err}
		}
		return dbgen.Event{}, err
	}
	if event.Kind != "tournament" {
		return dbgen.Event{}, apiutil.HandlerError{Status: http.StatusConflict, Message: "Event is not a tournament"}
	}
	if forWrite {
		switch event.Status {
		case "completed":
			return dbgen.Event{}, apiutil.HandlerError{Status: http.StatusConflict, Message: "Event is completed; reopen it to edit matches"}
		case "cancelled":
			return dbgen.Event{}, apiutil.HandlerError{Status: http.StatusConflict, Message: "Event is cancelled"}
		}
	}
	return event, nil
}

// advanceWinner writes a decided main-bracket match's winner into its
// next-round slot, and a decided semi-final's loser into the third-place match
// when one exists.
func advanceWinner(ctx context.Context, q *dbgen.Queries, match dbgen.TournamentMatch) error {
	if match.IsThirdPlace || !decided(match) {
		return nil
	}

	matches, err := q.ListEventMatches(ctx, match.EventID)
	if err != nil {
		return err
	}
	rounds := bracketRounds(matches)
	if int(match.Round) >= rounds {
		return nil
	}

	winner, loser := matchResult(match)

	nextRound, nextPosition, home := leagues.NextSlot(int(match.Round), int(match.Position))
	if err := fillSlot(ctx, q, matches, match.EventID, int64(nextRound), int64(nextPosition), false, home, winner); err != nil {
		return err
	}

	if int(match.Round) == rounds-1 {
		for _, m := range matches {
			if m.IsThirdPlace {
				return fillSlot(ctx, q, matches, match.EventID, m.Round, m.Position, true, home, loser)
			}
		}
	}
	return nil
}

// retractWinner clears the clubs that before advanced from a match whose
// result was removed or changed. A slot that has since been played blocks the
// change.
func retractWinner(ctx context.Context, q *dbgen.Queries, before, after dbgen.TournamentMatch) error {
	if before.IsThirdPlace || !decided(before) {
		return nil
	}
	prevWinner, prevLoser := matchResult(before)
	if decided(after) && !after.IsThirdPlace && after.Round == before.Round && after.Position == before.Position {
		if winner, _ := matchResult(after); winner == prevWinner {
			return nil
		}
	}

	matches, err := q.ListEventMatches(ctx, before.EventID)
	if err != nil {
		return err
	}
	rounds := bracketRounds(matches)
	if int(before.Round) >= rounds {
		return nil
	}

	nextRound, nextPosition, home := leagues.NextSlot(int(before.Round), int(before.Position))
	if err := clearSlot(ctx, q, matches, int64(nextRound), int64(nextPosition), false, home, prevWinner); err != nil {
		return err
	}
	if int(before.Round) == rounds-1 {
		for _, m := range matches {
			if m.IsThirdPlace {
				return clearSlot(ctx, q, matches, m.Round, m.Position, true, home, prevLoser)
			}
		}
	}
	return nil
}

func clearSlot(ctx context.Context, q *dbgen.Queries, matches []dbgen.TournamentMatch, round, position int64, thirdPlace, home bool, clubID sql.NullInt64) error {
	for _, m := range matches {
		if m.Round != round || m.Position != position || m.IsThirdPlace != thirdPlace {
			continue
		}
		current := m.AwayClubID
		if home {
			current = m.HomeClubID
		}
		if current != clubID {
			return nil
		}
		if decided(m) {
			return apiutil.HandlerError{
				Status:  http.StatusConflict,
				Message: fmt.Sprintf("Round %d match %d has already been played", round, position),
			}
		}
		params := dbgen.UpdateMatchParams{
			ID:           m.ID,
			Round:        m.Round,
			Position:     m.Position,
			HomeClubID:   m.HomeClubID,
			AwayClubID:   m.AwayClubID,
			HomeScore:    m.HomeScore,
			AwayScore:    m.AwayScore,
			IsThirdPlace: m.IsThirdPlace,
		}
		if home {
			params.HomeClubID = sql.NullInt64{}
		} else {
			params.AwayClubID = sql.NullInt64{}
		}
		_, err := q.UpdateMatch(ctx, params)
		return err
	}
	return nil
}

func matchResult(m dbgen.TournamentMatch) (winner, loser sql.NullInt64) {
	if m.AwayScore.Int64 > m.HomeScore.Int64 {
		return m.AwayClubID, m.HomeClubID
	}
	return m.HomeClubID, m.AwayClubID
}

func fillSlot(ctx context.Context, q *dbgen.Queries, matches []dbgen.TournamentMatch, eventID, round, position int64, thirdPlace, home bool, clubID sql.NullInt64) error {
	for _, m := range matches {
		if m.Round != round || m.Position != position || m.IsThirdPlace != thirdPlace {
			continue
		}
		current := m.AwayClubID
		if home {
			current = m.HomeClubID
		}
		if current == clubID {
			return nil
		}
		if decided(m) {
			return apiutil.HandlerError{
				Status:  http.StatusConflict,
				Message: fmt.Sprintf("Round %d match %d has already been played", round, position),
			}
		}
		params := dbgen.UpdateMatchParams{
			ID:           m.ID,
			Round:        m.Round,
			Position:     m.Position,
			HomeClubID:   m.HomeClubID,
			AwayClubID:   m.AwayClubID,
			IsThirdPlace: m.IsThirdPlace,
		}
		if home {
			params.HomeClubID = clubID
		} else {
			params.AwayClubID = clubID
		}
		_, err := q.UpdateMatch(ctx, params)
		return err
	}

	params := dbgen.CreateMatchParams{
		EventID:      eventID,
		Round:        round,
		Position:     position,
		IsThirdPlace: thirdPlace,
	}
	if home {
		params.HomeClubID = clubID
	} else {
		params.AwayClubID = clubID
	}
	_, err := q.CreateMatch(ctx, params)
	return err
}

// checkBracket rejects writes that leave the bracket inconsistent.
func checkBracket(ctx context.Context, q *dbgen.Queries, eventID int64) error {
	matches, err := q.ListEventMatches(ctx, eventID)
	if err != nil {
		return err
	}
	if _, err := leagues.DerivePlacements(leagues.ToBracketMatches(matches)); err != nil {
		return bracketError(err)
	}
	return nil
}

func bracketError(err error) error {
	switch {
	case errors.Is(err, leagues.ErrBracketIncomplete):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "Bracket is not complete", Err: err}
	case errors.Is(err, leagues.ErrEmptyBracket):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "Event has no matches", Err: err}
	case errors.Is(err, leagues.ErrTiedMatch),
		errors.Is(err, leagues.ErrNegativeScore),
		errors.Is(err, leagues.ErrDuplicateElimination),
		errors.Is(err, leagues.ErrClubInRoundTwice),
		errors.Is(err, leagues.ErrPlayedAfterElim),
		errors.Is(err, leagues.ErrAdvancedWithoutWin),
		errors.Is(err, leagues.ErrMultipleFinals),
		errors.Is(err, leagues.ErrInvalidThirdPlace):
		return apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}
	return err
}

func matchWriteError(err error) error {
	switch {
	case apiutil.IsUniqueViolation(err):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "A match already occupies this bracket slot", Err: err}
	case apiutil.IsForeignKeyViolation(err):
		return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Club not found", Err: err}
	}
	return err
}

func bracketRounds(matches []dbgen.TournamentMatch) int {
	rounds, firstRoundSlots := 0, 0
	for _, m := range matches {
		if m.IsThirdPlace {
			continue
		}
		if int(m.Round) > rounds {
			rounds = int(m.Round)
		}
		if m.Round == 1 && int(m.Position) > firstRoundSlots {
			firstRoundSlots = int(m.Position)
		}
	}
	if fromWidth := leagues.BracketRounds(firstRoundSlots * 2); fromWidth > rounds {
		rounds = fromWidth
	}
	return rounds
}

func decided(m dbgen.TournamentMatch) bool {
	return m.HomeClubID.Valid && m.AwayClubID.Valid && m.HomeScore.Valid && m.AwayScore.Valid
}

func decodeMatchRequest(r *http.Request) (matchRequest, error) {
	var req matchRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return matchRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return matchRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		var err error
		if req.Round, err = apiutil.ParsePositiveInt64Field(r.FormValue("round"), "round"); err != nil {
			return matchRequest{}, apiutil.FieldError{Field: "round", Reason: "must be a positive integer"}
		}
		if req.Position, err = apiutil.ParsePositiveInt64Field(r.FormValue("position"), "position"); err != nil {
			return matchRequest{}, apiutil.FieldError{Field: "position", Reason: "must be a positive integer"}
		}
		for field, dst := range map[string]**int64{
			"home_club_id": &req.HomeClubID,
			"away_club_id": &req.AwayClubID,
			"home_score":   &req.HomeScore,
			"away_score":   &req.AwayScore,
		} {
			value, err := apiutil.ParseOptionalInt64Field(r.FormValue(field), field)
			if err != nil {
				return matchRequest{}, apiutil.FieldError{Field: field, Reason: "must be an integer"}
			}
			*dst = value
		}
		if req.IsThirdPlace, err = apiutil.ParseBool(r.FormValue("is_third_place")); err != nil {
			return matchRequest{}, apiutil.FieldError{Field: "is_third_place", Reason: "must be true or false"}
		}
	}
	if err := validateMatchRequest(req); err != nil {
		return matchRequest{}, err
	}
	return req, nil
}

func validateMatchRequest(req matchRequest) error {
	if err := apiutil.ValidateStruct(req); err != nil {
		return err
	}
	if req.HomeClubID != nil && req.AwayClubID != nil && *req.HomeClubID == *req.AwayClubID {
		return apiutil.FieldError{Field: "awayClubId", Reason: "must differ from homeClubId"}
	}
	if (req.HomeScore == nil) != (req.AwayScore == nil) {
		return apiutil.FieldError{Field: "awayScore", Reason: "both scores are required together"}
	}
	if req.HomeScore != nil {
		if req.HomeClubID == nil || req.AwayClubID == nil {
			return apiutil.FieldError{Field: "homeScore", Reason: "requires both clubs"}
		}
		if *req.HomeScore == *req.AwayScore {
			return apiutil.FieldError{Field: "awayScore", Reason: "ties are not allowed in elimination matches"}
		}
	}
	return nil
}

func clubNames(ctx context.Context, q *dbgen.Queries) (map[int64]string, error) {
	clubs, err := q.ListClubs(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(clubs))
	for _, club := range clubs {
		names[club.ID] = club.Name
	}
	return names, nil
}

func writeMatch(w http.ResponseWriter, r *http.Request, status int, match dbgen.TournamentMatch) {
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, status, match); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Int64("match_id", match.ID).Msg("Failed to write match response")
		}
		return
	}
	apiutil.WriteHTMLFeedback(w, status, "Match saved")
}
