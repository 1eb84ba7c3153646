// internal/api/points/handlers.go
package points

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
	"github.com/rcl-league/portal/internal/api/authz"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/email"
	"github.com/rcl-league/portal/internal/leagues"
)

const (
	pointsQueryTimeout = 5 * time.Second
	pointIDParam       = "id"
	defaultListLimit   = 50
	maxListLimit       = 500
)

var (
	queries     *dbgen.Queries
	rules       leagues.DeductionRules
	mailer      email.EmailSender
	queriesOnce sync.Once
)

type awardRequest struct {
	SeasonID *int64 `json:"seasonId" validate:"omitempty,gt=0"`
	ClubID   int64  `json:"clubId" validate:"required,gt=0"`
	EventID  *int64 `json:"eventId" validate:"omitempty,gt=0"`
	Points   int    `json:"points" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

type deductionRequest struct {
	SeasonID *int64 `json:"seasonId" validate:"omitempty,gt=0"`
	ClubID   int64  `json:"clubId" validate:"required,gt=0"`
	EventID  *int64 `json:"eventId" validate:"omitempty,gt=0"`
	Reason   string `json:"reason" validate:"required,oneof=no_show late_withdrawal misconduct forfeit other"`
	Points   int    `json:"points" validate:"gte=0"`
	Note     string `json:"note" validate:"max=500"`
}

// ledgerTarget is the validated season, club and optional event of a manual entry.
type ledgerTarget struct {
	season dbgen.Season
	club   dbgen.Club
	event  *dbgen.Event
}

// InitHandlers must be called during server startup before handling requests.
// sender may be nil when email is disabled.
func InitHandlers(q *dbgen.Queries, deductionRules leagues.DeductionRules, sender email.EmailSender) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
		rules = deductionRules
		mailer = sender
	})
}

func loadQueries() *dbgen.Queries {
	return queries
}

// GET /api/v1/points
func HandlePointList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	clubID, err := apiutil.QueryID(r, "club_id")
	if err != nil {
		http.Error(w, "Invalid club ID", http.StatusBadRequest)
		return
	}
	user := authz.UserFromContext(r.Context())
	if !authz.IsAdmin(user) {
		if clubID == 0 {
			if own, ok := authz.ClubIDFromContext(r.Context()); ok {
				clubID = own
			}
		}
		if !apiutil.RequireClubAccess(w, r, clubID) {
			return
		}
	}
	limit, err := listLimit(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid limit")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pointsQueryTimeout)
	defer cancel()

	season, err := apiutil.ResolveSeason(ctx, q, r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to resolve season")
		return
	}

	entries, err := q.ListPointEntries(ctx, dbgen.ListPointEntriesParams{SeasonID: season.ID, ClubID: clubID, Limit: limit})
	if err != nil {
		logger.Error().Err(err).Int64("season_id", season.ID).Int64("club_id", clubID).Msg("Failed to fetch point entries")
		http.Error(w, "Failed to load point entries", http.StatusInternalServerError)
		return
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, entries); err != nil {
			logger.Error().Err(err).Msg("Failed to write point entries response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, LedgerComponent(entries), nil, "Failed to render point entries", "Failed to render point entries")
}

// POST /api/v1/points/awards
func HandleAwardCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeAwardRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid award request")
		return
	}
	points, err := leagues.AwardPoints(req.Points, rules)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pointsQueryTimeout)
	defer cancel()

	target, err := resolveTarget(ctx, q, req.SeasonID, req.ClubID, req.EventID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to validate award")
		return
	}

	entry, err := q.CreatePointEntry(ctx, dbgen.CreatePointEntryParams{
		SeasonID:  target.season.ID,
		ClubID:    target.club.ID,
		EventID:   target.eventID(),
		Category:  leagues.CategoryAward,
		Points:    int64(points),
		Reason:    req.Reason,
		CreatedBy: apiutil.ActorID(r.Context()),
	})
	if err != nil {
		writeCreateError(w, r, err, target)
		return
	}

	logger.Info().
		Int64("entry_id", entry.ID).
		Int64("club_id", entry.ClubID).
		Int64("points", entry.Points).
		Msg("Points awarded")

	email.SendClubNotification(r.Context(), q, mailer, target.club.ID, email.BuildPointsAwarded(email.PointsAwardedDetails{
		ClubName:  target.club.Name,
		EventName: target.eventName(),
		Category:  leagues.CategoryAward,
		Points:    entry.Points,
		Reason:    entry.Reason,
	}), logger)

	writeEntry(w, r, entry)
}

// POST /api/v1/points/deductions
func HandleDeductionCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	req, err := decodeDeductionRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid deduction request")
		return
	}
	points, err := leagues.DeductionPoints(req.Reason, req.Points, rules)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pointsQueryTimeout)
	defer cancel()

	target, err := resolveTarget(ctx, q, req.SeasonID, req.ClubID, req.EventID)
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to validate deduction")
		return
	}

	reason := leagues.ReasonLabel(req.Reason)
	if req.Note != "" {
		reason += ": " + req.Note
	}
	entry, err := q.CreatePointEntry(ctx, dbgen.CreatePointEntryParams{
		SeasonID:  target.season.ID,
		ClubID:    target.club.ID,
		EventID:   target.eventID(),
		Category:  leagues.CategoryDeduction,
		Points:    int64(points),
		Reason:    reason,
		CreatedBy: apiutil.ActorID(r.Context()),
	})
	if err != nil {
		writeCreateError(w, r, err, target)
		return
	}

	logger.Info().
		Int64("entry_id", entry.ID).
		Int64("club_id", entry.ClubID).
		Int64("points", entry.Points).
		Str("reason", req.Reason).
		Msg("Points deducted")

	email.SendClubNotification(r.Context(), q, mailer, target.club.ID, email.BuildDeductionIssued(email.DeductionDetails{
		ClubName:   target.club.Name,
		SeasonName: target.season.Name,
		Points:     entry.Points,
		Reason:     req.Reason,
		Note:       req.Note,
	}), logger)

	writeEntry(w, r, entry)
}

// DELETE /api/v1/points/{id}
func HandlePointDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	entryID, err := apiutil.PathID(r, pointIDParam)
	if err != nil {
		http.Error(w, "Invalid point entry ID", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pointsQueryTimeout)
	defer cancel()

	entry, err := q.GetPointEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Point entry not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("entry_id", entryID).Msg("Failed to fetch point entry")
		http.Error(w, "Failed to delete point entry", http.StatusInternalServerError)
		return
	}
	switch entry.Category {
	case leagues.CategoryPlacement, leagues.CategoryParticipation:
		http.Error(w, "Generated entries are replaced by re-running the event award", http.StatusConflict)
		return
	}

	deleted, err := q.DeletePointEntry(ctx, entryID)
	if err != nil {
		logger.Error().Err(err).Int64("entry_id", entryID).Msg("Failed to delete point entry")
		http.Error(w, "Failed to delete point entry", http.StatusInternalServerError)
		return
	}
	if deleted == 0 {
		http.Error(w, "Point entry not found", http.StatusNotFound)
		return
	}

	logger.Info().Int64("entry_id", entryID).Int64("club_id", entry.ClubID).Str("category", entry.Category).Msg("Point entry deleted")

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{"deleted": true}); err != nil {
			logger.Error().Err(err).Int64("entry_id", entryID).Msg("Failed to write point entry response")
		}
		return
	}
	apiutil.WriteHTMLFeedback(w, http.StatusOK, "Point entry removed")
}

func resolveTarget(ctx context.Context, q *dbgen.Queries, seasonID *int64, clubID int64, eventID *int64) (ledgerTarget, error) {
	var (
		target ledgerTarget
		err    error
	)
	if seasonID != nil {
		target.season, err = q.GetSeason(ctx, *seasonID)
	} else {
		target.season, err = q.GetActiveSeason(ctx)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledgerTarget{}, apiutil.HandlerError{Status: http.StatusNotFound, Message: "Season not found", Err: err}
		}
		return ledgerTarget{}, err
	}
	if target.season.Status == "closed" {
		return ledgerTarget{}, apiutil.HandlerError{Status: http.StatusConflict, Message: "Season is closed"}
	}

	target.club, err = q.GetClub(ctx, clubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledgerTarget{}, apiutil.HandlerError{Status: http.StatusNotFound, Message: "Club not found", Err: err}
		}
		return ledgerTarget{}, err
	}

	if eventID != nil {
		event, err := q.GetEvent(ctx, *eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ledgerTarget{}, apiutil.HandlerError{Status: http.StatusNotFound, Message: "Event not found", Err: err}
			}
			return ledgerTarget{}, err
		}
		if event.SeasonID != target.season.ID {
			return ledgerTarget{}, apiutil.FieldError{Field: "eventId", Reason: "must belong to the season"}
		}
		target.event = &event
	}
	return target, nil
}

func (t ledgerTarget) eventID() sql.NullInt64 {
	if t.event == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.event.ID, Valid: true}
}

func (t ledgerTarget) eventName() string {
	if t.event == nil {
		return t.season.Name
	}
	return t.event.Name
}

func writeCreateError(w http.ResponseWriter, r *http.Request, err error, target ledgerTarget) {
	if apiutil.IsForeignKeyViolation(err) {
		http.Error(w, "Season, club, or event not found", http.StatusNotFound)
		return
	}
	log.Ctx(r.Context()).Error().Err(err).Int64("club_id", target.club.ID).Msg("Failed to create point entry")
	http.Error(w, "Failed to create point entry", http.StatusInternalServerError)
}

func writeEntry(w http.ResponseWriter, r *http.Request, entry dbgen.PointEntry) {
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusCreated, entry); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Int64("entry_id", entry.ID).Msg("Failed to write point entry response")
		}
		return
	}
	apiutil.WriteHTMLFeedback(w, http.StatusCreated, "Point entry recorded")
}

func listLimit(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := apiutil.ParsePositiveInt64Field(raw, "limit")
	if err != nil {
		return 0, apiutil.FieldError{Field: "limit", Reason: "must be a positive integer"}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

func decodeAwardRequest(r *http.Request) (awardRequest, error) {
	var req awardRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return awardRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return awardRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		var err error
		if req.SeasonID, req.ClubID, req.EventID, err = parseTargetForm(r); err != nil {
			return awardRequest{}, err
		}
		points, err := apiutil.ParsePositiveInt64Field(r.FormValue("points"), "points")
		if err != nil {
			return awardRequest{}, apiutil.FieldError{Field: "points", Reason: "must be greater than 0"}
		}
		req.Points = int(points)
		req.Reason = r.FormValue("reason")
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if err := apiutil.ValidateStruct(req); err != nil {
		return awardRequest{}, err
	}
	return req, nil
}

func decodeDeductionRequest(r *http.Request) (deductionRequest, error) {
	var req deductionRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return deductionRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return deductionRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		var err error
		if req.SeasonID, req.ClubID, req.EventID, err = parseTargetForm(r); err != nil {
			return deductionRequest{}, err
		}
		if raw := strings.TrimSpace(r.FormValue("points")); raw != "" {
			points, err := apiutil.ParseNonNegativeInt64Field(raw, "points")
			if err != nil {
				return deductionRequest{}, apiutil.FieldError{Field: "points", Reason: "must be 0 or greater"}
			}
			req.Points = int(points)
		}
		req.Reason = r.FormValue("reason")
		req.Note = r.FormValue("note")
	}
	req.Reason = strings.TrimSpace(req.Reason)
	req.Note = strings.TrimSpace(req.Note)
	if err := apiutil.ValidateStruct(req); err != nil {
		return deductionRequest{}, err
	}
	return req, nil
}

func parseTargetForm(r *http.Request) (seasonID *int64, clubID int64, eventID *int64, err error) {
	seasonID, err = apiutil.ParseOptionalInt64Field(r.FormValue("season_id"), "season_id")
	if err != nil {
		return nil, 0, nil, apiutil.FieldError{Field: "seasonId", Reason: "must be an integer"}
	}
	clubID, err = apiutil.ParsePositiveInt64Field(r.FormValue("club_id"), "club_id")
	if err != nil {
		return nil, 0, nil, apiutil.FieldError{Field: "clubId", Reason: "is required"}
	}
	eventID, err = apiutil.ParseOptionalInt64Field(r.FormValue("event_id"), "event_id")
	if err != nil {
		return nil, 0, nil, apiutil.FieldError{Field: "eventId", Reason: "must be an integer"}
	}
	return seasonID, clubID, eventID, nil
}
