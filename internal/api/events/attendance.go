package events

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/api/apiutil"
	appdb "github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/email"
	"github.com/rcl-league/portal/internal/leagues"
)

type attendanceRequest struct {
	RegisteredCount *int64 `json:"registeredCount" validate:"required,gte=0"`
	AttendedCount   *int64 `json:"attendedCount" validate:"required,gte=0"`
	EligibleCount   *int64 `json:"eligibleCount" validate:"omitempty,gte=0"`
}

type attendanceRow struct {
	ClubID          int64   `json:"clubId"`
	ClubName        string  `json:"clubName"`
	ClubCode        string  `json:"clubCode"`
	RegisteredCount int64   `json:"registeredCount"`
	AttendedCount   int64   `json:"attendedCount"`
	EligibleCount   int64   `json:"eligibleCount"`
	Percent         float64 `json:"percent"`
	ProjectedPoints int     `json:"projectedPoints"`
}

type awardResponse struct {
	EventID int64              `json:"eventId"`
	Awarded int                `json:"awarded"`
	Entries []dbgen.PointEntry `json:"entries"`
}

// GET /api/v1/events/{id}/attendance
func HandleAttendanceList(w http.ResponseWriter, r *http.Request) {
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

	if _, err := q.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to fetch event")
		http.Error(w, "Failed to load attendance", http.StatusInternalServerError)
		return
	}

	rows, err := q.ListEventAttendance(ctx, eventID)
	if err != nil {
		logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to fetch attendance")
		http.Error(w, "Failed to load attendance", http.StatusInternalServerError)
		return
	}

	result := make([]attendanceRow, 0, len(rows))
	for _, row := range rows {
		result = append(result, attendanceRow{
			ClubID:          row.ClubID,
			ClubName:        row.ClubName,
			ClubCode:        row.ClubCode,
			RegisteredCount: row.RegisteredCount,
			AttendedCount:   row.AttendedCount,
			EligibleCount:   row.EligibleCount,
			Percent:         leagues.ParticipationPercent(row.AttendedCount, row.EligibleCount),
			ProjectedPoints: leagues.ParticipationPoints(row.AttendedCount, row.EligibleCount, scoring.Tiers),
		})
	}

	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, result); err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to write attendance response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, attendanceComponent(eventID, result), nil, "Failed to render attendance", "Failed to render attendance")
}

// PUT /api/v1/events/{id}/attendance/{club_id}
func HandleAttendanceUpsert(w http.ResponseWriter, r *http.Request) {
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
	clubID, err := apiutil.PathID(r, clubIDParam)
	if err != nil {
		http.Error(w, "Invalid club ID", http.StatusBadRequest)
		return
	}
	if !apiutil.RequireClubManager(w, r, clubID) {
		return
	}

	req, err := decodeAttendanceRequest(r)
	if err != nil {
		apiutil.WriteError(w, r, err, "Invalid attendance request")
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
		http.Error(w, "Failed to record attendance", http.StatusInternalServerError)
		return
	}
	if event.Status == "cancelled" {
		http.Error(w, "Event is cancelled", http.StatusConflict)
		return
	}

	club, err := q.GetClub(ctx, clubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Club not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to fetch club")
		http.Error(w, "Failed to record attendance", http.StatusInternalServerError)
		return
	}

	eligible := club.MemberCount
	if req.EligibleCount != nil {
		eligible = *req.EligibleCount
	}
	registered, attended := *req.RegisteredCount, *req.AttendedCount
	if err := leagues.ValidateAttendance(registered, attended, eligible); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := q.UpsertAttendance(ctx, dbgen.UpsertAttendanceParams{
		EventID:         eventID,
		ClubID:          clubID,
		RegisteredCount: registered,
		AttendedCount:   attended,
		EligibleCount:   eligible,
	})
	if err != nil {
		if apiutil.IsForeignKeyViolation(err) {
			http.Error(w, "Event or club not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Int64("event_id", eventID).Int64("club_id", clubID).Msg("Failed to record attendance")
		http.Error(w, "Failed to record attendance", http.StatusInternalServerError)
		return
	}

	logger.Info().
		Int64("event_id", eventID).
		Int64("club_id", clubID).
		Int64("attended", attended).
		Int64("eligible", eligible).
		Msg("Attendance recorded")

	row := attendanceRow{
		ClubID:          club.ID,
		ClubName:        club.Name,
		ClubCode:        club.Code,
		RegisteredCount: saved.RegisteredCount,
		AttendedCount:   saved.AttendedCount,
		EligibleCount:   saved.EligibleCount,
		Percent:         leagues.ParticipationPercent(saved.AttendedCount, saved.EligibleCount),
		ProjectedPoints: leagues.ParticipationPoints(saved.AttendedCount, saved.EligibleCount, scoring.Tiers),
	}
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.WriteJSON(w, http.StatusOK, row); err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to write attendance response")
		}
		return
	}
	apiutil.RenderHTMLComponent(r.Context(), w, attendanceComponent(eventID, []attendanceRow{row}), nil, "Failed to render attendance", "Failed to render attendance")
}

// POST /api/v1/events/{id}/participation/award
func HandleParticipationAward(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), eventQueryTimeout)
	defer cancel()

	var (
		event   dbgen.Event
		entries []dbgen.PointEntry
	)
	err = database.RunInTx(ctx, func(txdb *appdb.DB) error {
		qtx := txdb.Queries

		var err error
		event, err = qtx.GetEvent(ctx, eventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Event not found", Err: err}
			}
			return err
		}
		entries, err = leagues.AwardParticipation(ctx, qtx, event, scoring.Tiers, apiutil.ActorID(r.Context()))
		if errors.Is(err, leagues.ErrEventCancelled) {
			return apiutil.HandlerError{Status: http.StatusConflict, Message: "Event is cancelled", Err: err}
		}
		return err
	})
	if err != nil {
		apiutil.WriteError(w, r, err, "Failed to award participation points")
		return
	}

	logger.Info().Int64("event_id", eventID).Int("entries", len(entries)).Msg("Participation points awarded")
	notifyParticipation(r.Context(), q, event, entries)

	if apiutil.IsJSONRequest(r) {
		resp := awardResponse{EventID: eventID, Awarded: len(entries), Entries: entries}
		if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to write award response")
		}
		return
	}
	apiutil.WriteHTMLFeedback(w, http.StatusOK, "Participation points awarded to "+strconv.Itoa(len(entries))+" clubs")
}

func notifyParticipation(ctx context.Context, q *dbgen.Queries, event dbgen.Event, entries []dbgen.PointEntry) {
	if mailer == nil {
		return
	}
	logger := log.Ctx(ctx)
	for _, entry := range entries {
		if entry.Points <= 0 {
			continue
		}
		email.SendClubNotification(ctx, q, mailer, entry.ClubID, email.BuildPointsAwarded(email.PointsAwardedDetails{
			EventName: event.Name,
			Category:  entry.Category,
			Points:    entry.Points,
			Reason:    entry.Reason,
		}), logger)
	}
}

func decodeAttendanceRequest(r *http.Request) (attendanceRequest, error) {
	var req attendanceRequest
	if apiutil.IsJSONRequest(r) {
		if err := apiutil.DecodeJSON(r, &req); err != nil {
			return attendanceRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid JSON body", Err: err}
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return attendanceRequest{}, apiutil.HandlerError{Status: http.StatusBadRequest, Message: "Invalid form data", Err: err}
		}
		var err error
		if req.RegisteredCount, err = formCount(r, "registered_count", "registeredCount"); err != nil {
			return attendanceRequest{}, err
		}
		if req.AttendedCount, err = formCount(r, "attended_count", "attendedCount"); err != nil {
			return attendanceRequest{}, err
		}
		if req.EligibleCount, err = formCount(r, "eligible_count", "eligibleCount"); err != nil {
			return attendanceRequest{}, err
		}
	}
	if err := apiutil.ValidateStruct(req); err != nil {
		return attendanceRequest{}, err
	}
	return req, nil
}

func formCount(r *http.Request, keys ...string) (*int64, error) {
	values := make([]string, 0, len(keys))
	for _, key := range keys {
		values = append(values, r.FormValue(key))
	}
	raw := apiutil.FirstNonEmpty(values...)
	if raw == "" {
		return nil, nil
	}
	value, err := apiutil.ParseNonNegativeInt64Field(raw, keys[len(keys)-1])
	if err != nil {
		return nil, apiutil.FieldError{Field: keys[len(keys)-1], Reason: "must be a non-negative integer"}
	}
	return &value, nil
}
