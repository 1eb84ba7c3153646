package apiutil

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

// ResolveSeason returns the season named by ?season_id, or the active season
// when the parameter is absent.
func ResolveSeason(ctx context.Context, q *dbgen.Queries, r *http.Request) (dbgen.Season, error) {
	seasonID, err := QueryID(r, "season_id")
	if err != nil {
		return dbgen.Season{}, FieldError{Field: "season_id", Reason: "must be a positive integer"}
	}

	var season dbgen.Season
	if seasonID > 0 {
		season, err = q.GetSeason(ctx, seasonID)
	} else {
		season, err = q.GetActiveSeason(ctx)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			msg := "Season not found"
			if seasonID == 0 {
				msg = "No active season"
			}
			return dbgen.Season{}, HandlerError{Status: http.StatusNotFound, Message: msg, Err: err}
		}
		return dbgen.Season{}, err
	}
	return season, nil
}
