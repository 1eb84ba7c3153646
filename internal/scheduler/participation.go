package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/db"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
	"github.com/rcl-league/portal/internal/email"
	"github.com/rcl-league/portal/internal/leagues"
)

const (
	participationSweepJobName = "participation_award_sweep"
	participationSweepTimeout = 5 * time.Minute
)

// RegisterParticipationSweepJob registers the nightly participation award sweep.
// emailClient may be nil.
func RegisterParticipationSweepJob(database *db.DB, tiers []leagues.ParticipationTier, cronExpr string, emailClient email.EmailSender) error {
	if database == nil {
		return fmt.Errorf("participation sweep requires database")
	}

	return Register(Job{
		Name:    participationSweepJobName,
		Cron:    cronExpr,
		Timeout: participationSweepTimeout,
		Fields:  map[string]string{"component": "participation_sweep_job"},
		Run: func(ctx context.Context) error {
			awarded, err := SweepParticipationAwards(ctx, database, tiers, emailClient)
			if err != nil {
				return fmt.Errorf("participation sweep: %w", err)
			}
			log.Ctx(ctx).Info().Int("events", awarded).Msg("Participation sweep finished")
			return nil
		},
	})
}

// SweepParticipationAwards awards participation points for completed events in
// the active season that have attendance but no participation entries yet.
// Each event is awarded in its own transaction; a failing event is logged and
// skipped. It returns the number of events awarded.
func SweepParticipationAwards(ctx context.Context, database *db.DB, tiers []leagues.ParticipationTier, emailClient email.EmailSender) (int, error) {
	if database == nil {
		return 0, fmt.Errorf("participation sweep requires database")
	}
	logger := log.Ctx(ctx)

	season, err := database.Queries.GetActiveSeason(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Debug().Msg("Participation sweep skipped: no active season")
			return 0, nil
		}
		return 0, fmt.Errorf("load active season: %w", err)
	}

	events, err := database.Queries.ListParticipationEventsAwaitingAward(ctx, season.ID)
	if err != nil {
		return 0, fmt.Errorf("list events awaiting award: %w", err)
	}

	awarded := 0
	for _, event := range events {
		eventLogger := logger.With().Int64("event_id", event.ID).Logger()

		var entries []dbgen.PointEntry
		err := database.RunInTx(ctx, func(txdb *db.DB) error {
			var err error
			entries, err = leagues.AwardParticipation(ctx, txdb.Queries, event, tiers, sql.NullInt64{})
			return err
		})
		if err != nil {
			eventLogger.Error().Err(err).Msg("Failed to award participation points")
			continue
		}
		awarded++
		eventLogger.Info().Int("entries", len(entries)).Msg("Participation points awarded by sweep")

		for _, entry := range entries {
			if entry.Points <= 0 {
				continue
			}
			email.SendClubNotification(ctx, database.Queries, emailClient, entry.ClubID, email.BuildPointsAwarded(email.PointsAwardedDetails{
				EventName: event.Name,
				Category:  entry.Category,
				Points:    entry.Points,
				Reason:    entry.Reason,
			}), &eventLogger)
		}
	}
	return awarded, nil
}
