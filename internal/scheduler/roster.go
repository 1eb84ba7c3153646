package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rcl-league/portal/internal/db"
	"github.com/rcl-league/portal/internal/membership"
)

const (
	rosterSyncJobName = "membership_roster_sync"
	rosterSyncTimeout = 10 * time.Minute
)

// RosterCounter reports a club's registered member count.
type RosterCounter interface {
	ClubMemberCount(ctx context.Context, clubCode string) (int, error)
}

// RegisterRosterSyncJob registers the roster refresh job. It is a no-op when
// counter is nil.
func RegisterRosterSyncJob(database *db.DB, counter RosterCounter, cronExpr string) error {
	if database == nil {
		return fmt.Errorf("roster sync requires database")
	}

	if counter == nil {
		log.Info().Str("job_name", rosterSyncJobName).Msg("Roster sync job skipped: membership API not configured")
		return nil
	}

	return Register(Job{
		Name:    rosterSyncJobName,
		Cron:    cronExpr,
		Timeout: rosterSyncTimeout,
		Fields:  map[string]string{"component": "roster_sync_job"},
		Run: func(ctx context.Context) error {
			updated, err := SyncClubRosters(ctx, database, counter)
			if err != nil {
				return fmt.Errorf("roster sync: %w", err)
			}
			log.Ctx(ctx).Info().Int("clubs_updated", updated).Msg("Roster sync finished")
			return nil
		},
	})
}

// SyncClubRosters refreshes member_count for every active club. Clubs unknown
// to the membership system keep their current count. It returns the number of
// clubs whose count changed.
func SyncClubRosters(ctx context.Context, database *db.DB, counter RosterCounter) (int, error) {
	if database == nil || counter == nil {
		return 0, fmt.Errorf("roster sync requires database and membership client")
	}
	logger := log.Ctx(ctx)

	clubs, err := database.Queries.ListActiveClubs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active clubs: %w", err)
	}

	updated := 0
	for _, club := range clubs {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		count, err := counter.ClubMemberCount(ctx, club.Code)
		if err != nil {
			if errors.Is(err, membership.ErrClubNotFound) {
				logger.Warn().Int64("club_id", club.ID).Str("club_code", club.Code).Msg("Club missing from membership system")
				continue
			}
			logger.Error().Err(err).Int64("club_id", club.ID).Msg("Failed to fetch club member count")
			continue
		}
		if int64(count) == club.MemberCount {
			continue
		}
		if err := database.Queries.UpdateClubMemberCount(ctx, club.ID, int64(count)); err != nil {
			logger.Error().Err(err).Int64("club_id", club.ID).Msg("Failed to update club member count")
			continue
		}
		logger.Info().
			Int64("club_id", club.ID).
			Int64("previous", club.MemberCount).
			Int("member_count", count).
			Msg("Club member count updated")
		updated++
	}
	return updated, nil
}
