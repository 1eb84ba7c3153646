package email

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

const notificationTimeout = 10 * time.Second

// SendClubNotification emails a club's contact asynchronously. Missing
// senders, clubs without a contact email, and empty notifications are skipped.
func SendClubNotification(ctx context.Context, q *dbgen.Queries, client EmailSender, clubID int64, notification Notification, logger *zerolog.Logger) {
	if client == nil || q == nil || notification.empty() {
		return
	}

	club, err := q.GetClub(ctx, clubID)
	if err != nil {
		if logger != nil && !errors.Is(err, sql.ErrNoRows) {
			logger.Error().Err(err).Int64("club_id", clubID).Msg("Failed to load club for notification")
		}
		return
	}
	recipient := strings.TrimSpace(club.ContactEmail)
	if recipient == "" {
		if logger != nil {
			logger.Debug().Int64("club_id", clubID).Msg("Club has no contact email; skipping notification")
		}
		return
	}

	go func() {
		sendCtx, cancel := newEmailContext(ctx, notificationTimeout)
		defer cancel()
		if err := client.Send(sendCtx, recipient, notification.Subject, notification.Body); err != nil && logger != nil {
			logger.Error().Err(err).Int64("club_id", clubID).Str("recipient", recipient).Msg("Failed to send club notification")
		}
	}()
}
