package leagues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcl-league/portal/internal/config"
	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

// Scoring bundles the configured point rules.
type Scoring struct {
	PlacementTable    map[int]int
	PlacementFallback int
	Tiers             []ParticipationTier
	Deductions        DeductionRules
}

func ScoringFromConfig(cfg config.ScoringConfig) Scoring {
	tiers := make([]ParticipationTier, 0, len(cfg.ParticipationTiers))
	for _, tier := range cfg.ParticipationTiers {
		tiers = append(tiers, ParticipationTier{MinPercent: tier.MinPercent, Points: tier.Points})
	}
	fallback := 1
	if cfg.PlacementFallback != nil {
		fallback = *cfg.PlacementFallback
	}
	return Scoring{
		PlacementTable:    cfg.PlacementPoints,
		PlacementFallback: fallback,
		Tiers:             tiers,
		Deductions: DeductionRules{
			Amounts:      cfg.Deductions.Amounts,
			MaxDeduction: cfg.Deductions.MaxDeduction,
			MaxAward:     cfg.Deductions.MaxAward,
		},
	}
}

var (
	ErrEventCancelled = errors.New("event is cancelled")
	ErrNotTournament  = errors.New("event is not a tournament")
)

// AwardParticipation replaces the event's participation entries with one entry
// per attendance row. q should be bound to a transaction.
func AwardParticipation(ctx context.Context, q *dbgen.Queries, event dbgen.Event, tiers []ParticipationTier, createdBy sql.NullInt64) ([]dbgen.PointEntry, error) {
	if event.Status == "cancelled" {
		return nil, ErrEventCancelled
	}
	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}

	rows, err := q.ListEventAttendance(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	if _, err := q.DeleteEventPointEntries(ctx, event.ID, CategoryParticipation); err != nil {
		return nil, fmt.Errorf("clear participation entries: %w", err)
	}

	entries := make([]dbgen.PointEntry, 0, len(rows))
	for _, row := range rows {
		points := ParticipationPoints(row.AttendedCount, row.EligibleCount, tiers)
		entry, err := q.CreatePointEntry(ctx, dbgen.CreatePointEntryParams{
			SeasonID:  event.SeasonID,
			ClubID:    row.ClubID,
			EventID:   sql.NullInt64{Int64: event.ID, Valid: true},
			Category:  CategoryParticipation,
			Points:    int64(points),
			Reason:    fmt.Sprintf("%.1f%% attendance (%d/%d)", ParticipationPercent(row.AttendedCount, row.EligibleCount), row.AttendedCount, row.EligibleCount),
			CreatedBy: createdBy,
		})
		if err != nil {
			return nil, fmt.Errorf("record participation for club %d: %w", row.ClubID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// AwardPlacements requires a complete bracket. It replaces the event's
// placement entries and marks the event completed. q should be bound to a
// transaction.
func AwardPlacements(ctx context.Context, q *dbgen.Queries, event dbgen.Event, table map[int]int, fallback int, createdBy sql.NullInt64) (Placements, []dbgen.PointEntry, error) {
	if event.Kind != "tournament" {
		return Placements{}, nil, ErrNotTournament
	}
	if event.Status == "cancelled" {
		return Placements{}, nil, ErrEventCancelled
	}

	placements, err := CalculatePlacements(ctx, q, event.ID)
	if err != nil {
		return Placements{}, nil, err
	}
	if !placements.Complete {
		return placements, nil, ErrBracketIncomplete
	}
	for _, standing := range placements.Standings {
		if standing.Place <= 0 {
			return placements, nil, fmt.Errorf("club %d has no place: %w", standing.ClubID, ErrBracketIncomplete)
		}
	}

	if _, err := q.DeleteEventPointEntries(ctx, event.ID, CategoryPlacement); err != nil {
		return Placements{}, nil, fmt.Errorf("clear placement entries: %w", err)
	}

	entries := make([]dbgen.PointEntry, 0, len(placements.Standings))
	for _, standing := range placements.Standings {
		entry, err := q.CreatePointEntry(ctx, dbgen.CreatePointEntryParams{
			SeasonID:  event.SeasonID,
			ClubID:    standing.ClubID,
			EventID:   sql.NullInt64{Int64: event.ID, Valid: true},
			Category:  CategoryPlacement,
			Points:    int64(PlacementPoints(standing.Place, table, fallback)),
			Reason:    "Finished " + Ordinal(standing.Place),
			CreatedBy: createdBy,
		})
		if err != nil {
			return Placements{}, nil, fmt.Errorf("record placement for club %d: %w", standing.ClubID, err)
		}
		entries = append(entries, entry)
	}

	if err := q.UpdateEventStatus(ctx, event.ID, "completed"); err != nil {
		return Placements{}, nil, fmt.Errorf("complete event: %w", err)
	}
	return placements, entries, nil
}

// Ordinal formats a place as 1st, 2nd, 3rd, 11th and so on.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
