package leagues

import (
	"context"
	"errors"
	"sort"

	dbgen "github.com/rcl-league/portal/internal/db/generated"
)

const (
	CategoryPlacement     = "placement"
	CategoryParticipation = "participation"
	CategoryAward         = "award"
	CategoryDeduction     = "deduction"
)

type LeaderboardRow struct {
	ClubID   int64
	ClubName string
	ClubCode string
	Category string
	Points   int64
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ClubID        int64  `json:"clubId"`
	ClubName      string `json:"clubName"`
	ClubCode      string `json:"clubCode"`
	Total         int64  `json:"total"`
	Placement     int64  `json:"placement"`
	Participation int64  `json:"participation"`
	Awards        int64  `json:"awards"`
	Deductions    int64  `json:"deductions"`
}

// BuildLeaderboard folds per-category point rows into one entry per club,
// ordered by total then name, with competition ranking (1, 2, 2, 4).
func BuildLeaderboard(rows []LeaderboardRow) []LeaderboardEntry {
	clubs := make(map[int64]*LeaderboardEntry)
	for _, row := range rows {
		entry, ok := clubs[row.ClubID]
		if !ok {
			entry = &LeaderboardEntry{
				ClubID:   row.ClubID,
				ClubName: row.ClubName,
				ClubCode: row.ClubCode,
			}
			clubs[row.ClubID] = entry
		}

		switch row.Category {
		case CategoryPlacement:
			entry.Placement += row.Points
		case CategoryParticipation:
			entry.Participation += row.Points
		case CategoryAward:
			entry.Awards += row.Points
		case CategoryDeduction:
			entry.Deductions += row.Points
		}
		entry.Total += row.Points
	}

	ordered := make([]LeaderboardEntry, 0, len(clubs))
	for _, entry := range clubs {
		ordered = append(ordered, *entry)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Total != ordered[j].Total {
			return ordered[i].Total > ordered[j].Total
		}
		if ordered[i].ClubName != ordered[j].ClubName {
			return ordered[i].ClubName < ordered[j].ClubName
		}
		return ordered[i].ClubID < ordered[j].ClubID
	})

	for i := range ordered {
		if i > 0 && ordered[i].Total == ordered[i-1].Total {
			ordered[i].Rank = ordered[i-1].Rank
			continue
		}
		ordered[i].Rank = i + 1
	}
	return ordered
}

// CalculateLeaderboard loads a season's point totals, optionally limited to
// events of one sport, and ranks every active club.
func CalculateLeaderboard(ctx context.Context, q *dbgen.Queries, seasonID, sportID int64) ([]LeaderboardEntry, error) {
	if q == nil {
		return nil, errors.New("queries are required")
	}
	if seasonID <= 0 {
		return nil, errors.New("season ID is required")
	}

	rows, err := q.LeaderboardRows(ctx, dbgen.LeaderboardRowsParams{SeasonID: seasonID, SportID: sportID})
	if err != nil {
		return nil, err
	}

	converted := make([]LeaderboardRow, 0, len(rows))
	for _, row := range rows {
		converted = append(converted, LeaderboardRow{
			ClubID:   row.ClubID,
			ClubName: row.ClubName,
			ClubCode: row.ClubCode,
			Category: row.Category.String,
			Points:   row.Points,
		})
	}
	return BuildLeaderboard(converted), nil
}

// CalculatePlacements derives placings for a tournament event from its stored
// matches.
func CalculatePlacements(ctx context.Context, q *dbgen.Queries, eventID int64) (Placements, error) {
	if q == nil {
		return Placements{}, errors.New("queries are required")
	}
	if eventID <= 0 {
		return Placements{}, errors.New("event ID is required")
	}

	matches, err := q.ListEventMatches(ctx, eventID)
	if err != nil {
		return Placements{}, err
	}
	return DerivePlacements(ToBracketMatches(matches))
}

func ToBracketMatches(matches []dbgen.TournamentMatch) []BracketMatch {
	result := make([]BracketMatch, 0, len(matches))
	for _, m := range matches {
		bm := BracketMatch{
			ID:         m.ID,
			Round:      int(m.Round),
			Position:   int(m.Position),
			HomeClubID: m.HomeClubID.Int64,
			AwayClubID: m.AwayClubID.Int64,
			ThirdPlace: m.IsThirdPlace,
		}
		if m.HomeScore.Valid {
			score := int(m.HomeScore.Int64)
			bm.HomeScore = &score
		}
		if m.AwayScore.Valid {
			score := int(m.AwayScore.Int64)
			bm.AwayScore = &score
		}
		result = append(result, bm)
	}
	return result
}
