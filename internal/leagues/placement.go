package leagues

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrEmptyBracket         = errors.New("bracket has no matches")
	ErrTiedMatch            = errors.New("tied matches are not supported in elimination brackets")
	ErrNegativeScore        = errors.New("scores must not be negative")
	ErrDuplicateElimination = errors.New("club was eliminated more than once")
	ErrClubInRoundTwice     = errors.New("club appears more than once in a round")
	ErrPlayedAfterElim      = errors.New("club played after being eliminated")
	ErrMultipleFinals       = errors.New("bracket has more than one final")
	ErrInvalidThirdPlace    = errors.New("third-place match must be played by semi-final losers")
	ErrBracketIncomplete    = errors.New("bracket is not complete")
	ErrAdvancedWithoutWin   = errors.New("club advanced without winning its previous match")
)

type BracketMatch struct {
	ID         int64
	Round      int
	Position   int
	HomeClubID int64
	AwayClubID int64
	HomeScore  *int
	AwayScore  *int
	ThirdPlace bool
}

type Placement struct {
	ClubID            int64 `json:"clubId"`
	Place             int   `json:"place"`
	EliminatedInRound int   `json:"eliminatedInRound,omitempty"`
	Wins              int   `json:"wins"`
	Losses            int   `json:"losses"`
	PointsFor         int   `json:"pointsFor"`
	PointsAgainst     int   `json:"pointsAgainst"`
}

type Placements struct {
	Rounds     int         `json:"rounds"`
	Complete   bool        `json:"complete"`
	ChampionID int64       `json:"championId,omitempty"`
	Standings  []Placement `json:"standings"`
}

func (m BracketMatch) clubCount() int {
	count := 0
	if m.HomeClubID > 0 {
		count++
	}
	if m.AwayClubID > 0 {
		count++
	}
	return count
}

func (m BracketMatch) decided() bool {
	return m.clubCount() == 2 && m.HomeScore != nil && m.AwayScore != nil
}

func (m BracketMatch) result() (winner, loser int64, err error) {
	home, away := *m.HomeScore, *m.AwayScore
	if home < 0 || away < 0 {
		return 0, 0, fmt.Errorf("match %d: %w", m.ID, ErrNegativeScore)
	}
	switch {
	case home > away:
		return m.HomeClubID, m.AwayClubID, nil
	case away > home:
		return m.AwayClubID, m.HomeClubID, nil
	default:
		return 0, 0, fmt.Errorf("match %d: %w", m.ID, ErrTiedMatch)
	}
}

// DerivePlacements infers final placings from a single-elimination bracket.
// Clubs knocked out in round r of an R-round bracket share place 2^(R-r)+1.
// A decided third-place match splits the semi-final losers into 3rd and 4th.
// Clubs still alive in an unfinished bracket get place 0, and a bracket with
// any such club is never complete.
func DerivePlacements(matches []BracketMatch) (Placements, error) {
	if len(matches) == 0 {
		return Placements{}, ErrEmptyBracket
	}

	// Later rounds may not exist yet, so the first round's width also bounds
	// the number of rounds.
	rounds, firstRoundSlots := 0, 0
	for _, match := range matches {
		if match.ThirdPlace {
			continue
		}
		if match.Round > rounds {
			rounds = match.Round
		}
		if match.Round == 1 && match.Position > firstRoundSlots {
			firstRoundSlots = match.Position
		}
	}
	if fromWidth := BracketRounds(firstRoundSlots * 2); fromWidth > rounds {
		rounds = fromWidth
	}
	if rounds == 0 {
		return Placements{}, ErrEmptyBracket
	}

	stats := make(map[int64]*Placement)
	entry := func(clubID int64) *Placement {
		p, ok := stats[clubID]
		if !ok {
			p = &Placement{ClubID: clubID}
			stats[clubID] = p
		}
		return p
	}

	type roundKey struct {
		round      int
		thirdPlace bool
	}
	seen := make(map[roundKey]map[int64]struct{})
	playedIn := make(map[int]map[int64]BracketMatch)
	lastRound := make(map[int64]int)
	var final, thirdPlace *BracketMatch

	for i := range matches {
		match := matches[i]
		key := roundKey{round: match.Round, thirdPlace: match.ThirdPlace}
		if seen[key] == nil {
			seen[key] = make(map[int64]struct{})
		}
		for _, clubID := range []int64{match.HomeClubID, match.AwayClubID} {
			if clubID <= 0 {
				continue
			}
			if _, dup := seen[key][clubID]; dup {
				return Placements{}, fmt.Errorf("club %d in round %d: %w", clubID, match.Round, ErrClubInRoundTwice)
			}
			seen[key][clubID] = struct{}{}
			entry(clubID)
			if match.ThirdPlace {
				continue
			}
			if playedIn[match.Round] == nil {
				playedIn[match.Round] = make(map[int64]BracketMatch)
			}
			playedIn[match.Round][clubID] = match
			if match.Round > lastRound[clubID] {
				lastRound[clubID] = match.Round
			}
		}

		if match.ThirdPlace {
			if match.clubCount() == 0 {
				continue
			}
			if thirdPlace != nil {
				return Placements{}, fmt.Errorf("more than one third-place match: %w", ErrInvalidThirdPlace)
			}
			thirdPlace = &matches[i]
			continue
		}

		if match.Round == rounds && match.clubCount() > 0 {
			if final != nil {
				return Placements{}, ErrMultipleFinals
			}
			final = &matches[i]
		}

		if !match.decided() {
			continue
		}
		winner, loser, err := match.result()
		if err != nil {
			return Placements{}, err
		}
		record(entry(winner), entry(loser), match)

		lost := entry(loser)
		if lost.EliminatedInRound != 0 {
			return Placements{}, fmt.Errorf("club %d: %w", loser, ErrDuplicateElimination)
		}
		lost.EliminatedInRound = match.Round
	}

	// A club in round r+1 must have had a bye or a win in round r.
	for _, match := range matches {
		if match.ThirdPlace || match.Round < 2 {
			continue
		}
		for _, clubID := range []int64{match.HomeClubID, match.AwayClubID} {
			prev, ok := playedIn[match.Round-1][clubID]
			if ok && prev.clubCount() == 2 && !prev.decided() {
				return Placements{}, fmt.Errorf("club %d in round %d: %w", clubID, match.Round, ErrAdvancedWithoutWin)
			}
		}
	}

	for clubID, p := range stats {
		if p.EliminatedInRound != 0 && lastRound[clubID] > p.EliminatedInRound {
			return Placements{}, fmt.Errorf("club %d: %w", clubID, ErrPlayedAfterElim)
		}
		if p.EliminatedInRound != 0 {
			p.Place = 1<<(rounds-p.EliminatedInRound) + 1
		}
	}

	result := Placements{Rounds: rounds}
	finalDecided := final != nil && final.decided()
	if finalDecided {
		winner, _, _ := final.result()
		result.ChampionID = winner
		stats[winner].Place = 1
	}

	thirdPlaceDone := true
	if thirdPlace != nil {
		thirdPlaceDone = thirdPlace.decided()
		for _, clubID := range []int64{thirdPlace.HomeClubID, thirdPlace.AwayClubID} {
			if clubID <= 0 {
				continue
			}
			if rounds < 2 || stats[clubID].EliminatedInRound != rounds-1 {
				return Placements{}, fmt.Errorf("club %d: %w", clubID, ErrInvalidThirdPlace)
			}
		}
		if thirdPlaceDone {
			winner, loser, err := thirdPlace.result()
			if err != nil {
				return Placements{}, err
			}
			record(stats[winner], stats[loser], *thirdPlace)
			stats[winner].Place = 3
			stats[loser].Place = 4
		}
	}
	allPlaced := true
	for _, p := range stats {
		if p.Place == 0 {
			allPlaced = false
			break
		}
	}
	result.Complete = finalDecided && thirdPlaceDone && allPlaced

	result.Standings = make([]Placement, 0, len(stats))
	for _, p := range stats {
		result.Standings = append(result.Standings, *p)
	}
	sort.Slice(result.Standings, func(i, j int) bool {
		pi, pj := result.Standings[i].Place, result.Standings[j].Place
		if pi != pj {
			if pi == 0 {
				return false
			}
			if pj == 0 {
				return true
			}
			return pi < pj
		}
		return result.Standings[i].ClubID < result.Standings[j].ClubID
	})

	return result, nil
}

func record(winner, loser *Placement, match BracketMatch) {
	winnerScore, loserScore := *match.HomeScore, *match.AwayScore
	if winner.ClubID == match.AwayClubID {
		winnerScore, loserScore = loserScore, winnerScore
	}
	winner.Wins++
	winner.PointsFor += winnerScore
	winner.PointsAgainst += loserScore
	loser.Losses++
	loser.PointsFor += loserScore
	loser.PointsAgainst += winnerScore
}

// PlacementPoints looks up the league points for a finishing place. Places
// missing from the table inherit the nearest better place that is listed;
// places beyond the table's last entry get fallback. Place 0 scores nothing.
func PlacementPoints(place int, table map[int]int, fallback int) int {
	if place <= 0 {
		return 0
	}
	if points, ok := table[place]; ok {
		return points
	}
	best, maxPlace := 0, 0
	for p := range table {
		if p > maxPlace {
			maxPlace = p
		}
		if p < place && p > best {
			best = p
		}
	}
	if place > maxPlace || best == 0 {
		return fallback
	}
	return table[best]
}
