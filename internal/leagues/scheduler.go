package leagues

import (
	"errors"
	"fmt"
	"sort"
)

type BracketSlot struct {
	Round      int
	Position   int
	HomeClubID int64
	AwayClubID int64
}

// GenerateBracket seeds clubs, given in seed order, into a single-elimination
// bracket. Top seeds receive byes when the field is not a power of two, and a
// bye winner is written straight into its round-two slot.
func GenerateBracket(clubIDs []int64) ([]BracketSlot, error) {
	if len(clubIDs) < 2 {
		return nil, errors.New("at least two clubs are required")
	}
	seen := make(map[int64]struct{}, len(clubIDs))
	for _, id := range clubIDs {
		if id <= 0 {
			return nil, fmt.Errorf("invalid club id %d", id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("club %d is seeded twice", id)
		}
		seen[id] = struct{}{}
	}

	size := BracketSize(len(clubIDs))
	order := seedOrder(size)

	type slotKey struct{ round, position int }
	slots := make(map[slotKey]*BracketSlot)
	slot := func(round, position int) *BracketSlot {
		key := slotKey{round, position}
		s, ok := slots[key]
		if !ok {
			s = &BracketSlot{Round: round, Position: position}
			slots[key] = s
		}
		return s
	}

	seedClub := func(seed int) int64 {
		if seed > len(clubIDs) {
			return 0
		}
		return clubIDs[seed-1]
	}

	for i := 0; i < len(order); i += 2 {
		position := i/2 + 1
		home, away := seedClub(order[i]), seedClub(order[i+1])
		first := slot(1, position)
		first.HomeClubID, first.AwayClubID = home, away

		if size == 2 || (home != 0 && away != 0) {
			continue
		}
		advancing := home
		if advancing == 0 {
			advancing = away
		}
		nextRound, nextPosition, isHome := NextSlot(1, position)
		next := slot(nextRound, nextPosition)
		if isHome {
			next.HomeClubID = advancing
		} else {
			next.AwayClubID = advancing
		}
	}

	result := make([]BracketSlot, 0, len(slots))
	for _, s := range slots {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Round != result[j].Round {
			return result[i].Round < result[j].Round
		}
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// NextSlot returns where the winner of a main-bracket match plays next.
func NextSlot(round, position int) (nextRound, nextPosition int, home bool) {
	return round + 1, (position + 1) / 2, position%2 == 1
}

// BracketSize returns the smallest power of two that fits clubs.
func BracketSize(clubs int) int {
	size := 1
	for size < clubs {
		size <<= 1
	}
	return size
}

// BracketRounds returns the number of main-bracket rounds for clubs.
func BracketRounds(clubs int) int {
	rounds := 0
	for size := BracketSize(clubs); size > 1; size >>= 1 {
		rounds++
	}
	return rounds
}

// seedOrder lists seeds in first-round slot order, e.g. 1,8,4,5,2,7,3,6 for
// eight clubs, so the top two seeds can only meet in the final.
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		sum := len(order)*2 + 1
		for _, seed := range order {
			next = append(next, seed, sum-seed)
		}
		order = next
	}
	return order
}
