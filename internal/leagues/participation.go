package leagues

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type ParticipationTier struct {
	MinPercent int
	Points     int
}

var ErrInvalidAttendance = errors.New("invalid attendance counts")

// ParticipationPercent returns attended/eligible as a percentage rounded to
// one decimal place.
func ParticipationPercent(attended, eligible int64) float64 {
	if eligible <= 0 {
		return 0
	}
	return math.Round(float64(attended)*1000/float64(eligible)) / 10
}

// ParticipationPoints returns the points of the highest tier whose threshold
// the attendance meets. A 0% tier applies even when nobody attended.
func ParticipationPoints(attended, eligible int64, tiers []ParticipationTier) int {
	if eligible <= 0 {
		return 0
	}
	ordered := make([]ParticipationTier, len(tiers))
	copy(ordered, tiers)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].MinPercent > ordered[j].MinPercent
	})
	for _, tier := range ordered {
		if attended*100 >= int64(tier.MinPercent)*eligible {
			return tier.Points
		}
	}
	return 0
}

func ValidateTiers(tiers []ParticipationTier) error {
	seen := make(map[int]struct{}, len(tiers))
	for _, tier := range tiers {
		if tier.MinPercent < 0 || tier.MinPercent > 100 {
			return fmt.Errorf("tier threshold %d%% must be between 0 and 100", tier.MinPercent)
		}
		if tier.Points < 0 {
			return fmt.Errorf("tier at %d%% has negative points", tier.MinPercent)
		}
		if _, dup := seen[tier.MinPercent]; dup {
			return fmt.Errorf("duplicate tier at %d%%", tier.MinPercent)
		}
		seen[tier.MinPercent] = struct{}{}
	}
	return nil
}

func ValidateAttendance(registered, attended, eligible int64) error {
	switch {
	case registered < 0 || attended < 0 || eligible < 0:
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidAttendance)
	case attended > eligible:
		return fmt.Errorf("%w: attended (%d) exceeds eligible (%d)", ErrInvalidAttendance, attended, eligible)
	}
	return nil
}
