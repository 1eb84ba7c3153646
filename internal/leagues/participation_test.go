package leagues

import (
	"errors"
	"testing"
)

var defaultTiers = []ParticipationTier{
	{MinPercent: 25, Points: 1},
	{MinPercent: 75, Points: 5},
	{MinPercent: 50, Points: 3},
}

func TestParticipationPoints(t *testing.T) {
	tests := []struct {
		name     string
		attended int64
		eligible int64
		want     int
	}{
		{name: "full turnout", attended: 20, eligible: 20, want: 5},
		{name: "exact top threshold", attended: 3, eligible: 4, want: 5},
		{name: "just below top threshold", attended: 74, eligible: 100, want: 3},
		{name: "half", attended: 10, eligible: 20, want: 3},
		{name: "quarter", attended: 1, eligible: 4, want: 1},
		{name: "below all tiers", attended: 1, eligible: 5, want: 0},
		{name: "nobody attended", attended: 0, eligible: 10, want: 0},
		{name: "empty roster", attended: 0, eligible: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParticipationPoints(tt.attended, tt.eligible, defaultTiers); got != tt.want {
				t.Fatalf("expected %d points, got %d", tt.want, got)
			}
		})
	}
}

func TestParticipationPointsZeroPercentTier(t *testing.T) {
	tiers := []ParticipationTier{{MinPercent: 0, Points: 1}, {MinPercent: 50, Points: 5}}
	if got := ParticipationPoints(0, 10, tiers); got != 1 {
		t.Fatalf("expected the 0%% tier for no attendance, got %d", got)
	}
	if got := ParticipationPoints(0, 0, tiers); got != 0 {
		t.Fatalf("expected nothing for an empty roster, got %d", got)
	}
}

func TestParticipationPointsDoesNotReorderTiers(t *testing.T) {
	tiers := []ParticipationTier{{MinPercent: 10, Points: 1}, {MinPercent: 90, Points: 9}}
	ParticipationPoints(5, 5, tiers)
	if tiers[0].MinPercent != 10 {
		t.Fatalf("expected caller's tiers untouched, got %+v", tiers)
	}
}

func TestParticipationPercent(t *testing.T) {
	tests := []struct {
		attended, eligible int64
		want               float64
	}{
		{1, 3, 33.3},
		{2, 3, 66.7},
		{3, 4, 75},
		{0, 0, 0},
		{7, 7, 100},
	}
	for _, tt := range tests {
		if got := ParticipationPercent(tt.attended, tt.eligible); got != tt.want {
			t.Fatalf("ParticipationPercent(%d, %d) = %v, want %v", tt.attended, tt.eligible, got, tt.want)
		}
	}
}

func TestValidateTiers(t *testing.T) {
	if err := ValidateTiers(defaultTiers); err != nil {
		t.Fatalf("expected default tiers valid: %v", err)
	}
	invalid := [][]ParticipationTier{
		{{MinPercent: 101, Points: 1}},
		{{MinPercent: -1, Points: 1}},
		{{MinPercent: 50, Points: -2}},
		{{MinPercent: 50, Points: 1}, {MinPercent: 50, Points: 2}},
	}
	for _, tiers := range invalid {
		if err := ValidateTiers(tiers); err == nil {
			t.Fatalf("expected error for %+v", tiers)
		}
	}
}

func TestValidateAttendance(t *testing.T) {
	if err := ValidateAttendance(12, 10, 10); err != nil {
		t.Fatalf("expected valid attendance: %v", err)
	}
	if err := ValidateAttendance(5, 11, 10); !errors.Is(err, ErrInvalidAttendance) {
		t.Fatalf("expected ErrInvalidAttendance, got %v", err)
	}
	if err := ValidateAttendance(-1, 0, 10); !errors.Is(err, ErrInvalidAttendance) {
		t.Fatalf("expected ErrInvalidAttendance, got %v", err)
	}
}
