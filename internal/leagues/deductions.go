package leagues

import (
	"errors"
	"fmt"
)

const (
	ReasonNoShow         = "no_show"
	ReasonLateWithdrawal = "late_withdrawal"
	ReasonMisconduct     = "misconduct"
	ReasonForfeit        = "forfeit"
	ReasonOther          = "other"
)

var (
	ErrUnknownReason    = errors.New("unknown deduction reason")
	ErrOverrideRequired = errors.New("deduction amount is required for this reason")
	ErrPointsOutOfRange = errors.New("points out of range")
)

type DeductionRules struct {
	Amounts      map[string]int
	MaxDeduction int
	MaxAward     int
}

// DeductionPoints returns the negative amount to record for a deduction.
// A positive override replaces the configured amount; "other" needs one.
func DeductionPoints(reason string, override int, rules DeductionRules) (int, error) {
	if override < 0 {
		return 0, fmt.Errorf("%w: override must not be negative", ErrPointsOutOfRange)
	}
	if override > rules.MaxDeduction {
		return 0, fmt.Errorf("%w: deduction of %d exceeds maximum %d", ErrPointsOutOfRange, override, rules.MaxDeduction)
	}

	if reason == ReasonOther {
		if override == 0 {
			return 0, ErrOverrideRequired
		}
		return -override, nil
	}

	amount, ok := rules.Amounts[reason]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownReason, reason)
	}
	if override > 0 {
		amount = override
	}
	return -amount, nil
}

func AwardPoints(points int, rules DeductionRules) (int, error) {
	if points <= 0 {
		return 0, fmt.Errorf("%w: award must be positive", ErrPointsOutOfRange)
	}
	if points > rules.MaxAward {
		return 0, fmt.Errorf("%w: award of %d exceeds maximum %d", ErrPointsOutOfRange, points, rules.MaxAward)
	}
	return points, nil
}

// DeductionReasons lists the reasons accepted by DeductionPoints in a stable
// order for forms.
func DeductionReasons() []string {
	return []string{ReasonNoShow, ReasonLateWithdrawal, ReasonMisconduct, ReasonForfeit, ReasonOther}
}

// ReasonLabel turns a deduction reason code into readable text.
func ReasonLabel(reason string) string {
	switch reason {
	case ReasonNoShow:
		return "No show"
	case ReasonLateWithdrawal:
		return "Late withdrawal"
	case ReasonMisconduct:
		return "Misconduct"
	case ReasonForfeit:
		return "Forfeit"
	case "", ReasonOther:
		return "Other"
	}
	return reason
}
