package message

import (
	"math"
	"time"
)

// LateFee is the surcharge breakdown for one overdue installment, in cents.
type LateFee struct {
	Interest int64
	Penalty  int64
	Total    int64
}

// DaysOverdue counts whole calendar days between the due date and now, both
// truncated to midnight. Due today or in the future yields 0.
func DaysOverdue(dueDate, now time.Time) int {
	due := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// ComputeLateFee applies simple daily interest plus a flat penalty.
// Interest accrues at monthlyRatePct/30 per day of delay; the penalty is
// penaltyRatePct of the base, charged once and only once the installment is
// actually late. Zero days overdue means no surcharge at all. Rates are
// percentages, so a monthlyRatePct of 3 means 3% per month.
func ComputeLateFee(baseCents int64, monthlyRatePct, penaltyRatePct float64, daysOverdue int) LateFee {
	if daysOverdue <= 0 {
		return LateFee{Total: baseCents}
	}
	base := float64(baseCents)
	interest := int64(math.Round(base * (monthlyRatePct / 100 / 30) * float64(daysOverdue)))
	penalty := int64(math.Round(base * penaltyRatePct / 100))
	return LateFee{
		Interest: interest,
		Penalty:  penalty,
		Total:    baseCents + interest + penalty,
	}
}
