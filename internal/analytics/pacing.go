package analytics

import (
	"math"
	"time"

	"github.com/straye-as/target-analytics/internal/domain"
)

// Project computes run-rate pacing for the current calendar month.
// It returns nil for yearly periods and for any month other than the one
// containing now; callers omit the field rather than reporting zero.
func Project(period domain.Period, targetValue, actualValue float64, now time.Time) *domain.PacingResult {
	if !period.IsCurrentMonth(now) {
		return nil
	}

	local := now.In(period.Start.Location())
	daysInMonth := domain.DaysInMonth(local)
	dayOfMonth := max(local.Day(), 1)

	required := targetValue / float64(daysInMonth)
	current := actualValue / float64(dayOfMonth)

	pace := 0.0
	if required > 0 {
		pace = current / required * 100
	}

	gap := math.Max(0, targetValue-actualValue)
	daysLeft := max(daysInMonth-dayOfMonth, 1)

	return &domain.PacingResult{
		DaysInMonth:                 daysInMonth,
		DayOfMonth:                  dayOfMonth,
		RequiredDailyRate:           required,
		CurrentDailyRate:            current,
		PacePercentage:              pace,
		OnTrack:                     pace >= 100 || actualValue >= targetValue,
		RemainingGap:                gap,
		NeededDailyRateForRemainder: gap / float64(daysLeft),
		ProjectedValue:              current * float64(daysInMonth),
	}
}
