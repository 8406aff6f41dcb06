package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	yearlyPeriodPattern  = regexp.MustCompile(`^\d{4}$`)
	monthlyPeriodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// Period is a parsed target period. Start and End are both inclusive.
type Period struct {
	Key   string     `json:"key"`
	Type  PeriodType `json:"type"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

// ParsePeriod validates a period key against its type and resolves its calendar
// boundaries in loc. Keys are bit-exact: "2026" for YEARLY and "2026-03" for MONTHLY.
func ParsePeriod(key string, periodType PeriodType, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}

	switch periodType {
	case PeriodTypeYearly:
		if !yearlyPeriodPattern.MatchString(key) {
			return Period{}, fmt.Errorf("period %q does not match YYYY", key)
		}
		year, _ := strconv.Atoi(key)
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		return Period{
			Key:   key,
			Type:  periodType,
			Start: start,
			End:   start.AddDate(1, 0, 0).Add(-time.Nanosecond),
		}, nil

	case PeriodTypeMonthly:
		if !monthlyPeriodPattern.MatchString(key) {
			return Period{}, fmt.Errorf("period %q does not match YYYY-MM", key)
		}
		year, _ := strconv.Atoi(key[:4])
		month, _ := strconv.Atoi(key[5:])
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		return Period{
			Key:   key,
			Type:  periodType,
			Start: start,
			End:   start.AddDate(0, 1, 0).Add(-time.Nanosecond),
		}, nil

	default:
		return Period{}, fmt.Errorf("unknown period type %q", periodType)
	}
}

// MonthKey formats t as a MONTHLY period key
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// YearKey formats t as a YEARLY period key
func YearKey(t time.Time) string {
	return t.Format("2006")
}

// Contains reports whether t falls inside the period
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// IsCurrentMonth reports whether p is the MONTHLY period containing now
func (p Period) IsCurrentMonth(now time.Time) bool {
	if p.Type != PeriodTypeMonthly {
		return false
	}
	return p.Key == MonthKey(now.In(p.Start.Location()))
}

// Months returns the MONTHLY keys covered by the period in calendar order
func (p Period) Months() []string {
	var keys []string
	for m := p.Start; !m.After(p.End); m = m.AddDate(0, 1, 0) {
		keys = append(keys, MonthKey(m))
	}
	return keys
}

// DaysInMonth returns the number of calendar days in the month containing t
func DaysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, 1, -1).Day()
}
