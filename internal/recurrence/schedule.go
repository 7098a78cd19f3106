package recurrence

import (
	"time"

	"github.com/jinzhu/now"
)

// Schedule is the part of a recurring template the rules need.
type Schedule struct {
	StartDate time.Time
	EndDate   *time.Time
	Interval  Interval
}

// Scheduled is implemented by anything carrying a Schedule.
type Scheduled interface {
	Schedule() Schedule
}

// ShouldExecuteInMonth reports whether an occurrence of s falls in the given
// calendar month. Only the month and year of the start date matter: the
// start month is always due and later occurrences land every Interval.Months()
// months after it.
func ShouldExecuteInMonth(s Schedule, month time.Month, year int) bool {
	step := s.Interval.Months()
	if step <= 0 {
		return false
	}

	diff := monthsDiff(s.StartDate.Month(), s.StartDate.Year(), month, year)
	return diff >= 0 && diff%step == 0
}

// FilterDueForMonth keeps the items that are due in the given month and have
// not ended as of asOf.
func FilterDueForMonth[T Scheduled](items []T, month time.Month, year int, asOf time.Time) []T {
	due := make([]T, 0, len(items))
	for _, item := range items {
		s := item.Schedule()
		if s.EndDate != nil && asOf.After(*s.EndDate) {
			continue
		}
		if ShouldExecuteInMonth(s, month, year) {
			due = append(due, item)
		}
	}
	return due
}

// NextExecutionDate advances from by the given number of calendar months.
// Day overflow follows time.AddDate (Jan 31 + 1 month is Mar 2 or 3).
func NextExecutionDate(from time.Time, months int) time.Time {
	return from.AddDate(0, months, 0)
}

// FirstExecutionDate seeds a new template's cursor: the start date when it is
// today or later, otherwise the first occurrence on or after today.
func FirstExecutionDate(s Schedule, today time.Time) time.Time {
	today = Midnight(today)
	if !s.StartDate.Before(today) || s.Interval.Months() <= 0 {
		return s.StartDate
	}

	step := s.Interval.Months()
	next := s.StartDate
	for i := 1; next.Before(today); i++ {
		// Always step from the start date so day overflow doesn't accumulate.
		next = s.StartDate.AddDate(0, i*step, 0)
	}
	return next
}

// UpcomingOccurrences lists up to n due months, as first-of-month dates, from
// the month containing from onwards. Occurrences after the end date are not
// returned.
func UpcomingOccurrences(s Schedule, from time.Time, n int) []time.Time {
	step := s.Interval.Months()
	if step <= 0 || n <= 0 {
		return nil
	}

	start := MonthOf(s.StartDate)
	offset := monthsDiff(start.Month(), start.Year(), from.Month(), from.Year())
	if offset < 0 {
		offset = 0
	}
	if rem := offset % step; rem != 0 {
		offset += step - rem
	}

	out := make([]time.Time, 0, n)
	for len(out) < n {
		occ := start.AddDate(0, offset, 0)
		if s.EndDate != nil && occ.After(*s.EndDate) {
			break
		}
		out = append(out, occ)
		offset += step
	}
	return out
}

// MonthStart returns midnight UTC on the first day of the month.
func MonthStart(month time.Month, year int) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthOf returns the first instant of the month containing t, in t's location.
func MonthOf(t time.Time) time.Time {
	return now.With(t).BeginningOfMonth()
}

// Midnight truncates t to the start of its day.
func Midnight(t time.Time) time.Time {
	return now.With(t).BeginningOfDay()
}

// ShiftMonth moves (month, year) by delta months, rolling the year as needed.
func ShiftMonth(month time.Month, year, delta int) (time.Month, int) {
	t := MonthStart(month, year).AddDate(0, delta, 0)
	return t.Month(), t.Year()
}

func monthsDiff(fromMonth time.Month, fromYear int, toMonth time.Month, toYear int) int {
	return 12*(toYear-fromYear) + int(toMonth) - int(fromMonth)
}
