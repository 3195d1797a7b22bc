package schedule

import (
	"sort"
	"time"
)

const (
	GridWeeks = 6
	GridDays  = 7
)

// MonthGrid is a Monday-first 6x7 block of dates covering a month.
type MonthGrid [GridWeeks][GridDays]time.Time

// MonthMatrix returns the 42 consecutive days starting on the Monday on or
// before the first of anchor's month. Every cell is midnight in anchor's
// location. The fixed size keeps the month view the same height whether the
// month spans four, five or six weeks.
func MonthMatrix(anchor time.Time) MonthGrid {
	loc := anchor.Location()
	y, m, _ := anchor.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	cursor := first.AddDate(0, 0, -(ISOWeekday(first.Weekday()) - 1))

	var grid MonthGrid
	for w := 0; w < GridWeeks; w++ {
		for d := 0; d < GridDays; d++ {
			grid[w][d] = cursor
			cursor = cursor.AddDate(0, 0, 1)
		}
	}
	return grid
}

// Days flattens the grid row by row.
func (g MonthGrid) Days() []time.Time {
	out := make([]time.Time, 0, GridWeeks*GridDays)
	for _, week := range g {
		out = append(out, week[:]...)
	}
	return out
}

// InMonth reports whether day falls in anchor's month (and year).
func InMonth(day, anchor time.Time) bool {
	dy, dm, _ := day.Date()
	ay, am, _ := anchor.Date()
	return dy == ay && dm == am
}

// ShiftMonth returns the first day of the month n months from anchor.
func ShiftMonth(anchor time.Time, n int) time.Time {
	y, m, _ := anchor.Date()
	return time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, anchor.Location())
}

// DayKey is the YYYY-MM-DD bucket key for t's local date.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// BucketByDay groups items by the local date of start(item) and sorts each
// bucket ascending by start. Items with a zero start are dropped.
func BucketByDay[T any](items []T, start func(T) time.Time) map[string][]T {
	buckets := make(map[string][]T)
	for _, it := range items {
		s := start(it)
		if s.IsZero() {
			continue
		}
		key := DayKey(s)
		buckets[key] = append(buckets[key], it)
	}
	for _, b := range buckets {
		sort.SliceStable(b, func(i, j int) bool {
			return start(b[i]).Before(start(b[j]))
		})
	}
	return buckets
}
