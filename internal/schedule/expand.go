package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	appLog "sportkeeper/internal/log"
)

// DefaultHorizonDays is how far a recurrence runs past the base start when
// the rule has no Until date.
const DefaultHorizonDays = 60

// DefaultMaxOccurrences caps a single expansion when Rule.MaxOccurrences is
// not set.
const DefaultMaxOccurrences = 5000

// Frequency is the repeat mode of a Rule.
type Frequency int

const (
	FrequencyNone Frequency = iota
	FrequencyDaily
	FrequencyWeekly
)

func (f Frequency) String() string {
	switch f {
	case FrequencyNone:
		return "NONE"
	case FrequencyDaily:
		return "DAILY"
	case FrequencyWeekly:
		return "WEEKLY"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// ParseFrequency accepts NONE, DAILY, WEEKLY (case-insensitive). Empty is NONE.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return FrequencyNone, nil
	case "DAILY":
		return FrequencyDaily, nil
	case "WEEKLY":
		return FrequencyWeekly, nil
	default:
		return FrequencyNone, fmt.Errorf("schedule: unknown frequency %q", s)
	}
}

// Rule describes how a base interval repeats and whether each resulting
// interval is cut into fixed-size chunks.
type Rule struct {
	Frequency Frequency

	// Until is the last day (inclusive) of the recurrence. Only its date is
	// consulted. Zero means "HorizonDays after the base start".
	Until time.Time

	// Weekdays selects ISO weekdays (1=Monday .. 7=Sunday) for weekly rules.
	Weekdays []int

	// SplitMinutes cuts every interval into consecutive chunks of this
	// length; the last chunk may be shorter. Zero or negative disables it.
	SplitMinutes int

	// HorizonDays overrides DefaultHorizonDays when positive.
	HorizonDays int

	// MaxOccurrences caps the number of intervals produced. If zero,
	// DefaultMaxOccurrences is used.
	MaxOccurrences int
}

// MaxOccurrencesOrDefault returns the effective occurrence cap.
func (r Rule) MaxOccurrencesOrDefault() int {
	if r.MaxOccurrences > 0 {
		return r.MaxOccurrences
	}
	return DefaultMaxOccurrences
}

// ExpandResult wraps the expanded intervals and whether the occurrence cap
// cut the series short.
type ExpandResult struct {
	Intervals []Interval
	Truncated bool
}

// Expand turns a base interval and a rule into the ordered list of concrete
// intervals to submit. An invalid base (unset endpoints, End <= Start)
// yields an empty result. Output stops at the rule's occurrence cap; use
// ExpandSeries to learn whether that happened.
func Expand(base Interval, rule Rule) []Interval {
	return ExpandSeries(base, rule).Intervals
}

// ExpandSeries is Expand with truncation reporting.
//
// Recurring rules walk every calendar day from the base start's date through
// the closing date inclusive. Each selected day takes the base start's and
// end's time of day. Output is ascending by start.
func ExpandSeries(base Interval, rule Rule) ExpandResult {
	if !base.Valid() {
		return ExpandResult{}
	}
	limit := rule.MaxOccurrencesOrDefault()

	switch rule.Frequency {
	case FrequencyNone:
		out, hitCap := splitDay(base.Start, base.End, rule.SplitMinutes, limit)
		if hitCap {
			logTruncated(rule, limit)
		}
		return ExpandResult{Intervals: out, Truncated: hitCap}
	case FrequencyDaily, FrequencyWeekly:
	default:
		return ExpandResult{}
	}

	next, err := selectedDays(base.Start, rule)
	if err != nil {
		appLog.Error("expand: recurrence rule rejected", err,
			"frequency", rule.Frequency.String(),
			"weekdays", rule.Weekdays,
		)
		return ExpandResult{}
	}
	if next == nil {
		return ExpandResult{}
	}

	var out []Interval
	hitCap := false
	for day, ok := next(); ok; day, ok = next() {
		start := combineDateTime(day, base.Start)
		end := combineDateTime(day, base.End)
		chunks, capped := splitDay(start, end, rule.SplitMinutes, limit-len(out))
		out = append(out, chunks...)
		if capped {
			hitCap = true
			break
		}
	}
	if hitCap {
		logTruncated(rule, limit)
	}
	return ExpandResult{Intervals: out, Truncated: hitCap}
}

func logTruncated(rule Rule, limit int) {
	appLog.Info("expand: occurrence cap reached, series truncated",
		"frequency", rule.Frequency.String(),
		"split_minutes", rule.SplitMinutes,
		"max_occurrences", limit,
	)
}

// closingDate returns midnight of the last day the recurrence may touch.
func closingDate(baseStart time.Time, rule Rule) time.Time {
	loc := baseStart.Location()
	if !rule.Until.IsZero() {
		y, m, d := rule.Until.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	horizon := rule.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	y, m, d := baseStart.AddDate(0, 0, horizon).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// selectedDays iterates midnights of every day the rule selects. A nil
// iterator means no day is selected.
func selectedDays(baseStart time.Time, rule Rule) (rrule.Next, error) {
	loc := baseStart.Location()
	y, m, d := baseStart.Date()
	first := time.Date(y, m, d, 0, 0, 0, 0, loc)

	last := closingDate(baseStart, rule)
	if last.Before(first) {
		return nil, nil
	}

	opt := rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   last.AddDate(0, 0, 1).Add(-time.Second),
	}

	if rule.Frequency == FrequencyWeekly {
		byDay := isoWeekdays(rule.Weekdays)
		if len(byDay) == 0 {
			return nil, nil
		}
		opt.Byweekday = byDay
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, err
	}
	return r.Iterator(), nil
}

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

func isoWeekdays(days []int) []rrule.Weekday {
	seen := [7]bool{}
	out := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		if d < 1 || d > 7 || seen[d-1] {
			continue
		}
		seen[d-1] = true
		out = append(out, rruleWeekdays[d-1])
	}
	return out
}

// ISOWeekday maps time.Weekday to 1=Monday .. 7=Sunday.
func ISOWeekday(w time.Weekday) int {
	return (int(w)+6)%7 + 1
}

func combineDateTime(day, clock time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location())
}

// splitDay yields [start, end) unchanged when minutes <= 0, otherwise
// consecutive chunks of minutes with the final chunk clamped to end. At most
// limit chunks are produced; the bool reports whether more were due.
func splitDay(start, end time.Time, minutes, limit int) ([]Interval, bool) {
	if !end.After(start) {
		return nil, false
	}
	if limit <= 0 {
		return nil, true
	}
	if minutes <= 0 {
		return []Interval{{Start: start, End: end}}, false
	}

	step := time.Duration(minutes) * time.Minute
	if step <= 0 || step >= end.Sub(start) {
		return []Interval{{Start: start, End: end}}, false
	}
	size := int64(end.Sub(start)/step) + 1
	if size > int64(limit) {
		size = int64(limit)
	}
	out := make([]Interval, 0, size)
	for cursor := start; cursor.Before(end); {
		if len(out) == limit {
			return out, true
		}
		next := cursor.Add(step)
		if next.After(end) {
			next = end
		}
		out = append(out, Interval{Start: cursor, End: next})
		cursor = next
	}
	return out, false
}
