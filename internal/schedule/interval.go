package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LocalLayout is the wire format the remote API uses for slot endpoints:
// local wall-clock time without a zone suffix.
const LocalLayout = "2006-01-02T15:04:05"

// ErrInvalidInterval is returned when an interval cannot be parsed or does
// not end strictly after it starts.
var ErrInvalidInterval = errors.New("schedule: interval end must be after start")

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether both endpoints are set and End is strictly after Start.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

func (i Interval) Duration() time.Duration {
	if !i.Valid() {
		return 0
	}
	return i.End.Sub(i.Start)
}

// FormatLocal renders t in LocalLayout using t's own location.
func FormatLocal(t time.Time) string {
	return t.Format(LocalLayout)
}

// ParseLocal parses a local wall-clock string in loc. Accepted forms:
//
//	2006-01-02T15:04:05
//	2006-01-02 15:04:05
//	2006-01-02T15:04     (datetime-local input; seconds default to 00)
//	2006-01-02           (midnight)
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v := strings.Replace(strings.TrimSpace(s), " ", "T", 1)
	if v == "" {
		return time.Time{}, errors.New("schedule: empty local time")
	}

	for _, layout := range []string{LocalLayout, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schedule: unparseable local time %q", s)
}

// ParseInterval parses both endpoints with ParseLocal and validates ordering.
// All failures wrap ErrInvalidInterval.
func ParseInterval(start, end string, loc *time.Location) (Interval, error) {
	s, err := ParseLocal(start, loc)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: start: %v", ErrInvalidInterval, err)
	}
	e, err := ParseLocal(end, loc)
	if err != nil {
		return Interval{}, fmt.Errorf("%w: end: %v", ErrInvalidInterval, err)
	}
	iv := Interval{Start: s, End: e}
	if !iv.Valid() {
		return Interval{}, ErrInvalidInterval
	}
	return iv, nil
}

// FormatRange renders "2006-01-02 15:04 → 15:04" for listings.
func FormatRange(start, end time.Time) string {
	return start.Format("2006-01-02 15:04") + " → " + end.Format("15:04")
}
