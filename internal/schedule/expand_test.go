package schedule

import (
	"testing"
	"time"
)

var cet = time.FixedZone("CET", 1*60*60)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, cet)
}

func TestExpandNoRepeatNoSplitReturnsBase(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 18, 0), End: at(2026, time.October, 19, 19, 30)}
	got := Expand(base, Rule{})
	if len(got) != 1 || !got[0].Start.Equal(base.Start) || !got[0].End.Equal(base.End) {
		t.Fatalf("Expand = %v, want [%v]", got, base)
	}
}

func TestExpandRejectsInvalidBase(t *testing.T) {
	t.Parallel()

	start := at(2026, time.October, 19, 18, 0)
	cases := map[string]Interval{
		"equal":      {Start: start, End: start},
		"reversed":   {Start: start, End: start.Add(-time.Minute)},
		"zero start": {End: start},
		"zero end":   {Start: start},
	}
	for name, base := range cases {
		for _, freq := range []Frequency{FrequencyNone, FrequencyDaily, FrequencyWeekly} {
			got := Expand(base, Rule{Frequency: freq, Weekdays: []int{1, 2, 3, 4, 5, 6, 7}, SplitMinutes: 15})
			if len(got) != 0 {
				t.Fatalf("%s/%s: got %d occurrences, want 0", name, freq, len(got))
			}
		}
	}
}

func TestExpandSplitCoversIntervalExactly(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 9, 0), End: at(2026, time.October, 19, 11, 50)}
	for _, k := range []int{1, 7, 30, 45, 60, 170, 500} {
		got := Expand(base, Rule{SplitMinutes: k})
		if len(got) == 0 {
			t.Fatalf("k=%d: no chunks", k)
		}
		if !got[0].Start.Equal(base.Start) || !got[len(got)-1].End.Equal(base.End) {
			t.Fatalf("k=%d: chunks do not span base: %v", k, got)
		}
		for i, iv := range got {
			if i > 0 && !iv.Start.Equal(got[i-1].End) {
				t.Fatalf("k=%d: gap or overlap at %d", k, i)
			}
			if i < len(got)-1 && iv.Duration() != time.Duration(k)*time.Minute {
				t.Fatalf("k=%d: chunk %d lasts %v", k, i, iv.Duration())
			}
			if iv.Duration() <= 0 || iv.Duration() > time.Duration(k)*time.Minute {
				t.Fatalf("k=%d: chunk %d has bad duration %v", k, i, iv.Duration())
			}
		}
	}
}

func TestExpandNonPositiveSplitIsNoSplit(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 9, 0), End: at(2026, time.October, 19, 12, 0)}
	for _, k := range []int{0, -30} {
		if got := Expand(base, Rule{SplitMinutes: k}); len(got) != 1 {
			t.Fatalf("split %d: got %d chunks, want 1", k, len(got))
		}
	}
}

func TestExpandDailyUntilInclusive(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 18, 0), End: at(2026, time.October, 19, 19, 0)}
	got := Expand(base, Rule{Frequency: FrequencyDaily, Until: base.Start.AddDate(0, 0, 2)})
	if len(got) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(got))
	}
	for i, iv := range got {
		wantStart := base.Start.AddDate(0, 0, i)
		if !iv.Start.Equal(wantStart) || !iv.End.Equal(wantStart.Add(time.Hour)) {
			t.Fatalf("occurrence %d = %v, want start %v", i, iv, wantStart)
		}
	}
}

func TestExpandWeeklySelectedWeekdays(t *testing.T) {
	t.Parallel()

	// 2026-10-19 is a Monday.
	base := Interval{Start: at(2026, time.October, 19, 7, 30), End: at(2026, time.October, 19, 8, 30)}
	rule := Rule{Frequency: FrequencyWeekly, Weekdays: []int{1, 3}, Until: base.Start.AddDate(0, 0, 13)}

	got := Expand(base, rule)
	want := []time.Time{
		at(2026, time.October, 19, 7, 30),
		at(2026, time.October, 21, 7, 30),
		at(2026, time.October, 26, 7, 30),
		at(2026, time.October, 28, 7, 30),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d occurrences, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) {
			t.Fatalf("occurrence %d starts %v, want %v", i, got[i].Start, want[i])
		}
		if i > 0 && !got[i].Start.After(got[i-1].Start) {
			t.Fatalf("occurrences not ascending at %d", i)
		}
	}
}

func TestExpandWeeklyEmptySelection(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 7, 30), End: at(2026, time.October, 19, 8, 30)}
	for _, days := range [][]int{nil, {}, {0, 8, -1}} {
		if got := Expand(base, Rule{Frequency: FrequencyWeekly, Weekdays: days}); len(got) != 0 {
			t.Fatalf("weekdays %v: got %d occurrences, want 0", days, len(got))
		}
	}
}

func TestExpandDefaultAndOverriddenHorizon(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 10, 0), End: at(2026, time.October, 19, 11, 0)}

	got := Expand(base, Rule{Frequency: FrequencyDaily})
	if len(got) != DefaultHorizonDays+1 {
		t.Fatalf("default horizon: got %d, want %d", len(got), DefaultHorizonDays+1)
	}
	last := got[len(got)-1].Start
	if !last.Equal(base.Start.AddDate(0, 0, DefaultHorizonDays)) {
		t.Fatalf("last occurrence %v", last)
	}

	if got := Expand(base, Rule{Frequency: FrequencyDaily, HorizonDays: 6}); len(got) != 7 {
		t.Fatalf("horizon 6: got %d, want 7", len(got))
	}

	until := base.Start.AddDate(0, 0, 3)
	if got := Expand(base, Rule{Frequency: FrequencyDaily, HorizonDays: 6, Until: until}); len(got) != 4 {
		t.Fatalf("until wins over horizon: got %d, want 4", len(got))
	}
}

func TestExpandUntilBeforeStart(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 10, 0), End: at(2026, time.October, 19, 11, 0)}
	if got := Expand(base, Rule{Frequency: FrequencyDaily, Until: base.Start.AddDate(0, 0, -1)}); len(got) != 0 {
		t.Fatalf("got %d occurrences, want 0", len(got))
	}
}

func TestExpandDailyWithSplitKeepsOrder(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 17, 0), End: at(2026, time.October, 19, 18, 30)}
	got := Expand(base, Rule{Frequency: FrequencyDaily, Until: base.Start.AddDate(0, 0, 1), SplitMinutes: 30})
	if len(got) != 6 {
		t.Fatalf("got %d chunks, want 6", len(got))
	}
	wantStarts := []time.Time{
		at(2026, time.October, 19, 17, 0),
		at(2026, time.October, 19, 17, 30),
		at(2026, time.October, 19, 18, 0),
		at(2026, time.October, 20, 17, 0),
		at(2026, time.October, 20, 17, 30),
		at(2026, time.October, 20, 18, 0),
	}
	for i, w := range wantStarts {
		if !got[i].Start.Equal(w) {
			t.Fatalf("chunk %d starts %v, want %v", i, got[i].Start, w)
		}
	}
}

func TestExpandUsesTimeOfDayOfBaseEnd(t *testing.T) {
	t.Parallel()

	// The base end date is ignored for recurring rules; only its clock is used.
	base := Interval{Start: at(2026, time.October, 19, 9, 0), End: at(2026, time.October, 21, 10, 15)}
	got := Expand(base, Rule{Frequency: FrequencyDaily, Until: base.Start.AddDate(0, 0, 1)})
	if len(got) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(got))
	}
	if !got[1].End.Equal(at(2026, time.October, 20, 10, 15)) {
		t.Fatalf("second occurrence ends %v", got[1].End)
	}
}

func TestExpandOvernightBaseSkipsDays(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 22, 0), End: at(2026, time.October, 20, 1, 0)}
	if got := Expand(base, Rule{}); len(got) != 1 {
		t.Fatalf("non-recurring overnight: got %d, want 1", len(got))
	}
	if got := Expand(base, Rule{Frequency: FrequencyDaily, Until: base.Start.AddDate(0, 0, 3)}); len(got) != 0 {
		t.Fatalf("recurring overnight: got %d, want 0", len(got))
	}
}

func TestExpandAcrossDSTKeepsWallClock(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks go back on 2026-10-25.
	start := time.Date(2026, time.October, 24, 19, 0, 0, 0, loc)
	base := Interval{Start: start, End: start.Add(time.Hour)}
	got := Expand(base, Rule{Frequency: FrequencyDaily, Until: start.AddDate(0, 0, 2)})
	if len(got) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(got))
	}
	for _, iv := range got {
		if iv.Start.Hour() != 19 || iv.End.Hour() != 20 {
			t.Fatalf("wall clock drifted: %v", iv)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	cases := map[string]Frequency{"": FrequencyNone, "none": FrequencyNone, "Daily": FrequencyDaily, "WEEKLY": FrequencyWeekly}
	for in, want := range cases {
		got, err := ParseFrequency(in)
		if err != nil || got != want {
			t.Fatalf("ParseFrequency(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFrequency("MONTHLY"); err == nil {
		t.Fatalf("expected error for MONTHLY")
	}
}

func TestISOWeekday(t *testing.T) {
	t.Parallel()

	if ISOWeekday(time.Monday) != 1 || ISOWeekday(time.Sunday) != 7 || ISOWeekday(time.Wednesday) != 3 {
		t.Fatalf("ISOWeekday mapping wrong")
	}
}

func TestExpandSeriesStopsAtOccurrenceCap(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 18, 0), End: at(2026, time.October, 19, 19, 0)}
	rule := Rule{
		Frequency:    FrequencyDaily,
		Until:        time.Date(9999, time.December, 31, 0, 0, 0, 0, cet),
		SplitMinutes: 1,
	}
	res := ExpandSeries(base, rule)
	if !res.Truncated {
		t.Fatalf("expected truncation")
	}
	if len(res.Intervals) != DefaultMaxOccurrences {
		t.Fatalf("got %d intervals, want %d", len(res.Intervals), DefaultMaxOccurrences)
	}
	last := res.Intervals[len(res.Intervals)-1]
	if !last.Start.Before(last.End) || last.Duration() != time.Minute {
		t.Fatalf("last interval %v", last)
	}
	if got := Expand(base, rule); len(got) != DefaultMaxOccurrences {
		t.Fatalf("Expand returned %d intervals", len(got))
	}
}

func TestExpandSeriesCustomCap(t *testing.T) {
	t.Parallel()

	base := Interval{Start: at(2026, time.October, 19, 9, 0), End: at(2026, time.October, 19, 11, 0)}
	until := at(2026, time.October, 23, 0, 0)

	cases := []struct {
		name      string
		rule      Rule
		want      int
		truncated bool
	}{
		{"exact fit", Rule{Frequency: FrequencyDaily, Until: until, MaxOccurrences: 5}, 5, false},
		{"one over", Rule{Frequency: FrequencyDaily, Until: until, MaxOccurrences: 4}, 4, true},
		{"mid-day cut", Rule{Frequency: FrequencyDaily, Until: until, SplitMinutes: 60, MaxOccurrences: 3}, 3, true},
		{"single split", Rule{SplitMinutes: 10, MaxOccurrences: 6}, 6, true},
		{"single split fits", Rule{SplitMinutes: 10, MaxOccurrences: 12}, 12, false},
	}
	for _, tc := range cases {
		res := ExpandSeries(base, tc.rule)
		if len(res.Intervals) != tc.want || res.Truncated != tc.truncated {
			t.Fatalf("%s: got %d intervals truncated=%v, want %d truncated=%v",
				tc.name, len(res.Intervals), res.Truncated, tc.want, tc.truncated)
		}
	}
}
