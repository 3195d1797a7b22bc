package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"sportkeeper/internal/model"
	"sportkeeper/internal/schedule"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// parseDayRange reads optional YYYY-MM-DD bounds. to is inclusive, so the
// returned upper bound is the following midnight.
func parseDayRange(from, to string, loc *time.Location) (time.Time, time.Time, error) {
	var lo, hi time.Time
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return lo, hi, fmt.Errorf("--from must be YYYY-MM-DD, got %q", from)
		}
		lo = t
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return lo, hi, fmt.Errorf("--to must be YYYY-MM-DD, got %q", to)
		}
		hi = t.AddDate(0, 0, 1)
	}
	if !lo.IsZero() && !hi.IsZero() && !hi.After(lo) {
		return lo, hi, fmt.Errorf("--to is before --from")
	}
	return lo, hi, nil
}

// filterSlots keeps slots starting in [from, to); zero bounds are open.
// Slots with unparseable times are kept only when no bound is set.
func filterSlots(slots []model.Slot, from, to time.Time, loc *time.Location) []model.Slot {
	if from.IsZero() && to.IsZero() {
		return slots
	}
	out := make([]model.Slot, 0, len(slots))
	for _, s := range slots {
		start := s.Start(loc)
		if start.IsZero() {
			continue
		}
		if !from.IsZero() && start.Before(from) {
			continue
		}
		if !to.IsZero() && !start.Before(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func printSlots(w io.Writer, slots []model.Slot, loc *time.Location) {
	if len(slots) == 0 {
		fmt.Fprintln(w, "No slots")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tWHEN\tNAME\tBOOKED")
	for _, s := range slots {
		when := s.StartAt + " → " + s.EndAt
		start, end := s.Start(loc), s.End(loc)
		if !start.IsZero() && !end.IsZero() {
			when = schedule.FormatRange(start, end)
		}
		booked := fmt.Sprintf("%d/%d", s.ReservedCount, s.Capacity)
		if s.Full() {
			booked += " full"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, when, s.Name, booked)
	}
	_ = tw.Flush()
}

func printOccurrences(w io.Writer, occs []schedule.Interval) {
	for i, occ := range occs {
		fmt.Fprintf(w, "%3d  %s\n", i+1, schedule.FormatRange(occ.Start, occ.End))
	}
	fmt.Fprintf(w, "%d occurrences\n", len(occs))
}

func printUsers(w io.Writer, users []model.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tACTIVE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.DisplayName(), u.Email, u.Role, u.Active())
	}
	_ = tw.Flush()
}

func printActivities(w io.Writer, items []model.Activity) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No activities")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tCODE\tNAME\tACTIVE")
	for _, a := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", a.ID, a.Code, a.Name, a.Active)
	}
	_ = tw.Flush()
}

func printNotes(w io.Writer, notes []model.ProgressNote) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes")
		return
	}
	for _, n := range notes {
		title := n.Title
		if title == "" {
			title = "Note"
		}
		fmt.Fprintf(w, "%s  %s\n  %s\n", n.CreatedAt, title, strings.ReplaceAll(n.Comment, "\n", "\n  "))
	}
}

// renderMonth prints the 6x7 grid. Each cell shows the day number and the
// number of slots that day; days outside the month are bracketed.
func renderMonth(w io.Writer, anchor time.Time, slots []model.Slot, loc *time.Location) {
	grid := schedule.MonthMatrix(anchor)
	buckets := schedule.BucketByDay(slots, func(s model.Slot) time.Time { return s.Start(loc) })

	fmt.Fprintln(w, anchor.Format("January 2006"))
	fmt.Fprintln(w, " Mon    Tue    Wed    Thu    Fri    Sat    Sun")
	for _, week := range grid {
		cells := make([]string, 0, len(week))
		for _, day := range week {
			n := len(buckets[schedule.DayKey(day)])
			var cell string
			switch {
			case !schedule.InMonth(day, anchor):
				cell = fmt.Sprintf("(%2d)", day.Day())
			case n > 0:
				cell = fmt.Sprintf("%2d:%d", day.Day(), n)
			default:
				cell = fmt.Sprintf(" %2d ", day.Day())
			}
			cells = append(cells, fmt.Sprintf("%-6s", cell))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, " "), " "))
	}
}
