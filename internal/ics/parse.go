package ics

import (
	"errors"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "sportkeeper/internal/log"
	"sportkeeper/internal/schedule"
)

// ImportedEvent is a VEVENT reduced to what slot creation needs.
type ImportedEvent struct {
	UID         string
	Summary     string
	Description string
	Interval    schedule.Interval
}

// ParseEvents reads VEVENTs from an iCalendar stream. Times are converted
// into loc so they can be sent as local wall-clock strings. Events without
// a usable start/end are skipped and logged; recurrence rules are not
// expanded (each VEVENT becomes one interval).
func ParseEvents(r io.Reader, loc *time.Location) ([]ImportedEvent, error) {
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	events := make([]ImportedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent skipped", perr, "uid", ev.UID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ImportedEvent, error) {
	var out ImportedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}

	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt != nil && !strings.Contains(dt.Value, "T") {
		return out, errors.New("all-day events cannot become slots")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, err
	}

	out.Interval = schedule.Interval{Start: start.In(loc), End: end.In(loc)}
	if !out.Interval.Valid() {
		return out, schedule.ErrInvalidInterval
	}
	return out, nil
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
