package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"sportkeeper/internal/model"
)

// slotNamespace seeds deterministic UIDs for slots that arrive without an id.
var slotNamespace = uuid.MustParse("5d1c7c0e-8a4b-4b5e-9a57-3f0f3f4f6a10")

// ExportOptions controls calendar-level metadata.
type ExportOptions struct {
	// Name is shown by calendar clients (X-WR-CALNAME).
	Name string
	// Domain is appended to slot ids to form UIDs ("<id>@<domain>").
	Domain string
	// Now stamps DTSTAMP; zero means time.Now().
	Now time.Time
}

// ExportSlots renders slots as a published iCalendar feed. Slot times are
// local wall-clock strings interpreted in loc. Slots whose times cannot be
// parsed or do not form a valid interval are skipped; the count of skipped
// slots is returned alongside the feed.
func ExportSlots(slots []model.Slot, loc *time.Location, opts ExportOptions) (string, int) {
	if loc == nil {
		loc = time.Local
	}
	if opts.Name == "" {
		opts.Name = "SportKeeper"
	}
	if opts.Domain == "" {
		opts.Domain = "sportkeeper"
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//SportKeeper//Slots//EN")
	cal.SetXWRCalName(opts.Name)

	skipped := 0
	for _, s := range slots {
		start, end := s.Start(loc), s.End(loc)
		if start.IsZero() || end.IsZero() || !end.After(start) {
			skipped++
			continue
		}

		ev := cal.AddEvent(slotUID(s, opts.Domain))
		ev.SetDtStampTime(now)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(summaryFor(s))
		ev.SetDescription(descriptionFor(s))
	}

	return cal.Serialize(), skipped
}

func slotUID(s model.Slot, domain string) string {
	id := s.ID
	if id == "" {
		id = uuid.NewSHA1(slotNamespace, []byte(s.StartAt+"|"+s.EndAt+"|"+s.Name)).String()
	}
	return id + "@" + domain
}

func summaryFor(s model.Slot) string {
	name := s.Name
	if name == "" {
		name = "Class"
	}
	if s.Full() {
		return name + " (full)"
	}
	return name
}

func descriptionFor(s model.Slot) string {
	seats := fmt.Sprintf("%d/%d booked", s.ReservedCount, s.Capacity)
	if s.Description == "" {
		return seats
	}
	return s.Description + "\n\n" + seats
}
