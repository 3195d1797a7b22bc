package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"sportkeeper/internal/model"
	"sportkeeper/internal/schedule"
)

const monthLayout = "2006-01"

//go:embed templates/calendar.html
var calendarHTML string

// mdRenderer escapes raw HTML in slot descriptions (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var calendarTmpl = template.Must(template.New("calendar").Funcs(template.FuncMap{
	"markdown": renderMarkdown,
}).Parse(calendarHTML))

func renderMarkdown(md string) template.HTML {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// slotDTO is the JSON/template view of a slot.
type slotDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	StartAt       string `json:"startAt"`
	EndAt         string `json:"endAt"`
	Label         string `json:"label"`
	Time          string `json:"time"`
	Capacity      int    `json:"capacity"`
	ReservedCount int    `json:"reservedCount"`
	Full          bool   `json:"full"`
}

func newSlotDTO(s model.Slot, loc *time.Location) slotDTO {
	dto := slotDTO{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		StartAt:       s.StartAt,
		EndAt:         s.EndAt,
		Capacity:      s.Capacity,
		ReservedCount: s.ReservedCount,
		Full:          s.Full(),
	}
	start, end := s.Start(loc), s.End(loc)
	if !start.IsZero() && !end.IsZero() {
		dto.Label = schedule.FormatRange(start, end)
		dto.Time = start.Format("15:04") + "–" + end.Format("15:04")
	}
	return dto
}

type dayCell struct {
	Date    string    `json:"date"`
	Day     int       `json:"day"`
	InMonth bool      `json:"inMonth"`
	Today   bool      `json:"today"`
	Slots   []slotDTO `json:"slots"`
}

// monthView is the 6x7 month grid with slots bucketed per day.
type monthView struct {
	Month    string      `json:"month"`
	Title    string      `json:"title"`
	Prev     string      `json:"prev"`
	Next     string      `json:"next"`
	Timezone string      `json:"timezone"`
	Weeks    [][]dayCell `json:"weeks"`
	Total    int         `json:"total"`

	// Page-only fields.
	Stale bool   `json:"-"`
	Error string `json:"-"`
}

var weekdayHeaders = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func (monthView) Weekdays() []string { return weekdayHeaders }

// parseMonth reads ?month=YYYY-MM; empty means the month containing now.
func parseMonth(v string, now time.Time, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	return time.ParseInLocation(monthLayout, v, loc)
}

func buildMonthView(slots []model.Slot, anchor, now time.Time, loc *time.Location) monthView {
	grid := schedule.MonthMatrix(anchor)
	buckets := schedule.BucketByDay(slots, func(s model.Slot) time.Time { return s.Start(loc) })
	today := schedule.DayKey(now.In(loc))

	view := monthView{
		Month:    anchor.Format(monthLayout),
		Title:    anchor.Format("January 2006"),
		Prev:     schedule.ShiftMonth(anchor, -1).Format(monthLayout),
		Next:     schedule.ShiftMonth(anchor, 1).Format(monthLayout),
		Timezone: loc.String(),
		Weeks:    make([][]dayCell, 0, schedule.GridWeeks),
	}

	for _, week := range grid {
		row := make([]dayCell, 0, schedule.GridDays)
		for _, day := range week {
			key := schedule.DayKey(day)
			cell := dayCell{
				Date:    key,
				Day:     day.Day(),
				InMonth: schedule.InMonth(day, anchor),
				Today:   key == today,
				Slots:   []slotDTO{},
			}
			for _, s := range buckets[key] {
				cell.Slots = append(cell.Slots, newSlotDTO(s, loc))
			}
			if cell.InMonth {
				view.Total += len(cell.Slots)
			}
			row = append(row, cell)
		}
		view.Weeks = append(view.Weeks, row)
	}
	return view
}
