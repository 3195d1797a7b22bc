package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sportkeeper/internal/access"
	"sportkeeper/internal/api"
	"sportkeeper/internal/form"
	"sportkeeper/internal/ics"
	appLog "sportkeeper/internal/log"
	"sportkeeper/internal/schedule"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type slotsResponse struct {
	Slots     []slotDTO `json:"slots"`
	FromCache bool      `json:"fromCache"`
	Fallback  bool      `json:"fallback"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	listing, err := s.currentListing(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	resp := slotsResponse{
		Slots:     make([]slotDTO, 0, len(listing.Slots)),
		FromCache: listing.FromCache,
		Fallback:  listing.Fallback,
		UpdatedAt: listing.UpdatedAt,
	}
	for _, sl := range listing.Slots {
		resp.Slots = append(resp.Slots, newSlotDTO(sl, s.loc))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendar returns the month grid for ?month=YYYY-MM.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	anchor, err := parseMonth(r.URL.Query().Get("month"), s.now(), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}
	listing, err := s.currentListing(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildMonthView(listing.Slots, anchor, s.now(), s.loc))
}

func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	anchor, err := parseMonth(r.URL.Query().Get("month"), s.now(), s.loc)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return
	}

	listing, lerr := s.currentListing(r.Context())
	view := buildMonthView(listing.Slots, anchor, s.now(), s.loc)
	view.Stale = listing.Fallback
	if lerr != nil {
		appLog.Error("calendar page: slot listing unavailable", lerr)
		view.Error = lerr.Error()
	}

	var buf bytes.Buffer
	if err := calendarTmpl.Execute(&buf, view); err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "failed to render calendar", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	listing, err := s.currentListing(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	feed, skipped := ics.ExportSlots(listing.Slots, s.loc, ics.ExportOptions{Name: "SportKeeper"})
	if skipped > 0 {
		appLog.Info("calendar.ics skipped malformed slots", "skipped", skipped)
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="sportkeeper.ics"`)
	_, _ = w.Write([]byte(feed))
}

type occurrenceDTO struct {
	StartAt string `json:"startAt"`
	EndAt   string `json:"endAt"`
	Label   string `json:"label"`
}

type previewResponse struct {
	Count       int             `json:"count"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

// handlePreview expands a slot form without submitting anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	f, ok := s.decodeSlotForm(w, r)
	if !ok {
		return
	}
	occs, err := f.Occurrences(s.loc, s.cfg.Recurrence.HorizonDays)
	if err != nil {
		writeFormError(w, err)
		return
	}
	resp := previewResponse{Count: len(occs), Occurrences: make([]occurrenceDTO, 0, len(occs))}
	for _, occ := range occs {
		resp.Occurrences = append(resp.Occurrences, occurrenceDTO{
			StartAt: schedule.FormatLocal(occ.Start),
			EndAt:   schedule.FormatLocal(occ.End),
			Label:   schedule.FormatRange(occ.Start, occ.End),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type batchResponse struct {
	Requested int       `json:"requested"`
	Created   int       `json:"created"`
	Slots     []slotDTO `json:"slots"`
	Error     string    `json:"error,omitempty"`
	FailedAt  string    `json:"failedAt,omitempty"`
}

// handleBatchCreate expands the form and creates one slot per occurrence.
// Slots created before a failure stay created; the response says how many.
func (s *Server) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	f, ok := s.decodeSlotForm(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	activities, err := s.client.ListActivities(ctx)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	tmpl, occs, err := f.Prepare(s.loc, s.cfg.Recurrence.HorizonDays, activities)
	if err != nil {
		writeFormError(w, err)
		return
	}

	res, err := s.client.CreateSlots(ctx, tmpl, occs)
	if len(res.Created) > 0 {
		s.dropListing()
	}

	resp := batchResponse{
		Requested: res.Requested,
		Created:   len(res.Created),
		Slots:     make([]slotDTO, 0, len(res.Created)),
	}
	for _, sl := range res.Created {
		resp.Slots = append(resp.Slots, newSlotDTO(sl, s.loc))
	}

	if err != nil {
		resp.Error = err.Error()
		var berr *api.BatchError
		if errors.As(err, &berr) {
			resp.FailedAt = schedule.FormatLocal(berr.Interval.Start)
		}
		writeJSON(w, upstreamStatus(err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type capacityRequest struct {
	Capacity int `json:"capacity"`
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Capacity < 1 {
		writeError(w, http.StatusUnprocessableEntity, "capacity must be at least 1")
		return
	}
	if err := s.client.UpdateSlotCapacity(r.Context(), id, req.Capacity); err != nil {
		writeUpstreamError(w, err)
		return
	}
	s.dropListing()
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "capacity": req.Capacity})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.client.DeleteSlot(r.Context(), id); err != nil {
		writeUpstreamError(w, err)
		return
	}
	s.dropListing()
	w.WriteHeader(http.StatusNoContent)
}

// decodeSlotForm reads a SlotForm body and fills console defaults.
func (s *Server) decodeSlotForm(w http.ResponseWriter, r *http.Request) (form.SlotForm, bool) {
	var f form.SlotForm
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return f, false
	}
	f.Normalize()
	if f.Capacity == 0 {
		f.Capacity = s.cfg.SlotDefaults.Capacity
	}
	return f, true
}

func writeFormError(w http.ResponseWriter, err error) {
	var verr *form.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Fields: verr.Fields})
	case errors.Is(err, form.ErrNoOccurrences),
		errors.Is(err, form.ErrNoCoach),
		errors.Is(err, form.ErrNoActivity),
		errors.Is(err, form.ErrActivityNotFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// upstreamStatus passes through the API's client errors and reports
// everything else as a bad gateway.
func upstreamStatus(err error) int {
	if errors.Is(err, access.ErrForbidden) {
		return http.StatusForbidden
	}
	if st := api.StatusOf(err); st >= 400 && st < 500 {
		return st
	}
	return http.StatusBadGateway
}

func writeUpstreamError(w http.ResponseWriter, err error) {
	appLog.Error("upstream request failed", err)
	writeError(w, upstreamStatus(err), strings.TrimSpace(err.Error()))
}
