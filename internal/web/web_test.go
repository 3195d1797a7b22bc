package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"sportkeeper/internal/api"
	"sportkeeper/internal/config"
	"sportkeeper/internal/model"
)

type fakeAPI struct {
	srv       *httptest.Server
	listCalls atomic.Int32

	mu      sync.Mutex
	created []map[string]any
	failAt  int // 1-based POST index that fails with 500; 0 disables
	deleted []string
}

func newFakeAPI(t *testing.T, slots []model.Slot) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/slots", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		writeJSON(w, http.StatusOK, slots)
	})
	mux.HandleFunc("GET /api/activities", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []model.Activity{{ID: "a1", Code: "BJJ", Name: "BJJ", Active: true}})
	})
	mux.HandleFunc("POST /api/admin/slots", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failAt > 0 && len(f.created)+1 == f.failAt {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
			return
		}
		f.created = append(f.created, body)
		writeJSON(w, http.StatusCreated, model.Slot{ID: "new", StartAt: body["startAt"].(string), EndAt: body["endAt"].(string), Capacity: 10})
	})
	mux.HandleFunc("PUT /api/admin/slots/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "slot not found"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /api/admin/slots/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

var sampleSlots = []model.Slot{
	{ID: "s2", StartAt: "2026-10-19T19:00:00", EndAt: "2026-10-19T20:00:00", Capacity: 10, ReservedCount: 10, Name: "Open mat", Description: "**Bring** water <script>x</script>"},
	{ID: "s1", StartAt: "2026-10-19T07:00:00", EndAt: "2026-10-19T08:00:00", Capacity: 10, ReservedCount: 3, Name: "Morning"},
	{ID: "s3", StartAt: "2026-11-02T07:00:00", EndAt: "2026-11-02T08:00:00", Capacity: 5, Name: "Next month"},
}

func newTestServer(t *testing.T, role model.Role, up *fakeAPI, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()
	cfg.APIURL = up.srv.URL
	if mutate != nil {
		mutate(cfg)
	}
	cfg.Normalize()
	client := api.New(cfg.APIURL).WithToken("tok")
	now := func() time.Time { return time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC) }
	return NewServer(cfg, client, Options{Role: role, Now: now})
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBasicAuthSparesHealth(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	s := newTestServer(t, model.RoleAdmin, up, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", PasswordHash: string(hash)}
	})
	h := s.Handler()

	if rec := do(t, h, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("/health = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/slots", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("/api/slots without creds = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/slots", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with creds = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("pw")) != nil {
		t.Fatalf("hash does not verify")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatalf("empty password accepted")
	}
}

func TestCalendarGrid(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	h := newTestServer(t, model.RoleMember, up, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/calendar?month=2026-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var view monthView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Weeks) != 6 || len(view.Weeks[0]) != 7 {
		t.Fatalf("grid shape %dx%d", len(view.Weeks), len(view.Weeks[0]))
	}
	if view.Weeks[0][0].Date != "2026-09-28" || view.Weeks[0][0].InMonth {
		t.Fatalf("first cell = %+v", view.Weeks[0][0])
	}
	if view.Prev != "2026-09" || view.Next != "2026-11" || view.Total != 2 {
		t.Fatalf("view = %s prev=%s next=%s total=%d", view.Month, view.Prev, view.Next, view.Total)
	}

	// 2026-10-19 is the Monday of the fourth row.
	cell := view.Weeks[3][0]
	if cell.Date != "2026-10-19" || !cell.Today {
		t.Fatalf("cell = %+v", cell)
	}
	if len(cell.Slots) != 2 || cell.Slots[0].ID != "s1" || !cell.Slots[1].Full {
		t.Fatalf("bucket = %+v", cell.Slots)
	}

	// November 2 sits in the trailing out-of-month row.
	last := view.Weeks[5][0]
	if last.Date != "2026-11-02" || last.InMonth || len(last.Slots) != 1 {
		t.Fatalf("trailing cell = %+v", last)
	}

	if rec := do(t, h, http.MethodGet, "/api/calendar?month=oct", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad month = %d", rec.Code)
	}
}

func TestListingCachedInMemory(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	srv := newTestServer(t, model.RoleAdmin, up, nil)
	h := srv.Handler()

	for i := 0; i < 3; i++ {
		if rec := do(t, h, http.MethodGet, "/api/slots", nil); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if n := up.listCalls.Load(); n != 1 {
		t.Fatalf("upstream list calls = %d, want 1", n)
	}

	if entries, _ := os.ReadDir(srv.cfg.CacheDir); len(entries) != 1 {
		t.Fatalf("disk cache entries = %d, want 1", len(entries))
	}
	if rec := do(t, h, http.MethodDelete, "/api/slots/s1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d: %s", rec.Code, rec.Body.String())
	}
	if entries, _ := os.ReadDir(srv.cfg.CacheDir); len(entries) != 0 {
		t.Fatalf("disk cache survived delete: %d entries", len(entries))
	}
	do(t, h, http.MethodGet, "/api/slots", nil)
	if n := up.listCalls.Load(); n != 2 {
		t.Fatalf("upstream list calls after delete = %d, want 2", n)
	}
	if len(up.deleted) != 1 || up.deleted[0] != "s1" {
		t.Fatalf("deleted = %v", up.deleted)
	}
}

func TestCalendarPage(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	h := newTestServer(t, model.RoleMember, up, nil).Handler()

	rec := do(t, h, http.MethodGet, "/calendar", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`data-ready="true"`, "October 2026", "<strong>Bring</strong>", `data-slot-id="s1"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q", want)
		}
	}
	if strings.Contains(body, "<script>x</script>") {
		t.Fatalf("raw HTML from description was not escaped")
	}
}

func TestCalendarBannerOnlyWhenAPIFails(t *testing.T) {
	var (
		down        atomic.Bool
		notModified atomic.Int32
	)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/slots", func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		writeJSON(w, http.StatusOK, sampleSlots)
	})
	up := httptest.NewServer(mux)
	t.Cleanup(up.Close)

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.CacheDir = t.TempDir()
	cfg.APIURL = up.URL
	cfg.Normalize()
	clock := time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	srv := NewServer(cfg, api.New(cfg.APIURL).WithToken("tok"), Options{
		Role: model.RoleMember,
		Now:  func() time.Time { return clock },
	})
	h := srv.Handler()

	const banner = "the API is unreachable"
	page := func() string {
		t.Helper()
		rec := do(t, h, http.MethodGet, "/calendar", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		return rec.Body.String()
	}

	if body := page(); strings.Contains(body, banner) {
		t.Fatalf("banner on fresh listing")
	}

	clock = clock.Add(time.Minute)
	body := page()
	if notModified.Load() != 1 {
		t.Fatalf("expected a 304 revalidation, got %d", notModified.Load())
	}
	if strings.Contains(body, banner) || !strings.Contains(body, `data-slot-id="s1"`) {
		t.Fatalf("revalidated page wrong: banner=%v", strings.Contains(body, banner))
	}

	down.Store(true)
	clock = clock.Add(time.Minute)
	body = page()
	if !strings.Contains(body, banner) || !strings.Contains(body, `data-slot-id="s1"`) {
		t.Fatalf("fallback page should show cached slots with the banner")
	}
}

func TestCalendarICS(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	h := newTestServer(t, model.RoleMember, up, nil).Handler()

	rec := do(t, h, http.MethodGet, "/calendar.ics", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("status=%d type=%q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if c := strings.Count(rec.Body.String(), "BEGIN:VEVENT"); c != 3 {
		t.Fatalf("VEVENT count = %d", c)
	}
}

func TestPreviewExpandsWithoutSubmitting(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	h := newTestServer(t, model.RoleMember, up, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/occurrences/preview", map[string]any{
		"startAt":      "2026-10-19T18:00",
		"endAt":        "2026-10-19T20:00",
		"repeat":       "weekly",
		"weekdays":     []int{2, 4},
		"until":        "2026-10-25",
		"splitMinutes": 60,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp previewResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	// Tue 20 and Thu 22, two one-hour chunks each.
	if resp.Count != 4 || resp.Occurrences[0].StartAt != "2026-10-20T18:00:00" || resp.Occurrences[3].EndAt != "2026-10-22T20:00:00" {
		t.Fatalf("preview = %+v", resp)
	}
	if len(up.created) != 0 {
		t.Fatalf("preview submitted slots")
	}

	rec = do(t, h, http.MethodPost, "/api/occurrences/preview", map[string]any{
		"startAt": "2026-10-19T18:00",
		"endAt":   "2026-10-19T17:00",
	})
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "fill in start/end correctly") {
		t.Fatalf("invalid interval = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/occurrences/preview", map[string]any{
		"startAt":      "2026-10-19T18:00",
		"endAt":        "2026-10-19T19:00",
		"repeat":       "DAILY",
		"until":        "9999-12-31",
		"splitMinutes": 1,
	})
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), `"until"`) {
		t.Fatalf("unbounded series = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/occurrences/preview", map[string]any{
		"startAt": "2026-10-19T18:00",
		"endAt":   "2026-10-19T19:00",
		"repeat":  "MONTHLY",
	})
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), `"repeat"`) {
		t.Fatalf("bad repeat = %d %s", rec.Code, rec.Body.String())
	}
}

func batchForm() map[string]any {
	return map[string]any{
		"activityId": "a1",
		"coachId":    "c1",
		"startAt":    "2026-10-19T18:00",
		"endAt":      "2026-10-19T19:00",
		"repeat":     "DAILY",
		"until":      "2026-10-23",
		"name":       "Evening",
	}
}

func TestBatchCreateStopsAtFirstFailure(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	up.failAt = 3
	h := newTestServer(t, model.RoleAdmin, up, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/slots/batch", batchForm())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp batchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Requested != 5 || resp.Created != 2 || resp.FailedAt != "2026-10-21T18:00:00" || !strings.Contains(resp.Error, "boom") {
		t.Fatalf("resp = %+v", resp)
	}
	if len(up.created) != 2 {
		t.Fatalf("upstream created %d", len(up.created))
	}
	// Capacity falls back to the configured default.
	if c, _ := up.created[0]["capacity"].(float64); int(c) != 30 {
		t.Fatalf("capacity sent = %v", up.created[0]["capacity"])
	}
}

func TestBatchCreateSuccessAndFormErrors(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	h := newTestServer(t, model.RoleAdmin, up, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/slots/batch", batchForm())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	f := batchForm()
	f["coachId"] = ""
	rec = do(t, h, http.MethodPost, "/api/slots/batch", f)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "select a coach") {
		t.Fatalf("missing coach = %d %s", rec.Code, rec.Body.String())
	}

	f = batchForm()
	f["activityId"] = "nope"
	rec = do(t, h, http.MethodPost, "/api/slots/batch", f)
	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "activity not found") {
		t.Fatalf("unknown activity = %d %s", rec.Code, rec.Body.String())
	}
}

func TestMutationsRequireManageSlots(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	h := newTestServer(t, model.RoleMember, up, nil).Handler()

	if rec := do(t, h, http.MethodPost, "/api/slots/batch", batchForm()); rec.Code != http.StatusForbidden {
		t.Fatalf("member batch = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/slots/s1", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("member delete = %d", rec.Code)
	}
	if len(up.created) != 0 || len(up.deleted) != 0 {
		t.Fatalf("forbidden mutation reached upstream")
	}

	coach := newTestServer(t, model.RoleCoach, up, nil).Handler()
	if rec := do(t, coach, http.MethodDelete, "/api/slots/s1", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("coach delete = %d", rec.Code)
	}
}

func TestCapacity(t *testing.T) {
	up := newFakeAPI(t, sampleSlots)
	h := newTestServer(t, model.RoleAdmin, up, nil).Handler()

	if rec := do(t, h, http.MethodPut, "/api/slots/s1/capacity", map[string]int{"capacity": 0}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero capacity = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/slots/s1/capacity", map[string]int{"capacity": 12}); rec.Code != http.StatusOK {
		t.Fatalf("capacity = %d: %s", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodPut, "/api/slots/missing/capacity", map[string]int{"capacity": 12})
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "slot not found") {
		t.Fatalf("missing slot = %d %s", rec.Code, rec.Body.String())
	}
}
