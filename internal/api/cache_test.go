package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"sportkeeper/internal/model"
)

func TestSlotCacheRevalidatesAndFallsBack(t *testing.T) {
	var (
		calls atomic.Int32
		mode  atomic.Value
	)
	mode.Store("ok")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch mode.Load().(string) {
		case "ok":
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", `"v1"`)
			writeJSON(w, http.StatusOK, []model.Slot{{ID: "s1", StartAt: "2026-10-19T18:00:00", EndAt: "2026-10-19T19:00:00", Capacity: 10}})
		case "down":
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
		}
	}))
	defer srv.Close()

	cache := NewSlotCache(New(srv.URL), t.TempDir())
	ctx := context.Background()

	first, err := cache.Fetch(ctx)
	if err != nil || first.FromCache || first.Fallback || len(first.Slots) != 1 {
		t.Fatalf("first fetch = %+v, %v", first, err)
	}

	second, err := cache.Fetch(ctx)
	if err != nil || !second.FromCache || second.Fallback || second.Slots[0].ID != "s1" {
		t.Fatalf("revalidated fetch = %+v, %v", second, err)
	}

	mode.Store("down")
	third, err := cache.Fetch(ctx)
	if err != nil || !third.FromCache || !third.Fallback || len(third.Slots) != 1 {
		t.Fatalf("fallback fetch = %+v, %v", third, err)
	}

	if err := cache.Invalidate(); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := cache.Fetch(ctx); err == nil || err.Error() != "maintenance" {
		t.Fatalf("fetch without cache while down: %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("server calls = %d, want 4", calls.Load())
	}
}

func TestSlotCacheNotModifiedWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	if _, err := NewSlotCache(New(srv.URL), t.TempDir()).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for 304 without cached body")
	}
}
