package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"

	"sportkeeper/internal/api"
	"sportkeeper/internal/config"
	appLog "sportkeeper/internal/log"
	"sportkeeper/internal/model"
)

const listingTTL = 30 * time.Second

// Options carries what the console learns at startup rather than from config.
type Options struct {
	// Role of the token owner. Mutation routes require access.ManageSlots.
	Role model.Role

	// Now is the clock used for the default month; nil means time.Now.
	Now func() time.Time
}

// Server is the local web console: a month view over the remote slot
// listing plus a few admin actions proxied to the API.
type Server struct {
	cfg    *config.Config
	client *api.Client
	slots  *api.SlotCache
	loc    *time.Location
	role   model.Role
	now    func() time.Time
	router chi.Router

	// In-memory copy of the last listing so page loads do not hit the API.
	listingMu sync.RWMutex
	listing   *listingEntry
}

type listingEntry struct {
	listing   api.SlotListing
	fetchedAt time.Time
}

// NewServer constructs a new Server. client should already carry the token.
func NewServer(cfg *config.Config, client *api.Client, opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		cfg:    cfg,
		client: client,
		slots:  api.NewSlotCache(client, cfg.CacheDir),
		loc:    resolveLocationOrLocal(cfg.Timezone),
		role:   opts.Role,
		now:    now,
		router: chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(chimw.RealIP, chimw.RequestID, chimw.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "user", s.cfg.BasicAuth.Username)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/calendar", s.handleCalendarPage)
	r.Get("/calendar.ics", s.handleCalendarICS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/slots", s.handleSlots)
		r.Get("/calendar", s.handleCalendar)
		r.Post("/occurrences/preview", s.handlePreview)

		r.Group(func(r chi.Router) {
			r.Use(s.requireManageSlots)
			r.Post("/slots/batch", s.handleBatchCreate)
			r.Put("/slots/{id}/capacity", s.handleCapacity)
			r.Delete("/slots/{id}", s.handleDelete)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/calendar", http.StatusFound)
	})
}

// currentListing returns the cached listing if it is fresh, otherwise
// refetches through the on-disk ETag cache.
func (s *Server) currentListing(ctx context.Context) (api.SlotListing, error) {
	s.listingMu.RLock()
	le := s.listing
	s.listingMu.RUnlock()
	if le != nil && s.now().Sub(le.fetchedAt) < listingTTL {
		return le.listing, nil
	}
	return s.Refresh(ctx)
}

// Refresh refetches the slot listing and replaces the in-memory copy.
func (s *Server) Refresh(ctx context.Context) (api.SlotListing, error) {
	listing, err := s.slots.Fetch(ctx)
	if err != nil {
		return api.SlotListing{}, err
	}
	s.listingMu.Lock()
	s.listing = &listingEntry{listing: listing, fetchedAt: s.now()}
	s.listingMu.Unlock()
	return listing, nil
}

// dropListing forgets both cached copies after a mutation so the next read
// is an unconditional fetch.
func (s *Server) dropListing() {
	s.listingMu.Lock()
	s.listing = nil
	s.listingMu.Unlock()
	if err := s.slots.Invalidate(); err != nil {
		appLog.Error("slot cache invalidate failed", err, "dir", s.cfg.CacheDir)
	}
}

// StartRefresh schedules background listing refreshes using cfg.RefreshCron.
// The scheduler stops when ctx is done.
func (s *Server) StartRefresh(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(s.cfg.RefreshCron, func() {
		rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		listing, err := s.Refresh(rctx)
		if err != nil {
			appLog.Error("scheduled slot refresh failed", err)
			return
		}
		appLog.Debug("scheduled slot refresh", "count", len(listing.Slots), "from_cache", listing.FromCache, "fallback", listing.Fallback)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}

// StartServer serves the console on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, client *api.Client, opts Options) error {
	s := NewServer(cfg, client, opts)
	if _, err := s.StartRefresh(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "api_url", client.BaseURL(), "role", string(opts.Role))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}
