// Package api serves campaigns and turns over HTTP.
// GET endpoints are open; rebuild and archive require the admin bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"

	"github.com/talgya/chronicle/internal/llm"
	"github.com/talgya/chronicle/internal/notify"
	"github.com/talgya/chronicle/internal/persistence"
	"github.com/talgya/chronicle/internal/turn"
	"github.com/talgya/chronicle/internal/world"
)

const (
	maxInputBytes = 4 << 10
	maxSetupBytes = 256 << 10
	defaultPage   = 100
	maxPage       = 1000
)

// RecentFeed serves recently committed turns from a cache outside the
// event store.
type RecentFeed interface {
	Recent(ctx context.Context, campaignID string, n int64) ([]turn.Summary, error)
}

// Server is the HTTP front end.
type Server struct {
	Pipeline *turn.Pipeline
	DB       *persistence.DB
	LLM      *llm.Client
	Hub      *notify.Hub
	Feed     RecentFeed
	Addr     string
	AdminKey string
	Logger   *slog.Logger

	// TurnLimiter and NewsLimiter guard the endpoints that call the model.
	TurnLimiter *RateLimiter
	NewsLimiter *RateLimiter

	started  time.Time
	turns    *atomic.Int64
	failures *atomic.Int64
	created  *atomic.Int64

	gazetteMu sync.Mutex
	gazettes  map[string]cachedGazette
}

type cachedGazette struct {
	version int64
	gazette *llm.Gazette
}

func (s *Server) init() {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.TurnLimiter == nil {
		s.TurnLimiter = NewRateLimiter(60, time.Minute)
	}
	if s.NewsLimiter == nil {
		s.NewsLimiter = NewRateLimiter(30, time.Hour)
	}
	if s.turns == nil {
		s.started = time.Now()
		s.turns = atomic.NewInt64(0)
		s.failures = atomic.NewInt64(0)
		s.created = atomic.NewInt64(0)
		s.gazettes = make(map[string]cachedGazette)
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	s.init()
	r := chi.NewRouter()
	r.Use(s.requestLog)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/campaigns", s.handleListCampaigns)
		r.Post("/campaigns", s.handleCreateCampaign)

		r.Route("/campaigns/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetCampaign)
			r.With(s.TurnLimiter.Middleware).Post("/turns", s.handleTurn)
			r.Get("/events", s.handleEvents)
			r.Get("/characters", s.handleCharacters)
			r.With(s.NewsLimiter.Middleware).Get("/news", s.handleNews)
			r.Get("/recent", s.handleRecent)
			r.Get("/stream", s.handleStream)
			r.Get("/legacy", s.handleLegacy)

			r.With(s.adminOnly).Post("/rebuild", s.handleRebuild)
			r.With(s.adminOnly).Post("/archive", s.handleArchive)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.TurnLimiter.Janitor(ctx)
	go s.NewsLimiter.Janitor(ctx)

	errc := make(chan error, 1)
	go func() {
		s.Logger.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "stream", s.Hub != nil)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.Logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			writeError(w, http.StatusForbidden, "admin endpoints disabled (no admin key set)")
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.AdminKey {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"name":              "chronicle",
		"uptime_seconds":    int64(time.Since(s.started).Seconds()),
		"turns":             s.turns.Load(),
		"turn_failures":     s.failures.Load(),
		"campaigns_created": s.created.Load(),
		"rate_limited":      s.TurnLimiter.Rejected() + s.NewsLimiter.Rejected(),
		"llm":               s.LLM.Enabled(),
	}
	if s.Hub != nil {
		status["stream_clients"] = s.Hub.Clients()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	cs, err := s.DB.Campaigns(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if cs == nil {
		cs = []persistence.Campaign{}
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var setup turn.Setup
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSetupBytes)).Decode(&setup); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	model, err := s.Pipeline.CreateCampaign(r.Context(), setup)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.created.Inc()
	writeJSON(w, http.StatusCreated, model)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	model, err := s.DB.LoadReadModel(r.Context(), chi.URLParam(r, "id"), 20)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

type turnRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInputBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.Pipeline.Execute(r.Context(), chi.URLParam(r, "id"), req.Input)
	if err != nil {
		s.failures.Inc()
		s.fail(w, err)
		return
	}
	s.turns.Inc()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultPage
	}
	if limit > maxPage {
		limit = maxPage
	}
	hidden, _ := strconv.ParseBool(q.Get("include_hidden"))

	id := chi.URLParam(r, "id")
	if _, err := s.DB.Campaign(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	evts, err := s.DB.ListEvents(r.Context(), id, after, limit, hidden)
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := map[string]any{"events": evts, "next_after": after}
	if n := len(evts); n > 0 {
		resp["next_after"] = evts[n-1].ID
	} else {
		resp["events"] = []any{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.DB.Campaign(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	chars, err := s.DB.Characters(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if chars == nil {
		chars = []persistence.Character{}
	}
	writeJSON(w, http.StatusOK, chars)
}

// handleNews serves the campaign gazette, regenerated at most once per
// committed version.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := s.DB.Campaign(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.gazetteMu.Lock()
	cached, ok := s.gazettes[id]
	s.gazetteMu.Unlock()
	if ok && cached.version == c.Version {
		writeJSON(w, http.StatusOK, cached.gazette)
		return
	}

	doc, err := c.Document()
	if err != nil {
		s.fail(w, err)
		return
	}
	g := llm.GenerateGazette(r.Context(), s.LLM, llm.GazetteData{
		Title:    c.Title,
		Clock:    world.Clock(c.WorldTimeMinutes),
		Arc:      doc.Arc.Stage,
		Factions: doc.ActiveFactions,
		News:     doc.NewsFeed,
	})

	s.gazetteMu.Lock()
	s.gazettes[id] = cachedGazette{version: c.Version, gazette: g}
	s.gazetteMu.Unlock()
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.Feed == nil {
		writeError(w, http.StatusNotFound, "recent feed not configured")
		return
	}
	n, _ := strconv.ParseInt(r.URL.Query().Get("n"), 10, 64)
	got, err := s.Feed.Recent(r.Context(), chi.URLParam(r, "id"), n)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "streaming disabled")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.DB.Campaign(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	s.Hub.ServeWS(w, r, id)
}

func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request) {
	rec, err := s.DB.Legacy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Pipeline.Rebuild(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type archiveRequest struct {
	Summary string `json:"summary"`
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInputBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	rec, err := s.Pipeline.Archive(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.Summary))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// fail maps engine errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var (
		commitErr    *turn.CommitError
		invariantErr *turn.InvariantError
	)
	switch {
	case errors.Is(err, turn.ErrUnknownCampaign), errors.Is(err, persistence.ErrCampaignNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, turn.ErrInvalidSetup):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, turn.ErrCampaignArchived), errors.Is(err, turn.ErrNotSetUp),
		errors.Is(err, persistence.ErrVersionConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invariantErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &commitErr):
		s.Logger.Error("commit failed", "campaign", commitErr.CampaignID, "turn", commitErr.Turn, "step", commitErr.Step, "error", commitErr.Err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "commit failed",
			"step":  commitErr.Step,
			"turn":  commitErr.Turn,
		})
	default:
		s.Logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
