package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/qninhdt/dnd-campaign/server/internal/campaign"
	"github.com/qninhdt/dnd-campaign/server/internal/db"
	mw "github.com/qninhdt/dnd-campaign/server/internal/middleware"
	"github.com/qninhdt/dnd-campaign/server/internal/validation"
)

// CampaignSource provides read-only views of the running campaign
type CampaignSource interface {
	Snapshot() *campaign.State
	Roster() *campaign.Roster
}

// SnapshotSource lists stored campaign versions (SQLite store only)
type SnapshotSource interface {
	Snapshots(ctx context.Context) ([]db.SnapshotInfo, error)
	CampaignIDs(ctx context.Context) ([]string, error)
}

// Options configure the API surface
type Options struct {
	RateLimit float64        // requests per second per IP, 0 disables
	JWTSecret string         // enables bearer auth on /api when set
	Snapshots SnapshotSource // enables /api/snapshots and /api/campaigns when set
}

// Server handles HTTP requests
type Server struct {
	router      chi.Router
	source      CampaignSource
	rateLimiter *mw.RateLimiter
	opts        Options
	logger      *zap.Logger
}

// NewServer creates a new API server
func NewServer(source CampaignSource, opts Options, logger *zap.Logger) *Server {
	burst := int(opts.RateLimit)
	s := &Server{
		router:      chi.NewRouter(),
		source:      source,
		rateLimiter: mw.NewRateLimiter(opts.RateLimit, max(burst, 1)),
		opts:        opts,
		logger:      logger.Named("api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.SecurityHeadersMiddleware)
	s.router.Use(mw.MaxBodySizeMiddleware(1024 * 1024)) // 1MB max

	s.router.Get("/healthz", s.health)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))
		r.Use(s.rateLimiter.Middleware)
		if s.opts.JWTSecret != "" {
			r.Use(mw.AuthMiddleware([]byte(s.opts.JWTSecret)))
		}

		r.Get("/campaign", s.getCampaign)
		r.Get("/characters/{name}", s.getCharacter)
		r.Get("/log", s.getLog)

		if s.opts.Snapshots != nil {
			r.Get("/snapshots", s.getSnapshots)
			r.Get("/campaigns", s.getCampaignIDs)
		}
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response wraps API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response, hiding server-side details
func writeError(w http.ResponseWriter, status int, message string) {
	if status >= 500 {
		message = "Internal server error"
	}
	writeJSON(w, status, Response{
		Success: false,
		Error:   message,
	})
}

// snapshot fetches the current state or answers 503 while loading
func (s *Server) snapshot(w http.ResponseWriter) (*campaign.State, bool) {
	state := s.source.Snapshot()
	if state == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "Campaign not loaded yet"})
		return nil, false
	}
	return state, true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := "ok"
	if s.source.Snapshot() == nil {
		status = "loading"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// getCampaign returns the campaign summary
func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	state, ok := s.snapshot(w)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    campaign.AnalyzeCampaign(state, s.source.Roster()),
	})
}

// getCharacter returns one character's info and action history
func (s *Server) getCharacter(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := validation.ValidateCharacterName(name); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid character name")
		return
	}

	state, ok := s.snapshot(w)
	if !ok {
		return
	}

	report, err := campaign.AnalyzeCharacter(state, s.source.Roster(), name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    report,
	})
}

// getLog returns the most recent log entries, optionally for one actor
func (s *Server) getLog(w http.ResponseWriter, r *http.Request) {
	limit, err := validation.ValidateLogLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := r.URL.Query().Get("actor")
	if actor != "" {
		if err := validation.ValidateCharacterName(actor); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid actor")
			return
		}
	}

	state, ok := s.snapshot(w)
	if !ok {
		return
	}

	entries := make([]campaign.LogEntry, 0, limit)
	for i := len(state.GameLog) - 1; i >= 0 && len(entries) < limit; i-- {
		if actor == "" || state.GameLog[i].Actor == actor {
			entries = append(entries, state.GameLog[i])
		}
	}
	// oldest first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// getSnapshots lists the stored versions of the running campaign, newest first
func (s *Server) getSnapshots(w http.ResponseWriter, r *http.Request) {
	snapshots, err := s.opts.Snapshots.Snapshots(r.Context())
	if err != nil {
		s.logger.Error("Failed to list snapshots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    snapshots,
	})
}

// getCampaignIDs lists every campaign stored in the database
func (s *Server) getCampaignIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.opts.Snapshots.CampaignIDs(r.Context())
	if err != nil {
		s.logger.Error("Failed to list campaigns", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    ids,
	})
}
