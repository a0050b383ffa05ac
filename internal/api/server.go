// Package api exposes the dashboard over HTTP: uploads into slots, filtered
// and paginated table reads, aggregate series for the charts, exports, and
// the expiry alert query. Handlers hold no state of their own; everything
// flows through the session manager and the pure engine functions.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nelhattab/electratrack/internal/config"
	"github.com/nelhattab/electratrack/internal/engine"
	"github.com/nelhattab/electratrack/internal/session"
	"github.com/nelhattab/electratrack/internal/store"
)

// sessionHeader carries the session ID both ways. The server always echoes
// the effective session ID so first-time clients learn theirs.
const sessionHeader = "X-Session-ID"

// Server wires the engine to the HTTP surface.
type Server struct {
	cfg      config.ServerConfig
	engCfg   config.EngineConfig
	sessions *session.Manager
	cache    *engine.Cache
	st       store.Store
	uploads  *rate.Limiter
}

// New builds a Server. st may be nil for memory-only operation.
func New(cfg *config.Config, sessions *session.Manager, st store.Store) *Server {
	perMin := cfg.Server.UploadsPerMin
	if perMin <= 0 {
		perMin = 30
	}
	return &Server{
		cfg:      cfg.Server,
		engCfg:   cfg.Engine,
		sessions: sessions,
		cache:    engine.NewCache(cfg.Engine.CacheEntries),
		st:       st,
		uploads:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin),
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", sessionHeader},
		ExposedHeaders:   []string{sessionHeader, "Content-Disposition"},
		AllowCredentials: false,
	}))
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/slots", s.handleListSlots)
		r.Route("/slots/{slot}", func(r chi.Router) {
			r.Post("/upload", s.limitUploads(s.handleUpload))
			r.Get("/", s.handleSlotInfo)
			r.Get("/rows", s.handleRows)
			r.Get("/export", s.handleExport)
			r.Get("/alerts", s.handleAlerts)
			r.Get("/alerts/export", s.handleAlertsExport)
			r.Route("/stats", func(r chi.Router) {
				r.Get("/summary", s.handleStatsSummary)
				r.Get("/categories", s.handleStatsCategories)
				r.Get("/status", s.handleStatsStatus)
				r.Get("/communes", s.handleStatsCommunes)
				r.Get("/agencies", s.handleStatsAgencies)
				r.Get("/years", s.handleStatsYears)
				r.Get("/months", s.handleStatsMonths)
				r.Get("/pivot", s.handleStatsPivot)
				r.Get("/power", s.handleStatsPower)
				r.Get("/pairs", s.handleStatsPairs)
			})
		})
	})

	return r
}

// logRequests emits one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// limitUploads applies the shared upload rate limit.
func (s *Server) limitUploads(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.uploads.Allow() {
			writeError(w, http.StatusTooManyRequests, "upload rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// sessionFor resolves the request's session, minting one when the client
// sent no ID, and echoes the effective ID on the response.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := s.sessions.Get(r.Context(), r.Header.Get(sessionHeader))
	w.Header().Set(sessionHeader, sess.ID)
	return sess
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
