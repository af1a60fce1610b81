// Package web serves the flatsheet UI and its JSON endpoints.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/flatsheet/internal/config"
	"github.com/JonMunkholm/flatsheet/internal/core"
	"github.com/JonMunkholm/flatsheet/internal/history"
	mw "github.com/JonMunkholm/flatsheet/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// HistoryReader lists recorded uploads.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	SummarySince(ctx context.Context, since time.Time) (history.Summary, error)
}

// Server is the HTTP server for the flatsheet application.
type Server struct {
	cfg     *config.Config
	service *core.Service
	history HistoryReader // nil when no database is configured
	router  *chi.Mux
	server  *http.Server
	limits  []*rateLimiter
	started time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the history endpoint.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

// NewServer creates a Server for svc.
func NewServer(cfg *config.Config, svc *core.Service, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		service: svc,
		router:  chi.NewRouter(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	s.router.Get("/healthz", s.handleHealth)

	timeout := middleware.Timeout(s.cfg.Server.RequestTimeout)

	// Browser routes carry the session cookie.
	s.router.Group(func(r chi.Router) {
		r.Use(s.sessions, timeout)
		r.Get("/", s.handleIndex)
		r.Get("/table", s.handleTable)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.sessions)

			upload := r.With()
			if s.cfg.Rate.Enabled {
				upload = r.With(s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware)
			}
			// Upload and progress run past the request timeout; the service
			// bounds them with UPLOAD_TIMEOUT.
			upload.Post("/upload", s.handleUpload)
			r.Get("/upload/progress", s.handleUploadProgress)

			r.With(timeout).Get("/session", s.handleSession)
			r.With(timeout).Post("/reset", s.handleReset)
			r.With(timeout).Post("/error/dismiss", s.handleDismissError)
			r.With(timeout).Get("/export/{format}", s.handleExport)
		})

		// Machine endpoints, no session.
		r.Group(func(r chi.Router) {
			r.Use(mw.APIKeyAuth(&s.cfg.Security), timeout)
			r.Get("/status", s.handleStatus)
			r.Get("/history", s.handleHistory)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limits {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	l := newRateLimiter(rate, window)
	s.limits = append(s.limits, l)
	return l
}

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
