// Package http serves the registros web UI (HTMX partials over
// html/template), the JSON API under /api/v1 and the ops endpoints.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"registros/internal/auth"
	"registros/internal/core"
	"registros/internal/log"
	"registros/internal/middleware/ratelimit"
	"registros/internal/middleware/security"
	"registros/internal/middleware/trace"
	"registros/internal/records"
	"registros/internal/services"
	appweb "registros/web"
)

// Deps are the services the handlers call.
type Deps struct {
	Records *services.RecordService
	Auth    *auth.Service
	// Checks are pinged by /readyz, keyed by the name shown in the report.
	Checks map[string]records.Pinger
	Logger *log.Logger
}

type Options struct {
	// AuthRequired gates record pages and the API behind a session.
	AuthRequired       bool
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	Clock              core.Clock
}

type appMetrics struct {
	uptime  time.Time
	created atomic.Int64
	updated atomic.Int64
	deleted atomic.Int64
	exports atomic.Int64
}

type Server struct {
	http.Server

	templates *template.Template
	records   *services.RecordService
	auth      *auth.Service
	checks    map[string]records.Pinger
	logger    *log.Logger
	opts      Options
	clock     core.Clock

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires every route. It fails
// when the templates do not parse.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Records == nil {
		return nil, fmt.Errorf("record service is required")
	}
	if opts.AuthRequired && deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required when auth is enabled")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	t, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	detector := security.NewDetector()
	s := &Server{
		templates:        t,
		records:          deps.Records,
		auth:             deps.Auth,
		checks:           deps.Checks,
		logger:           logger.WithComponent(log.ComponentHTTP),
		opts:             opts,
		clock:            opts.Clock,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
	}
	s.appMetrics.uptime = time.Now()
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger))
	r.Use(s.traceMiddleware.Middleware)
	r.Use(log.RequestIDMiddleware(trace.RequestID))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.securityDetector.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit))
		r.Use(security.NoStore)

		if s.auth != nil {
			r.Route("/auth", s.authRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Use(log.ComponentMiddleware(log.ComponentRecords))

			r.Get("/", s.handleIndex)
			r.Get("/ui/registros", s.handleListPartial)
			r.Get("/ui/registros/novo", s.handleNewForm)
			r.Get("/ui/registros/{id}/editar", s.handleEditForm)
			r.Post("/registros", s.handleCreateRecord)
			r.Put("/registros/{id}", s.handleUpdateRecord)
			r.Post("/registros/{id}", s.handleUpdateRecord)
			r.Delete("/registros/{id}", s.handleDeleteRecord)

			r.Get("/registros/export.csv", s.handleExportCSV)
			r.Get("/registros/export.xlsx", s.handleExportXLSX)

			r.Get("/relatorio", s.handleReportPage)
			r.Get("/ui/relatorio", s.handleReportPartial)
		})

		r.Route("/api/v1", s.apiRoutes)
	})

	return r
}

func (s *Server) authRoutes(r chi.Router) {
	r.Use(log.ComponentMiddleware(log.ComponentAuth))
	r.Get("/", s.handleAuthPage)
	r.Post("/entrar", s.handleSignIn)
	r.Post("/cadastrar", s.handleSignUp)
	r.Post("/recuperar", s.handleRequestReset)
	r.Get("/redefinir", s.handleResetPage)
	r.Post("/redefinir", s.handleResetPassword)
	r.HandleFunc("/sair", s.handleSignOut)
	r.HandleFunc("/logout", s.handleSignOut)
}

func (s *Server) apiRoutes(r chi.Router) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.AllowContentType("application/json"))

	if s.auth != nil {
		r.Route("/auth", func(r chi.Router) {
			r.Use(log.ComponentMiddleware(log.ComponentAuth))
			r.Post("/signin", s.apiSignIn)
			r.Post("/signup", s.apiSignUp)
			r.Post("/reset", s.apiRequestReset)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get("/registros", s.apiListRecords)
		r.Post("/registros", s.apiCreateRecord)
		r.Get("/registros/{id}", s.apiGetRecord)
		r.Put("/registros/{id}", s.apiUpdateRecord)
		r.Delete("/registros/{id}", s.apiDeleteRecord)
		r.Get("/relatorio", s.apiReport)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		TriggerErrorNotification("Muitas requisições. Tente novamente em instantes.").
		BodyString("Muitas requisições. Tente novamente em instantes.").
		Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) now() time.Time {
	return s.clock()
}
