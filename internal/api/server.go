// Package api exposes the catalog and game sessions over HTTP and WebSocket.
package api

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/terra-clan/pylearn-arcade/internal/config"
	"github.com/terra-clan/pylearn-arcade/internal/content"
	"github.com/terra-clan/pylearn-arcade/internal/metrics"
	"github.com/terra-clan/pylearn-arcade/internal/services"
	"github.com/terra-clan/pylearn-arcade/internal/session"
)

// Server represents the HTTP API server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	sessions *session.Manager
	catalog  *content.Loader
	health   *services.Registry
	validate *validator.Validate
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	sessions *session.Manager,
	catalog *content.Loader,
	health *services.Registry,
) *Server {
	if health == nil {
		health = services.NewRegistry(0)
	}

	s := &Server{
		config:   cfg,
		sessions: sessions,
		catalog:  catalog,
		health:   health,
		validate: newValidator(),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(metricsMiddleware)
	r.Use(middleware.Recoverer)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", SessionTokenHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Probes and metrics (outside versioned API)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(identify)
		timeout := middleware.Timeout(30 * time.Second)

		// Catalog
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Get("/categories", s.handleListCategories)
			r.Get("/categories/{id}/activities", s.handleListCategoryActivities)
			r.Get("/activities", s.handleListActivities)
			r.Get("/activities/{slug}", s.handleGetActivity)
		})

		// Sessions
		r.Route("/sessions", func(r chi.Router) {
			// The socket outlives any request timeout
			r.Get("/{id}/ws", s.handleSessionWS)

			r.Group(func(r chi.Router) {
				r.Use(timeout)
				r.Get("/", s.handleListSessions)
				r.Post("/", s.handleCreateSession)
				r.Get("/{id}", s.handleGetSession)
				r.Delete("/{id}", s.handleDeleteSession)
				r.Post("/{id}/events", s.handleSessionEvent)
				r.Post("/{id}/claim", s.handleClaimReward)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
