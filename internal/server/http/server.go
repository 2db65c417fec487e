// Package httpserver exposes the JSON API over chi.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ditrix/ditrix-server/internal/health"
	"github.com/ditrix/ditrix-server/internal/service"
)

// Readiness is the backend probe used by /health and the data routes.
type Readiness interface {
	Status(ctx context.Context) health.Status
	Ready(ctx context.Context) error
}

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Auth     service.AuthService
	Sessions service.SessionRegistry
	Profiles service.ProfileService
	Captures service.CaptureService
	Sync     service.SyncService
	Health   Readiness
	Log      *zap.Logger

	CORSOrigins []string
}

// Server holds handler state.
type Server struct {
	Deps
	validate *validator.Validate
}

// New builds the API server.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Server{Deps: d, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Routes returns the router with middleware installed.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	origins := s.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(s.recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignup)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Post("/resend", s.handleResend)
			r.Post("/verify", s.handleVerify)
			r.Post("/forgot", s.handleForgot)
			r.Patch("/reset", s.handleReset)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/refresh", s.handleRefresh)
				r.Get("/session", s.handleSession)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/profile", s.handleProfileGet)
			r.Put("/profile", s.handleProfilePut)

			r.Route("/sync/captures", func(r chi.Router) {
				r.Get("/", s.handleSyncList)
				r.Post("/", s.handleSyncUpload)
				r.Delete("/{id}", s.handleSyncDelete)
			})

			r.Route("/shared-captures", func(r chi.Router) {
				r.Get("/", s.handleCaptureList)
				r.Post("/", s.handleCaptureCreate)
				r.Post("/join/{code}", s.handleCaptureJoin)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleCaptureGet)
					r.Patch("/", s.handleCaptureUpdate)
					r.Delete("/", s.handleCaptureDelete)
					r.Put("/roster", s.handleRosterReplace)
					r.Get("/collaborators", s.handleCollaboratorList)
					r.Post("/collaborators", s.handleCollaboratorAdd)
					r.Delete("/collaborators/{userId}", s.handleCollaboratorRemove)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("Not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("Method not allowed"))
	})
	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, addr string, h http.Handler, readHeaderTimeout time.Duration, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shCtx)
}
