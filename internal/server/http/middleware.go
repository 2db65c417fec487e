package httpserver

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ditrix/ditrix-server/internal/authctx"
)

// accessLog logs request metadata, never bodies.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.Log.Info("http",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.Log.Error("panic",
					zap.Any("reason", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusInternalServerError, errorBody("Internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requireReady answers 503 while a storage backend is down.
func (s *Server) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Health != nil {
			if err := s.Health.Ready(r.Context()); err != nil {
				s.Log.Warn("not ready", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, errorBody("Database unavailable"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth resolves the bearer token to a live session.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := authctx.BearerToken(r.Header.Get("Authorization"))
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody("No token provided"))
			return
		}
		id, err := s.Sessions.Authenticate(r.Context(), tok)
		if err != nil {
			if statusOf(err) == http.StatusInternalServerError {
				s.writeError(w, r, err, "Authentication failed")
				return
			}
			writeJSON(w, http.StatusUnauthorized, errorBody("Invalid or expired token"))
			return
		}
		ctx := authctx.WithToken(authctx.WithUserID(r.Context(), id), tok)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
