package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/auth"
	"github.com/gokatarajesh/career-assessment/internal/config"
	"github.com/gokatarajesh/career-assessment/internal/logging"
	"github.com/gokatarajesh/career-assessment/internal/quiz"
	"github.com/gokatarajesh/career-assessment/internal/result"
)

// Handlers bundles the route handlers the API serves.
type Handlers struct {
	Auth    *auth.HTTPHandlers
	Quiz    *quiz.HTTPHandlers
	Results *result.HTTPHandler
	WS      *quiz.WSHandler
	// RequireAuth guards every route that acts on behalf of a user.
	RequireAuth func(http.Handler) http.Handler
}

// NewHTTPServer wires routes for the API service.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, redis *redis.Client, h Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), redis); err != nil {
			logger := logging.FromContext(r.Context())
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	protect := h.RequireAuth
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}
	guarded := func(fn http.HandlerFunc) http.Handler { return protect(fn) }

	if h.Auth != nil {
		mux.HandleFunc("POST /v1/auth/login", h.Auth.Login)
		mux.Handle("POST /v1/auth/logout", guarded(h.Auth.Logout))
		mux.Handle("GET /v1/users/me", guarded(h.Auth.Me))
	}

	if h.Quiz != nil {
		mux.HandleFunc("GET /v1/tests", h.Quiz.ListTests)
		mux.Handle("POST /v1/tests/{test}/session", guarded(h.Quiz.StartSession))
		mux.Handle("GET /v1/tests/{test}/session", guarded(h.Quiz.GetSession))
		mux.Handle("DELETE /v1/tests/{test}/session", guarded(h.Quiz.AbandonSession))
		mux.Handle("PUT /v1/tests/{test}/session/answers/{question}", guarded(h.Quiz.RecordAnswer))
		mux.Handle("POST /v1/tests/{test}/session/advance", guarded(h.Quiz.Advance))
		mux.Handle("POST /v1/tests/{test}/session/retreat", guarded(h.Quiz.Retreat))
		mux.Handle("POST /v1/tests/{test}/session/submit", guarded(h.Quiz.Submit))
		mux.Handle("POST /v1/tests/{test}/session/retry", guarded(h.Quiz.Retry))
		mux.Handle("GET /v1/history", guarded(h.Quiz.History))
	}

	if h.Results != nil {
		mux.Handle("GET /v1/results/latest", guarded(h.Results.Latest))
	}

	if h.WS != nil {
		mux.Handle("GET /ws/sessions", guarded(h.WS.HandleWebSocket))
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           corsHandler(requestLogger(logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func pingDependencies(ctx context.Context, redis *redis.Client) error {
	if redis == nil {
		return nil
	}
	return redis.Ping(ctx).Err()
}

// statusRecorder captures the response status for access logs. It forwards Hijack so
// WebSocket upgrades keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// requestLogger tags each request with an id, stores a request-scoped logger in the context
// and writes one access log line per request.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			reqLogger := logger.With().Str("request_id", requestID).Logger()
			ctx := logging.IntoContext(r.Context(), reqLogger)

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			reqLogger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
