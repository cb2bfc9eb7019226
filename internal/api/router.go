// Package api wires the HTTP surface of the compiler.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/pdf-compiler/internal/api/handlers"
	"github.com/spherical/pdf-compiler/internal/config"
	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, compiler domain.Compiler, cfg config.ServerConfig) http.Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"pdf-compiler"}`))
	})

	compileHandler := handlers.NewCompileHandler(logger, compiler, cfg.MaxSourceBytes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/compile", compileHandler.Compile)
	})

	return r
}

// requestLogger logs one line per request with the chi request id as trace id.
func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			ctx := r.Context()
			if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
				ctx = observability.ContextWithTraceID(ctx, reqID)
			}

			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.WithContext(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("Request handled")
		})
	}
}
