package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"signage-sync/internal/auth"
	"signage-sync/internal/display"
	"signage-sync/internal/platform/config"
	"signage-sync/internal/platform/logger"
	"signage-sync/internal/platform/metrics"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func newRouter(cfg config.Config, log *slog.Logger, met *metrics.Metrics, authn *auth.Manager, h *display.Handler, db pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/metrics", met.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Warn("health check failed", slog.String("error", err.Error()))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var poll []func(http.Handler) http.Handler
	if cfg.PollRateLimit > 0 {
		poll = append(poll, httprate.LimitByIP(cfg.PollRateLimit, time.Minute))
	}
	h.Routes(r, authn.Editor, poll...)
	return r
}
