// Package api exposes the webhook ingress and the fetch triggers over HTTP.
package api

import (
	"net/http"
	"time"

	"fjacquet/sms-ledger/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	WebhookPath    string
	RequestTimeout time.Duration
}

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook/sms"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", h.Health)
	r.Post(cfg.WebhookPath, h.Webhook)

	r.Route("/api", func(r chi.Router) {
		r.Post("/fetch-sms", h.FetchSMS)
		r.Post("/auto-fetch-sms", h.AutoFetchSMS)
		r.Get("/sms-summary", h.Summary)
	})
	return r
}

// requestLogger writes one access log line per request.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("HTTP request",
					logging.F("method", r.Method),
					logging.F(logging.FieldEndpoint, r.URL.Path),
					logging.F(logging.FieldStatus, ww.Status()),
					logging.F(logging.FieldRemoteIP, r.RemoteAddr),
					logging.F("request_id", middleware.GetReqID(r.Context())),
					logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
