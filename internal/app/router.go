package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/httpserver"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	// Security & instrumentation middleware
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limit endpoints that queue work
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		wr.Group(func(sr chi.Router) {
			sr.Use(httpserver.TimeoutMiddleware(30 * time.Second))
			sr.Post("/v1/search", srv.SearchHandler())
			sr.Post("/v1/search/{conversation}/cancel", srv.CancelHandler())
		})
		// chat waits for the worker, so its deadline follows the wait timeout
		wr.With(httpserver.TimeoutMiddleware(chatDeadline(cfg))).Post("/v1/chat", srv.ChatHandler())
	})

	// Read-only endpoints
	r.Group(func(rr chi.Router) {
		rr.Use(httpserver.TimeoutMiddleware(30 * time.Second))
		rr.Get("/v1/responses/{id}", srv.ResponsesHandler())
		rr.Get("/v1/history", srv.HistoryHandler())
		rr.Get("/v1/monitor", srv.MonitorHandler())
	})

	// Health and metrics
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })
	r.Get("/readyz", srv.ReadyzHandler())

	return httpserver.SecurityHeaders(r)
}

func chatDeadline(cfg config.Config) time.Duration {
	if cfg.ChatWaitTimeout <= 0 {
		return 30 * time.Second
	}
	return cfg.ChatWaitTimeout + 5*time.Second
}
