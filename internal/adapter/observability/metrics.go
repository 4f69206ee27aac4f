package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	EngineResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_results_total",
			Help: "Engine search outcomes by service, agent and outcome",
		},
		[]string{"service", "agent", "outcome"},
	)
	EngineSearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_search_duration_seconds",
			Help:    "Engine search duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"service", "agent"},
	)
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_total",
			Help: "Dispatch outcomes by service",
		},
		[]string{"service", "outcome"},
	)
	EnginePromotionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_promotions_total",
			Help: "Number of times a fallback engine was promoted to the front",
		},
		[]string{"service"},
	)
	MonitorCrashesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_crashes_total",
			Help: "Dispatches where every engine failed",
		},
		[]string{"service"},
	)

	ChatTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_tasks_total",
			Help: "Chat tasks by lifecycle event (enqueued, completed, dropped, fallback)",
		},
		[]string{"event"},
	)
	ChatQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_queue_depth",
			Help: "Number of chat tasks waiting for the worker",
		},
	)
	ChatAskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_ask_duration_seconds",
			Help:    "Chat backend ask duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	ChatSessionsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_live",
			Help: "Number of chat sessions held by the pool",
		},
	)
	ChatSessionsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_purged_total",
			Help: "Number of expired chat sessions evicted by purge",
		},
	)
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Outbound requests to chat backends and search engines",
		},
		[]string{"provider", "operation", "status"},
	)
	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Outbound request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)
	HistoryEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "command_history_entries",
			Help: "Number of commands retained in history",
		},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(EngineResultsTotal)
		prometheus.MustRegister(EngineSearchDuration)
		prometheus.MustRegister(DispatchTotal)
		prometheus.MustRegister(EnginePromotionsTotal)
		prometheus.MustRegister(MonitorCrashesTotal)
		prometheus.MustRegister(ChatTasksTotal)
		prometheus.MustRegister(ChatQueueDepth)
		prometheus.MustRegister(ChatAskDuration)
		prometheus.MustRegister(ChatSessionsLive)
		prometheus.MustRegister(ChatSessionsPurgedTotal)
		prometheus.MustRegister(UpstreamRequestsTotal)
		prometheus.MustRegister(UpstreamRequestDuration)
		prometheus.MustRegister(HistoryEntries)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveEngineResult records one engine attempt.
func ObserveEngineResult(service, agent, outcome string, dur time.Duration) {
	EngineResultsTotal.WithLabelValues(service, agent, outcome).Inc()
	EngineSearchDuration.WithLabelValues(service, agent).Observe(dur.Seconds())
}

// ObserveDispatch records the final outcome of a dispatch.
func ObserveDispatch(service, outcome string) {
	DispatchTotal.WithLabelValues(service, outcome).Inc()
}

// ObservePromotion records an engine reorder.
func ObservePromotion(service string) {
	EnginePromotionsTotal.WithLabelValues(service).Inc()
}

// ObserveCrash records a unanimous engine failure.
func ObserveCrash(service string) {
	MonitorCrashesTotal.WithLabelValues(service).Inc()
}

// ChatTaskEvent counts a chat task lifecycle event.
func ChatTaskEvent(event string) {
	ChatTasksTotal.WithLabelValues(event).Inc()
}

// SetChatQueueDepth publishes the current queue length.
func SetChatQueueDepth(n int) {
	ChatQueueDepth.Set(float64(n))
}

// ObserveChatAsk records one backend ask.
func ObserveChatAsk(dur time.Duration) {
	ChatAskDuration.Observe(dur.Seconds())
}

// SetLiveSessions publishes the pool size.
func SetLiveSessions(n int) {
	ChatSessionsLive.Set(float64(n))
}

// AddPurgedSessions counts evicted sessions.
func AddPurgedSessions(n int) {
	if n > 0 {
		ChatSessionsPurgedTotal.Add(float64(n))
	}
}

// SetHistoryEntries publishes the history length.
func SetHistoryEntries(n int) {
	HistoryEntries.Set(float64(n))
}

// ObserveUpstream records one outbound call. status is the HTTP status code,
// or "error" when no response was received.
func ObserveUpstream(provider, operation, status string, dur time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	UpstreamRequestDuration.WithLabelValues(provider, operation).Observe(dur.Seconds())
}
