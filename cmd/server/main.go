// Command server starts the search dispatcher and chat worker behind an HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/ai/real"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/ai/stub"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/engine/httpengine"
	httpserver "github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/httpserver"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/monitor"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/observability"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/adapter/queue/poller"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/app"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/config"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/domain"
	"github.com/fairyhunter13/chatbot-dispatcher/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Optional Redis for monitor reports
	var rdb *redis.Client
	if cfg.MonitorEnabled() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
	}

	// Monitor
	monOpts := monitor.Options{
		Supervisors: cfg.MonitorSupervisors,
		Interval:    cfg.MonitorReportInterval,
	}
	if rdb != nil {
		monOpts.Emitter = monitor.NewRedisEmitter(rdb, cfg.MonitorChannel)
	}
	mon := monitor.New(monOpts)
	go mon.Run(ctx)

	// Search engines
	var engines []domain.Engine
	if cfg.EnginesFile != "" {
		catalog, err := config.LoadEngines(cfg.EnginesFile)
		if err != nil {
			slog.Error("failed to load engine catalog", slog.String("path", cfg.EnginesFile), slog.Any("error", err))
			os.Exit(1)
		}
		engines, err = httpengine.FromCatalog(catalog)
		if err != nil {
			slog.Error("failed to build engines", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("search engines loaded", slog.Int("count", len(engines)))
	} else {
		slog.Warn("ENGINES_FILE not set; search requests will find nothing")
	}

	outbox := httpserver.NewOutbox(cfg.ResponseTTL, nil)
	search := usecase.NewSearchClient(usecase.SearchClientConfig{
		Service:       cfg.ServiceName,
		Engines:       engines,
		Monitor:       mon,
		History:       usecase.NewHistory(cfg.HistoryCapacity),
		Responder:     outbox,
		BoxExpires:    cfg.SessionExpires,
		PurgeInterval: cfg.PurgeInterval,
	})

	// Chat worker
	factory := real.NewFactory(real.OptionsFromConfig(cfg))
	if cfg.ChatAuthToken == "" && cfg.IsDev() {
		slog.Warn("CHAT_AUTH_TOKEN not set; using the echo chat backend")
		factory = stub.Factory
	}
	pool := usecase.NewSessionPool(factory,
		usecase.WithSessionExpires(cfg.SessionExpires),
		usecase.WithPurgeInterval(cfg.PurgeInterval),
	)
	chat := usecase.NewChatClient(pool, usecase.ChatClientConfig{
		BaseURL:       cfg.ChatBaseURL,
		Referer:       cfg.ChatReferer,
		AuthToken:     cfg.ChatAuthToken,
		NewHTTPClient: func() *http.Client { return observability.NewHTTPClient(cfg.ChatHTTPTimeout) },
		HTTPClientTTL: cfg.SessionExpires,
		Idle:          poller.NewAdaptivePoller(cfg.WorkerIdleInterval, cfg.WorkerMaxIdleInterval),
	})
	go func() {
		if err := chat.Run(ctx); err != nil {
			slog.Error("chat worker stopped", slog.Any("error", err))
		}
	}()

	sweeper := app.NewSweeper(cfg.PurgeInterval, map[string]app.Purger{
		"search_boxes": search,
		"outbox":       outbox,
	})
	go sweeper.Run(ctx)

	// HTTP server
	srv := httpserver.NewServer(cfg, search, chat, outbox, mon, app.BuildReadinessCheck(app.AdaptRedis(rdb)))
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)

	// stop background loops, then wait for in-flight searches and send the last report
	stop()
	search.Wait()
	mon.Flush(shutdownCtx)
}
