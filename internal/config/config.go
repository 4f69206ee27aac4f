// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"dev"`
	Port        int    `env:"PORT" envDefault:"8080"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"SearchBox"`
	// Session pool and history
	SessionExpires  time.Duration `env:"SESSION_EXPIRES" envDefault:"36000s"`
	PurgeInterval   time.Duration `env:"PURGE_INTERVAL" envDefault:"60s"`
	HistoryCapacity int           `env:"HISTORY_CAPACITY" envDefault:"50"`
	// Chat worker polling when the queue is empty
	WorkerIdleInterval    time.Duration `env:"WORKER_IDLE_INTERVAL" envDefault:"2s"`
	WorkerMaxIdleInterval time.Duration `env:"WORKER_MAX_IDLE_INTERVAL" envDefault:"10s"`
	// Chat-completion backend
	ChatBaseURL          string        `env:"CHAT_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ChatReferer          string        `env:"CHAT_REFERER"`
	ChatAuthToken        string        `env:"CHAT_AUTH_TOKEN"`
	ChatModel            string        `env:"CHAT_MODEL" envDefault:"gpt-3.5-turbo"`
	ChatSystemSetting    string        `env:"CHAT_SYSTEM_SETTING" envDefault:"Your name is \"Gigi\", a smart and beautiful girl. You are set as a little assistant who is good at listening and willing to answer any questions."`
	ChatHTTPTimeout      time.Duration `env:"CHAT_HTTP_TIMEOUT" envDefault:"60s"`
	ChatHistoryMaxTokens int           `env:"CHAT_HISTORY_MAX_TOKENS" envDefault:"4096"`
	ChatHistoryMinCount  int           `env:"CHAT_HISTORY_MIN_COUNT" envDefault:"16"`
	// AI Backoff Configuration
	AIBackoffMaxElapsedTime  time.Duration `env:"AI_BACKOFF_MAX_ELAPSED_TIME" envDefault:"90s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"2s"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"20s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"1.5"`
	// EnginesFile points at the YAML engine catalog; empty disables search.
	EnginesFile string `env:"ENGINES_FILE" envDefault:"configs/engines.yaml"`
	// Monitor reporting
	RedisURL              string        `env:"REDIS_URL"`
	MonitorChannel        string        `env:"MONITOR_CHANNEL" envDefault:"monitor:reports"`
	MonitorReportInterval time.Duration `env:"MONITOR_REPORT_INTERVAL" envDefault:"1h"`
	MonitorSupervisors    []string      `env:"MONITOR_SUPERVISORS" envSeparator:","`
	// Observability
	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"chatbot-dispatcher"`
	// HTTP ingress
	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	ResponseTTL           time.Duration `env:"RESPONSE_TTL" envDefault:"10m"`
	ChatWaitTimeout       time.Duration `env:"CHAT_WAIT_TIMEOUT" envDefault:"120s"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"150s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if cfg.HistoryCapacity <= 0 {
		return Config{}, fmt.Errorf("op=config.Load: HISTORY_CAPACITY must be positive, got %d", cfg.HistoryCapacity)
	}
	return cfg, nil
}

// MonitorEnabled reports whether monitor reports should be published to Redis.
func (c Config) MonitorEnabled() bool { return c.RedisURL != "" }

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetAIBackoffConfig returns backoff configuration appropriate for the current environment.
// In test environments, uses much shorter timeouts for faster test execution.
func (c Config) GetAIBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 2 * time.Second, 10 * time.Millisecond, 100 * time.Millisecond, 2.0
	}
	return c.AIBackoffMaxElapsedTime, c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIBackoffMultiplier
}
