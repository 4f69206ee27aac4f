package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Report is the message published for each supervisor.
type Report struct {
	Supervisor string    `json:"supervisor"`
	Text       string    `json:"text"`
	Time       time.Time `json:"time"`
}

// RedisEmitter publishes reports on a Redis channel so a chat gateway can
// forward them to supervisors.
type RedisEmitter struct {
	rdb     *redis.Client
	channel string
}

// NewRedisEmitter returns nil when rdb is nil.
func NewRedisEmitter(rdb *redis.Client, channel string) *RedisEmitter {
	if rdb == nil {
		return nil
	}
	if channel == "" {
		channel = "monitor:reports"
	}
	return &RedisEmitter{rdb: rdb, channel: channel}
}

// Emit publishes one report.
func (e *RedisEmitter) Emit(ctx context.Context, supervisor, text string) error {
	payload, err := json.Marshal(Report{Supervisor: supervisor, Text: text, Time: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("op=monitor.emit: %w", err)
	}
	if err := e.rdb.Publish(ctx, e.channel, payload).Err(); err != nil {
		return fmt.Errorf("op=monitor.emit channel=%s: %w", e.channel, err)
	}
	return nil
}

// LogEmitter writes reports to the log. Used when Redis is not configured.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit logs the report.
func (e LogEmitter) Emit(ctx context.Context, supervisor, text string) error {
	lg := e.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.InfoContext(ctx, "monitor report", slog.String("supervisor", supervisor), slog.String("text", text))
	return nil
}
