// Package notify delivers notification events to external consumers.
// Emission is always fire-and-forget relative to the owning operation:
// a failure here must never surface as that operation's error.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/storeops/commerce-core/internal/domain"
)

type Emitter interface {
	Emit(ctx context.Context, ev domain.Event) error
}

// Fire emits ev and swallows any error after logging it. All service
// call sites go through this so the never-fail contract is structural.
func Fire(ctx context.Context, e Emitter, log *slog.Logger, ev domain.Event) {
	if err := e.Emit(ctx, ev); err != nil {
		log.Warn("notification emit failed",
			"event", string(ev.Type), "order_id", ev.OrderID, "error", err)
	}
}

// RedisEmitter publishes events to a Redis channel.
type RedisEmitter struct {
	client  *redis.Client
	channel string
}

func NewRedisEmitter(addr, channel string) *RedisEmitter {
	return &RedisEmitter{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

func (e *RedisEmitter) Emit(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.client.Publish(ctx, e.channel, payload).Err()
}

// LogEmitter writes events to the log only. Used in development and as
// a fallback when no Redis address is configured.
type LogEmitter struct {
	log *slog.Logger
}

func NewLogEmitter(log *slog.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(ctx context.Context, ev domain.Event) error {
	e.log.Info("notification event",
		"event", string(ev.Type), "order_id", ev.OrderID, "data", ev.Data)
	return nil
}
