// Package cache provides Redis caching utilities for the application.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"plantspack/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// keyspaces are the key families PlantsPack writes. Anything else is "other"
// so the error metric keeps a bounded label set.
var keyspaces = map[string]bool{
	"user": true, "post": true, "place": true, "draft": true,
	"geocode": true, "hashtags": true, "notifications": true,
	"ws_ticket": true, "blacklist": true, "billing": true,
	"roadmap": true, "admin": true, "subscription": true, "rl": true,
}

// Keyspace returns the key family of cmd's first key argument.
func Keyspace(cmd redis.Cmder) string {
	args := cmd.Args()
	if len(args) < 2 {
		return "none"
	}
	key, ok := args[1].(string)
	if !ok {
		return "other"
	}
	family, _, _ := strings.Cut(key, ":")
	if keyspaces[family] {
		return family
	}
	return "other"
}

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues(cmd.Name(), Keyspace(cmd)).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			for _, cmd := range cmds {
				if cmd.Err() != nil && !errors.Is(cmd.Err(), redis.Nil) {
					observability.RedisErrorRate.WithLabelValues("pipeline", Keyspace(cmd)).Inc()
				}
			}
		}
		return err
	}
}

// InitRedis connects to addr, either host:port or a redis:// URL. PlantsPack
// runs without a cache when Redis is unreachable, so failures only log and
// leave the client nil.
func InitRedis(addr string) {
	logger := observability.GlobalLogger
	if addr == "" {
		logger.Warn("redis not configured, running without cache")
		client = nil
		return
	}

	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			logger.Warn("invalid redis url, running without cache", slog.String("error", err.Error()))
			client = nil
			return
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, running without cache",
			slog.String("addr", opts.Addr),
			slog.String("error", err.Error()),
		)
		_ = c.Close()
		client = nil
		return
	}
	SetClient(c)
	logger.Info("redis connected", slog.String("addr", opts.Addr), slog.Int("db", opts.DB))
}

// GetClient returns the current Redis client instance.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the package client. Used by bootstrap and tests.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(metricsHook{})
	}
	client = c
}
