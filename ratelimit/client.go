package ratelimit

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/snipbox/snipbox/config"
)

// NewClient builds the redis client the limiter persists windows in.
// Connectivity is not probed here; a dead store surfaces as fail-closed
// decisions on the first check.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// NewFromConfig creates a limiter with the configured window and limit.
func NewFromConfig(client *redis.Client, logger *zap.Logger, cfg *config.Config) *RedisLimiter {
	return NewRedisLimiter(client, logger, cfg.RateWindow(), cfg.RateLimit.Limit)
}
