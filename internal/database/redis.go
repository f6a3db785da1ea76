package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/schoolledger/ledger-api/internal/config"
	"github.com/schoolledger/ledger-api/pkg/logger"
)

// ConnectRedis opens the idempotency store. An empty REDIS_URL returns a nil
// client; an unreachable server is logged and also yields nil so the API can
// run without it.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis connection failed, continuing without idempotency keys", "error", err)
		_ = client.Close()
		return nil, nil
	}

	logger.Info("Redis connection established")
	return client, nil
}
