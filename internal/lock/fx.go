package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vatdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewRedisClient),
	fx.Provide(NewFromConfig),
)

// NewRedisClient returns nil when REDIS_ADDR is unset.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}

// NewFromConfig picks the redis locker when a client exists, else the local one.
func NewFromConfig(cfg config.Config, client *redis.Client, log *zap.Logger) Locker {
	if client == nil {
		log.Info("using in-process write lock")
		return NewLocalLocker()
	}
	log.Info("using redis write lock", zap.String("addr", cfg.Redis.Addr))
	return NewRedisLocker(client, cfg.Redis.LockTTL, log)
}
