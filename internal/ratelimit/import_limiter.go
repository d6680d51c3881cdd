package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vatdesk/internal/config"
)

const keyImportClient = "vatdesk:import:client:%s"

// ImportLimiter throttles ledger imports per client. A nil limiter allows everything.
type ImportLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewImportLimiter(cfg config.Config, client *redis.Client) (*ImportLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if limitCfg.ImportRate <= 0 || limitCfg.ImportBurst <= 0 {
		return nil, errors.New("import rate limit must be positive")
	}
	return &ImportLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.ImportRate,
		burst:  limitCfg.ImportBurst,
	}, nil
}

func (l *ImportLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *ImportLimiter) Allow(ctx context.Context, clientKey string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyImportClient, clientKey), l.rate, l.burst)
}
