package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const lockExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

const defaultRetryInterval = 25 * time.Millisecond

// RedisLocker is a SET NX lease lock shared by every replica using the same redis.
// The lease TTL bounds how long a crashed holder can block others; a live holder
// keeps extending it every ttl/3 until release.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	extend *redis.Script
	ttl    time.Duration
	retry  time.Duration
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		extend: redis.NewScript(lockExtendScript),
		ttl:    ttl,
		retry:  defaultRetryInterval,
		log:    log.Named("lock.redis"),
	}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, ErrLockKeyEmpty
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// Extend pushes the lease out by another ttl. False means the token no longer owns key.
func (l *RedisLocker) Extend(ctx context.Context, key, token string) (bool, error) {
	if l == nil || l.client == nil {
		return false, errors.New("lock client not configured")
	}
	n, err := l.extend.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Acquire polls TryLock until it succeeds or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		token, ok, err := l.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			stop := keepAlive(max(l.ttl/3, time.Millisecond), l.ttl, func(ctx context.Context) (bool, error) {
				return l.Extend(ctx, key, token)
			}, l.log.With(zap.String("key", key)))
			var once sync.Once
			return func() {
				once.Do(func() {
					stop()
					// release must run even when the caller's ctx is already cancelled
					releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					if err := l.Release(releaseCtx, key, token); err != nil {
						l.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
					}
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// keepAlive calls extend every interval until stop is called or the lease is lost.
// Each call gets at most timeout to complete. stop blocks until the loop has exited.
func keepAlive(interval, timeout time.Duration, extend func(context.Context) (bool, error), log *zap.Logger) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			held, err := extend(ctx)
			cancel()
			if err != nil {
				// transient; the lease still has up to two intervals left
				log.Warn("failed to extend lock lease", zap.Error(err))
				continue
			}
			if !held {
				log.Error("lock lease lost before release")
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}
