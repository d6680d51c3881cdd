package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrNotConfigured = errors.New("rate limiter not configured")
	ErrBadReply      = errors.New("unexpected rate limit reply")
)

// takeToken refills KEYS[1] from the redis clock, takes one token if it can and
// replies {allowed, tokens_left, retry_after_ms}. Token counts travel as strings
// because lua numbers are truncated to integers in replies.
var takeToken = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl_ms = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
local elapsed = math.max(0, now - last)
tokens = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl_ms)
return {allowed, tostring(tokens), retry_ms}
`)

// TokenBucket is a redis-backed bucket shared by every API instance.
type TokenBucket struct {
	client *redis.Client
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Allow takes one token from the bucket stored at key.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	denied := &Result{Limit: burst}
	switch {
	case t == nil || t.client == nil:
		return denied, ErrNotConfigured
	case key == "":
		return denied, errors.New("rate limiter key is empty")
	case rate <= 0 || burst <= 0:
		return denied, fmt.Errorf("rate limiter needs positive rate and burst, got %v/%d", rate, burst)
	}

	ttl := defaultBucketTTL(rate, burst)
	reply, err := takeToken.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return denied, err
	}
	return parseReply(reply, burst)
}

func parseReply(reply []interface{}, burst int) (*Result, error) {
	if len(reply) != 3 {
		return &Result{Limit: burst}, ErrBadReply
	}
	allowed, ok1 := reply[0].(int64)
	left, ok2 := reply[1].(string)
	retryMs, ok3 := reply[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return &Result{Limit: burst}, ErrBadReply
	}
	tokens, err := strconv.ParseFloat(left, 64)
	if err != nil {
		return &Result{Limit: burst}, ErrBadReply
	}
	return &Result{
		Allowed:    allowed == 1,
		Limit:      burst,
		Remaining:  int(math.Floor(tokens)),
		RetryAfter: time.Duration(retryMs) * time.Millisecond,
	}, nil
}

// defaultBucketTTL keeps an idle bucket around for twice its full refill time.
func defaultBucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(burst)/rate*2))
	return time.Duration(seconds) * time.Second
}
