package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllows(t *testing.T) {
	l, err := NewImportLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.False(t, l.Enabled())

	res, err := l.Allow(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestEnabledLimiterNeedsRedis(t *testing.T) {
	_, err := NewImportLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, ImportRate: 1, ImportBurst: 1}}, nil)
	assert.Error(t, err)
}

func TestTokenBucketWithoutClient(t *testing.T) {
	var b *TokenBucket
	res, err := b.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, res.Allowed)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, defaultBucketTTL(1, 5))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
}

func TestParseReply(t *testing.T) {
	res, err := parseReply([]interface{}{int64(1), "2.75", int64(0)}, 5)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, 5, res.Limit)

	res, err = parseReply([]interface{}{int64(0), "0.5", int64(500)}, 5)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)

	_, err = parseReply([]interface{}{int64(1), int64(2)}, 5)
	assert.ErrorIs(t, err, ErrBadReply)

	_, err = parseReply([]interface{}{int64(1), "nan?", int64(0)}, 5)
	assert.ErrorIs(t, err, ErrBadReply)
}
