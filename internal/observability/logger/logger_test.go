package logger

import (
	"context"
	"testing"

	"github.com/smallbiznis/vatdesk/internal/auditcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildRejectsUnknownLevel(t *testing.T) {
	_, err := build(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestBuildAcceptsConsoleFormat(t *testing.T) {
	log, err := build(Config{Level: "debug", Format: "console", Debug: true, ServiceName: "vatdesk"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestWithContextAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := auditcontext.WithRequestID(context.Background(), "req-1")
	ctx = auditcontext.WithActor(ctx, "user", "alice")
	WithContext(ctx, base).Info("vat return filed")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user", fields["actor_type"])
	assert.Equal(t, "alice", fields["actor_id"])
}

func TestWithContextLeavesBareContextAlone(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithContext(context.Background(), zap.New(core)).Info("seed skipped")

	require.Equal(t, 1, logs.Len())
	assert.Empty(t, logs.All()[0].Context)
}
