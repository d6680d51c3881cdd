package logger

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/vatdesk/internal/auditcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool
}

// New builds the process logger, installs it as zap's global and flushes it on stop.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	logger, err := build(cfg)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.StopHook(func() {
			_ = logger.Sync()
		}))
	}
	return logger, nil
}

func build(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Debug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = "json"
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		zapCfg.Encoding = "console"
	}
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Debug {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Environment),
		zap.String("version", cfg.Version),
	), nil
}

// FromContext returns the global logger tagged with the request id and actor.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := make([]zap.Field, 0, 3)
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorType != "" {
		fields = append(fields, zap.String("actor_type", actorType), zap.String("actor_id", actorID))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
