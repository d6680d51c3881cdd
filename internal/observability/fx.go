package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/vatdesk/internal/observability/logger"
	"github.com/smallbiznis/vatdesk/internal/observability/metrics"
	"github.com/smallbiznis/vatdesk/internal/observability/tracing"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		metrics.NewRegistry,
		provideRegisterer,
		provideGatherer,
		metrics.New,
		tracing.NewTracerProvider,
	),
)

func provideRegisterer(reg *prometheus.Registry) prometheus.Registerer { return reg }

func provideGatherer(reg *prometheus.Registry) prometheus.Gatherer { return reg }

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Debug:       cfg.Debug(),
	}
}
