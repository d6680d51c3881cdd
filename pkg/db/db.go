package db

import (
	"context"
	"time"

	"github.com/smallbiznis/vatdesk/internal/config"
	"github.com/smallbiznis/vatdesk/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("db",
	fx.Provide(NewFromConfig),
	fx.Invoke(registerHooks),
)

// Open connects using the configured dialect and applies pool limits.
func Open(cfg config.Config, log *zap.Logger, debug bool) (*gorm.DB, error) {
	dialect, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialect, &gorm.Config{
		Logger:         logger.NewGormLogger(log, debug),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConn)
	}
	if cfg.DBMaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConn)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	}
	if cfg.DBConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTime) * time.Second)
	}

	return conn, nil
}

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Tracer *sdktrace.TracerProvider `optional:"true"`
}

// NewFromConfig opens the database and, when tracing is installed, records a span per query.
func NewFromConfig(p Params) (*gorm.DB, error) {
	conn, err := Open(p.Cfg, p.Log, !p.Cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	if p.Tracer != nil {
		plugin := otelgorm.NewPlugin(
			otelgorm.WithTracerProvider(p.Tracer),
			otelgorm.WithDBName(p.Cfg.DBName),
			otelgorm.WithoutQueryVariables(),
		)
		if err := conn.Use(plugin); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

func registerHooks(lc fx.Lifecycle, conn *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}
