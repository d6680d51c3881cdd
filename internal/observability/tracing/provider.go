// Package tracing installs the OpenTelemetry tracer provider and the span helpers
// used by the HTTP layer, the services and gorm.
package tracing

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/vatdesk/internal/auditcontext"
	"github.com/smallbiznis/vatdesk/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewTracerProvider exports spans over OTLP/gRPC when OTLP_ENDPOINT is set.
// Without an endpoint spans are still created, so request ids flow through, but nothing is exported.
func NewTracerProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
			attribute.String("service.version", cfg.AppVersion),
			attribute.String("deployment.environment", cfg.Environment),
		)),
		sdktrace.WithSpanProcessor(requestSpanProcessor{}),
	}

	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return tp.Shutdown(ctx)
			},
		})
	}
	if endpoint != "" {
		log.Info("trace export enabled", zap.String("endpoint", endpoint))
	}
	return tp, nil
}

// requestSpanProcessor stamps every span with the request id and actor of its context.
type requestSpanProcessor struct{}

func (requestSpanProcessor) OnStart(ctx context.Context, s sdktrace.ReadWriteSpan) {
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		s.SetAttributes(attribute.String("request_id", requestID))
	}
	if actorType, actorID := auditcontext.ActorFromContext(ctx); actorType != "" {
		s.SetAttributes(
			attribute.String("actor.type", actorType),
			attribute.String("actor.id", actorID),
		)
	}
}

func (requestSpanProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (requestSpanProcessor) Shutdown(context.Context) error { return nil }

func (requestSpanProcessor) ForceFlush(context.Context) error { return nil }
