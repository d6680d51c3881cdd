package auditcontext

import (
	"context"
	"strings"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorTypeKey
	actorIDKey
	ipAddressKey
	userAgentKey
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey)
}

// WithActor records who issued the current command.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = withString(ctx, actorTypeKey, actorType)
	return withString(ctx, actorIDKey, actorID)
}

func ActorFromContext(ctx context.Context) (string, string) {
	return stringFrom(ctx, actorTypeKey), stringFrom(ctx, actorIDKey)
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return withString(ctx, ipAddressKey, ip)
}

func IPAddressFromContext(ctx context.Context) string {
	return stringFrom(ctx, ipAddressKey)
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return withString(ctx, userAgentKey, ua)
}

func UserAgentFromContext(ctx context.Context) string {
	return stringFrom(ctx, userAgentKey)
}

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
