package appctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	TraceIDContextKey contextKey = "trace_id"
	GuildIDContextKey contextKey = "guild_id"
)

// SetTraceID tags the context with the ID used to correlate logs for one event
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(TraceIDContextKey).(string)
	return traceID, ok && traceID != ""
}

func SetGuildID(ctx context.Context, guildID string) context.Context {
	return context.WithValue(ctx, GuildIDContextKey, guildID)
}

func GetGuildID(ctx context.Context) (string, bool) {
	guildID, ok := ctx.Value(GuildIDContextKey).(string)
	return guildID, ok && guildID != ""
}

// Logger decorates base with the trace and guild IDs carried by ctx
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	logger := base
	if traceID, ok := GetTraceID(ctx); ok {
		logger = logger.With(zap.String("trace_id", traceID))
	}
	if guildID, ok := GetGuildID(ctx); ok {
		logger = logger.With(zap.String("guild_id", guildID))
	}
	return logger
}
