package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const TraceIDKey contextKey = "trace_id"
const WorkspaceIDKey contextKey = "workspace_id"

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(TraceIDKey).(string); ok {
		return id
	}
	return ""
}

func WithWorkspaceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, WorkspaceIDKey, id)
}

func GetWorkspaceID(ctx context.Context) string {
	if id, ok := ctx.Value(WorkspaceIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns the default logger annotated with whatever request
// identifiers the context carries.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if ctx == nil {
		return l
	}
	if id := GetTraceID(ctx); id != "" {
		l = l.With("trace_id", id)
	}
	if ws := GetWorkspaceID(ctx); ws != "" {
		l = l.With("workspace", ws)
	}
	return l
}
