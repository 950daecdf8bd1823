package middleware

import (
	"context"

	"grocer/internal/model"
)

type contextKey string

const (
	ctxRequestID contextKey = "request_id"
	ctxActor     contextKey = "actor"
)

// RequestIDFromContext returns the id assigned by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the authenticated caller set by Auth.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	if ctx == nil {
		return model.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(model.Actor)
	return actor, ok
}

// WithActor injects the caller into the context.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, ctxActor, actor)
}
