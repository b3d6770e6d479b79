package context

import (
	"context"
	"strings"
)

type (
	runIDKey       struct{}
	requestIDKey   struct{}
	billCycleKey   struct{}
	httpRequestKey struct{}
)

// WithRunID tags the context with the processing run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return withString(ctx, runIDKey{}, runID)
}

func RunIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, runIDKey{})
}

// WithRequestID tags the context with the discount request being processed.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey{})
}

func WithBillCycle(ctx context.Context, billCycle string) context.Context {
	return withString(ctx, billCycleKey{}, billCycle)
}

func BillCycleFromContext(ctx context.Context) string {
	return stringFrom(ctx, billCycleKey{})
}

// WithHTTPRequestID tags the context with the inbound HTTP correlation id.
func WithHTTPRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, httpRequestKey{}, id)
}

func HTTPRequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, httpRequestKey{})
}

func withString(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
