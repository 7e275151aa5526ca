package gateway

import "context"

type contextKey int

const (
	retriedKey contextKey = iota
	rawPayloadKey
)

// withRetried marks the request as already having gone through one
// recovery cycle. A marked request is never recovered again.
func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey).(bool)
	return v
}

// WithRawPayload marks requests built with ctx as carrying a raw body whose
// Content-Type the authenticator must not default to JSON.
func WithRawPayload(ctx context.Context) context.Context {
	return context.WithValue(ctx, rawPayloadKey, true)
}

func isRawPayload(ctx context.Context) bool {
	v, _ := ctx.Value(rawPayloadKey).(bool)
	return v
}
