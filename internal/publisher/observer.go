package publisher

import (
	"context"
	"time"
)

// Outcome describes one publish attempt.
type Outcome struct {
	Topic       string
	PayloadSize int
	Result      Result
	Err         error
	Backend     string
	RequestID   string
	Duration    time.Duration
	Time        time.Time
}

// Observer receives the outcome of every publish attempt.
//
// ObservePublish is called synchronously on the publishing goroutine, so
// implementations must not block.
type Observer interface {
	ObservePublish(ctx context.Context, o Outcome)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, o Outcome)

// ObservePublish calls f(ctx, o).
func (f ObserverFunc) ObservePublish(ctx context.Context, o Outcome) {
	f(ctx, o)
}

type requestIDKey struct{}

// ContextWithRequestID attaches an HTTP request ID so it is carried into
// Outcome.RequestID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
