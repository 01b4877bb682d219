package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/mqttgate/internal/infrastructure/mqtt"
)

const (
	// DefaultTimeout bounds a publish when Deps.Timeout is zero.
	DefaultTimeout = 5 * time.Second

	// MaxPayloadSize is the largest payload the gateway will send (1 MiB).
	MaxPayloadSize = 1 << 20
)

// Transport is a broker backend.
//
// Publish must honour ctx and return promptly once it is done. Errors should
// already be classified with the sentinels in this package; anything else is
// treated as ErrPublishRejected.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Close() error
}

// Deps holds the Gateway's dependencies.
type Deps struct {
	Transport Transport

	// Backend names the transport ("mqtt" or "nats") in outcomes.
	Backend string

	// Timeout bounds each publish. Zero means DefaultTimeout.
	Timeout time.Duration

	Observers []Observer
}

// Gateway publishes messages through a single Transport.
//
// A Gateway is safe for concurrent use; its observer list is fixed at
// construction.
type Gateway struct {
	transport Transport
	backend   string
	timeout   time.Duration
	observers []Observer
	now       func() time.Time
}

// New creates a Gateway.
func New(deps Deps) (*Gateway, error) {
	if deps.Transport == nil {
		return nil, fmt.Errorf("publisher: transport is required")
	}
	if deps.Timeout < 0 {
		return nil, fmt.Errorf("publisher: timeout must not be negative")
	}

	timeout := deps.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	observers := make([]Observer, 0, len(deps.Observers))
	for _, o := range deps.Observers {
		if o != nil {
			observers = append(observers, o)
		}
	}

	return &Gateway{
		transport: deps.Transport,
		backend:   deps.Backend,
		timeout:   timeout,
		observers: observers,
		now:       time.Now,
	}, nil
}

// Publish sends payload to topic.
//
// It returns nil once the transport reports success, or an error wrapping
// exactly one of ErrInvalidTopic, ErrConnectionUnavailable or
// ErrPublishRejected. Each call results in at most one transport publish.
func (g *Gateway) Publish(ctx context.Context, topic string, payload []byte) error {
	start := g.now()

	err := g.publish(ctx, topic, payload)

	outcome := Outcome{
		Topic:       topic,
		PayloadSize: len(payload),
		Result:      ResultOf(err),
		Err:         err,
		Backend:     g.backend,
		RequestID:   RequestIDFromContext(ctx),
		Duration:    g.now().Sub(start),
		Time:        start,
	}
	for _, o := range g.observers {
		o.ObservePublish(ctx, outcome)
	}

	return err
}

func (g *Gateway) publish(ctx context.Context, topic string, payload []byte) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds %d bytes", ErrPublishRejected, len(payload), MaxPayloadSize)
	}
	if !g.transport.IsConnected() {
		return fmt.Errorf("%w: %s backend is not connected", ErrConnectionUnavailable, g.backend)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return classify(g.transport.Publish(ctx, topic, payload))
}

// classify guarantees err carries one of the taxonomy sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidTopic),
		errors.Is(err, ErrConnectionUnavailable),
		errors.Is(err, ErrPublishRejected):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPublishRejected, err)
	}
}

// ValidateTopic checks topic against MQTT topic-name rules: non-empty, valid
// UTF-8, at most 65535 bytes, no NUL and no wildcards.
func ValidateTopic(topic string) error {
	if err := mqtt.ValidateTopicName(topic); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	return nil
}

// IsConnected reports whether the backend currently has a broker connection.
func (g *Gateway) IsConnected() bool {
	return g.transport.IsConnected()
}

// Backend returns the configured backend name.
func (g *Gateway) Backend() string {
	return g.backend
}

// Close closes the underlying transport.
func (g *Gateway) Close() error {
	return g.transport.Close()
}
