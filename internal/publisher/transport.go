package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/mqttgate/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttgate/internal/infrastructure/nats"
)

// mqttClient is the subset of *mqtt.Client used by MQTTTransport.
type mqttClient interface {
	PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
	QoS() byte
	Close() error
}

// MQTTTransport publishes through the paho-backed mqtt client using the
// client's configured QoS.
type MQTTTransport struct {
	client   mqttClient
	retained bool
}

// NewMQTTTransport wraps client. When retained is set every message is
// published with the retain flag.
func NewMQTTTransport(client mqttClient, retained bool) *MQTTTransport {
	return &MQTTTransport{client: client, retained: retained}
}

// Publish implements Transport.
func (t *MQTTTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	err := t.client.PublishContext(ctx, topic, payload, t.client.QoS(), t.retained)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mqtt.ErrInvalidTopic):
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	case errors.Is(err, mqtt.ErrNotConnected):
		return fmt.Errorf("%w: %w", ErrConnectionUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrPublishRejected, err)
	}
}

// IsConnected implements Transport.
func (t *MQTTTransport) IsConnected() bool { return t.client.IsConnected() }

// Close implements Transport.
func (t *MQTTTransport) Close() error { return t.client.Close() }

// natsClient is the subset of *nats.Client used by NATSTransport.
type natsClient interface {
	Publish(ctx context.Context, subject string, data []byte) error
	IsConnected() bool
	Close() error
}

// NATSTransport publishes through NATS core, mapping topics to subjects
// with nats.SubjectFromTopic.
type NATSTransport struct {
	client natsClient
}

// NewNATSTransport wraps client.
func NewNATSTransport(client natsClient) *NATSTransport {
	return &NATSTransport{client: client}
}

// Publish implements Transport.
func (t *NATSTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	subject, err := nats.SubjectFromTopic(topic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}

	err = t.client.Publish(ctx, subject, payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrInvalidSubject):
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	case errors.Is(err, nats.ErrNotConnected):
		return fmt.Errorf("%w: %w", ErrConnectionUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrPublishRejected, err)
	}
}

// IsConnected implements Transport.
func (t *NATSTransport) IsConnected() bool { return t.client.IsConnected() }

// Close implements Transport.
func (t *NATSTransport) Close() error { return t.client.Close() }
