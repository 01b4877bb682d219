package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/mqttgate/internal/infrastructure/config"
	"github.com/nerrad567/mqttgate/internal/infrastructure/logging"
	"github.com/nerrad567/mqttgate/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqttgate/internal/infrastructure/nats"
	"github.com/nerrad567/mqttgate/internal/publisher"
)

// brokerPollInterval is how often connectivity is sampled for backends
// without connection callbacks.
const brokerPollInterval = 5 * time.Second

// backend is a connected broker client and the transport wrapping it.
// Exactly one of mqtt and nats is set.
type backend struct {
	transport publisher.Transport
	mqtt      *mqtt.Client
	nats      *nats.Client
}

// connectBackend dials the broker selected by broker.type.
func connectBackend(cfg *config.Config, log *logging.Logger) (*backend, error) {
	switch cfg.Broker.Type {
	case config.BrokerMQTT:
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		client.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"qos", cfg.MQTT.QoS,
		)
		return &backend{
			transport: publisher.NewMQTTTransport(client, cfg.Publish.Retained),
			mqtt:      client,
		}, nil

	case config.BrokerNATS:
		client, err := nats.Connect(cfg.NATS)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		client.SetLogger(log)
		log.Info("NATS connected", "url", cfg.NATS.URL, "name", cfg.NATS.Name)
		return &backend{
			transport: publisher.NewNATSTransport(client),
			nats:      client,
		}, nil

	default:
		return nil, fmt.Errorf("unknown broker type %q", cfg.Broker.Type)
	}
}

// healthCheck runs the underlying client's health check.
func (b *backend) healthCheck(ctx context.Context) error {
	switch {
	case b.mqtt != nil:
		return b.mqtt.HealthCheck(ctx)
	case b.nats != nil:
		return b.nats.HealthCheck(ctx)
	default:
		return fmt.Errorf("no broker client")
	}
}

// connectivitySink receives broker up/down transitions.
type connectivitySink interface {
	SetBrokerConnected(connected bool)
}

// statusWriter records broker up/down transitions as telemetry.
type statusWriter interface {
	WriteBrokerStatus(backend string, connected bool)
}

// brokerStatus fans broker connectivity out to metrics, telemetry and logs.
type brokerStatus struct {
	backend string
	metrics connectivitySink
	influx  statusWriter // optional
	log     *logging.Logger

	mu    sync.Mutex
	known bool
	last  bool
}

// set records the current connectivity. Only transitions are logged and
// written to telemetry; the gauge is always updated.
func (s *brokerStatus) set(connected bool) {
	s.metrics.SetBrokerConnected(connected)

	s.mu.Lock()
	changed := !s.known || s.last != connected
	s.known, s.last = true, connected
	s.mu.Unlock()

	if !changed {
		return
	}
	if s.influx != nil {
		s.influx.WriteBrokerStatus(s.backend, connected)
	}
	if connected {
		s.log.Info("broker connected", "backend", s.backend)
	} else {
		s.log.Warn("broker disconnected", "backend", s.backend)
	}
}

// poll samples gw until ctx is cancelled.
func (s *brokerStatus) poll(ctx context.Context, gw interface{ IsConnected() bool }) error {
	ticker := time.NewTicker(brokerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.set(gw.IsConnected())
		}
	}
}
