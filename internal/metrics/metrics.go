// Package metrics exposes Prometheus metrics for publish attempts and broker
// connectivity.
package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/mqttgate/internal/publisher"
)

const Namespace = "mqttgate"

// Metrics records publish outcomes. It implements publisher.Observer.
type Metrics struct {
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	payloadBytes    prometheus.Histogram
	brokerConnected prometheus.Gauge
}

// New creates a Metrics instance and registers all collectors with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "publish_total",
			Help:      "Total publish attempts by backend and outcome",
		}, []string{"backend", "outcome"}),
		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent in the publisher gateway per attempt",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"backend"}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "publish_payload_bytes",
			Help:      "Payload size of publish attempts",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 9), // 16B .. 1MiB
		}),
		brokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "broker_connected",
			Help:      "1 when the broker connection is up, 0 otherwise",
		}),
	}

	err := errors.Join(
		reg.Register(m.publishTotal),
		reg.Register(m.publishDuration),
		reg.Register(m.payloadBytes),
		reg.Register(m.brokerConnected),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObservePublish implements publisher.Observer.
func (m *Metrics) ObservePublish(_ context.Context, o publisher.Outcome) {
	m.publishTotal.WithLabelValues(o.Backend, string(o.Result)).Inc()
	m.publishDuration.WithLabelValues(o.Backend).Observe(o.Duration.Seconds())
	m.payloadBytes.Observe(float64(o.PayloadSize))
}

// SetBrokerConnected updates the broker connectivity gauge.
func (m *Metrics) SetBrokerConnected(connected bool) {
	if connected {
		m.brokerConnected.Set(1)
		return
	}
	m.brokerConnected.Set(0)
}

// RegisterHistoryDropped exposes the publish history drop count as a counter
// read from dropped at scrape time.
func RegisterHistoryDropped(reg prometheus.Registerer, dropped func() int64) error {
	return reg.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "history_dropped_total",
		Help:      "Publish history records discarded because the write queue was full",
	}, func() float64 {
		return float64(dropped())
	}))
}
