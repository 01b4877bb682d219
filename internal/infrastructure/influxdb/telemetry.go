package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/mqttgate/internal/publisher"
)

const (
	measurementPublish = "publish"
	measurementBroker  = "broker"
)

// ObservePublish implements publisher.Observer.
//
// Tags stay low-cardinality (backend, outcome); the topic is a field.
func (c *Client) ObservePublish(_ context.Context, o publisher.Outcome) {
	if !c.IsConnected() {
		return
	}

	ts := o.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	c.writer.WritePoint(write.NewPoint(
		measurementPublish,
		map[string]string{
			"backend": o.Backend,
			"outcome": string(o.Result),
		},
		map[string]interface{}{
			"topic":         o.Topic,
			"payload_bytes": o.PayloadSize,
			"duration_ms":   float64(o.Duration.Microseconds()) / 1000,
		},
		ts,
	))
}

// WriteBrokerStatus records a broker connectivity change.
func (c *Client) WriteBrokerStatus(backend string, connected bool) {
	if !c.IsConnected() {
		return
	}

	c.writer.WritePoint(write.NewPoint(
		measurementBroker,
		map[string]string{"backend": backend},
		map[string]interface{}{"connected": connected},
		time.Now(),
	))
}
