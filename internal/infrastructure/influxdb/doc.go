// Package influxdb writes publish telemetry to InfluxDB v2.
//
// The Client implements publisher.Observer: every publish attempt becomes a
// point in the "publish" measurement, tagged with backend and outcome. Broker
// connectivity changes are written to the "broker" measurement.
//
// Writes are non-blocking and batched by github.com/influxdata/influxdb-client-go/v2;
// failures are reported asynchronously through SetOnError.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
package influxdb
