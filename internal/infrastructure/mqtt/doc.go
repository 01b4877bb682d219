// Package mqtt provides MQTT client connectivity for mqttgate.
//
// This package manages:
//   - Connection to the broker with paho's auto-reconnect
//   - Message publishing bounded by a caller context
//   - Topic subscriptions with wildcard support (used by the watch relay)
//   - Last Will and Testament (LWT) for offline detection
//   - Topic name/filter validation and wildcard matching
//
// The MQTT protocol itself, reconnect backoff, TLS and QoS persistence are
// handled by github.com/eclipse/paho.mqtt.golang; this package only configures
// and wraps it.
//
// # Status Topic
//
// The client publishes retained JSON on mqttgate/status:
//
//	{"status":"online","client_id":"mqttgate","timestamp":"..."}
//	{"status":"offline","client_id":"mqttgate","reason":"graceful_shutdown","timestamp":"..."}
//
// The LWT carries reason "unexpected_disconnect".
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishContext(ctx, "sensors/kitchen/temp", []byte("21.5"), 0, false)
package mqtt
