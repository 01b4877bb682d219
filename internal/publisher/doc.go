// Package publisher implements the Publisher Gateway: the single component
// through which mqttgate sends a message to the broker.
//
// A Gateway wraps one Transport (the MQTT or NATS backend), validates the
// topic, bounds every send with a timeout, and reports failures using three
// sentinel errors:
//
//   - ErrInvalidTopic: the topic is empty or not a legal topic name
//   - ErrConnectionUnavailable: no broker connection exists
//   - ErrPublishRejected: the broker or client library declined or failed the send
//
// Callers match them with errors.Is. The backend's own error stays in the
// chain for logging.
//
// After every attempt the Gateway notifies its Observers (metrics, history,
// telemetry) with an Outcome. Observers never change the result.
//
// One Gateway is created at startup, shared by all requests, and closed at
// shutdown:
//
//	gw, err := publisher.New(publisher.Deps{
//	    Transport: publisher.NewMQTTTransport(mqttClient, cfg.Publish.Retained),
//	    Backend:   "mqtt",
//	    Timeout:   cfg.GetPublishTimeout(),
//	})
//	...
//	err = gw.Publish(ctx, "sensors/kitchen/temp", []byte("21.5"))
package publisher
