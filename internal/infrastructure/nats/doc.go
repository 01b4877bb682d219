// Package nats provides the NATS core connection used when mqttgate runs
// with broker.type "nats".
//
// Only core publish is used: each Publish writes the message and then flushes
// under the caller's context, so a server that is unreachable or slow surfaces
// as an error instead of a silently buffered message. Reconnection is handled
// by github.com/nats-io/nats.go.
//
// MQTT-style topics are mapped to subjects with SubjectFromTopic:
//
//	sensors/kitchen/temp -> sensors.kitchen.temp
package nats
