// Package watch relays broker traffic to WebSocket clients.
//
// The Hub subscribes once to a broad MQTT filter (watch.filter, default "#")
// and fans each received message out to connected clients. A client chooses
// what it sees by sending MQTT topic filters:
//
//	{"type":"subscribe","id":"1","payload":{"channels":["sensors/+/temp"]}}
//
// and receives:
//
//	{"type":"message","topic":"sensors/kitchen/temp","payload":"21.5","timestamp":"..."}
//
// Non-UTF-8 payloads are sent base64-encoded with "encoding":"base64".
// Each client has a bounded send buffer; a slow client misses messages
// rather than stalling the relay.
package watch
