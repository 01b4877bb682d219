// Package api implements the HTTP front door for mqttgate.
//
// This package provides:
//   - The publish endpoint /send/{topic}/{message}
//   - Health, status and publish history endpoints under /api/v1
//   - Prometheus exposition on /metrics
//   - The WebSocket watch endpoint (served by the watch package)
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, JWT)
//   - TLS support for production deployments
//
// # Publish Endpoint
//
// Topic and message are taken from the request path, percent-decoded and
// handed to the publisher gateway exactly once per request. On success the
// response is text/plain:
//
//	send message : <message>
//
// Failures never report success. They map to JSON errors:
//
//	400 invalid_topic
//	503 connection_unavailable
//	502 publish_rejected
//
// # Security
//
// When security.jwt.secret is set, /send, /api/v1/history and /api/v1/watch
// require a bearer token signed with HS256, given in the Authorization header
// or the access_token query parameter. Health, status and metrics stay open
// for probes.
package api
