package nats

import "errors"

// Domain errors for NATS operations.
var (
	// ErrNotConnected is returned when an operation requires a live connection.
	ErrNotConnected = errors.New("nats: not connected")

	// ErrConnectionFailed is returned when the initial connection cannot be made.
	ErrConnectionFailed = errors.New("nats: connection failed")

	// ErrPublishFailed is returned when the server or client library fails a publish.
	ErrPublishFailed = errors.New("nats: publish failed")

	// ErrInvalidSubject is returned for subjects that cannot be published to.
	ErrInvalidSubject = errors.New("nats: invalid subject")

	// ErrPayloadTooLarge is returned when a payload exceeds the server's max payload.
	ErrPayloadTooLarge = errors.New("nats: payload too large")
)
