package publisher

import "errors"

// Publish failure classes.
var (
	// ErrConnectionUnavailable is returned when no broker connection exists.
	ErrConnectionUnavailable = errors.New("publisher: connection unavailable")

	// ErrPublishRejected is returned when the broker or client library
	// declines or fails the send, including timeouts.
	ErrPublishRejected = errors.New("publisher: publish rejected")

	// ErrInvalidTopic is returned for an empty or illegal topic.
	ErrInvalidTopic = errors.New("publisher: invalid topic")
)

// Result classifies a publish attempt.
type Result string

// Publish results, used as metric labels and history values.
const (
	ResultPublished             Result = "published"
	ResultInvalidTopic          Result = "invalid_topic"
	ResultConnectionUnavailable Result = "connection_unavailable"
	ResultPublishRejected       Result = "publish_rejected"
)

// ResultOf maps an error returned by Gateway.Publish onto its Result.
// Errors outside the taxonomy count as rejected.
func ResultOf(err error) Result {
	switch {
	case err == nil:
		return ResultPublished
	case errors.Is(err, ErrInvalidTopic):
		return ResultInvalidTopic
	case errors.Is(err, ErrConnectionUnavailable):
		return ResultConnectionUnavailable
	default:
		return ResultPublishRejected
	}
}
