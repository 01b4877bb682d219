package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/mqttgate/internal/publisher"
)

// sendResponsePrefix precedes the echoed message in a successful response.
const sendResponsePrefix = "send message : "

// handleSend publishes the path message to the path topic.
//
// The publish runs synchronously on the request context, so a client that
// goes away cancels an in-flight publish.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	topic, err := url.PathUnescape(chi.URLParam(r, "topic"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidTopic, "topic is not valid percent-encoding")
		return
	}
	message, err := url.PathUnescape(chi.URLParam(r, "message"))
	if err != nil {
		writeBadRequest(w, "message is not valid percent-encoding")
		return
	}

	if err := s.publisher.Publish(r.Context(), topic, []byte(message)); err != nil {
		s.writePublishError(w, r, topic, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	io.WriteString(w, sendResponsePrefix+message)
}

// writePublishError maps a gateway error onto a non-2xx response.
func (s *Server) writePublishError(w http.ResponseWriter, r *http.Request, topic string, err error) {
	requestID := r.Context().Value(ctxKeyRequestID)

	switch {
	case errors.Is(err, publisher.ErrInvalidTopic):
		s.logger.Warn("publish refused: invalid topic",
			"topic", topic, "error", err, "request_id", requestID)
		writeError(w, http.StatusBadRequest, ErrCodeInvalidTopic, err.Error())

	case errors.Is(err, publisher.ErrConnectionUnavailable):
		s.logger.Error("publish failed: broker connection unavailable",
			"topic", topic, "backend", s.publisher.Backend(), "error", err, "request_id", requestID)
		writeError(w, http.StatusServiceUnavailable, ErrCodeConnectionUnavailable, "broker connection unavailable")

	case errors.Is(err, publisher.ErrPublishRejected):
		s.logger.Error("publish failed: rejected by broker",
			"topic", topic, "backend", s.publisher.Backend(), "error", err, "request_id", requestID)
		writeError(w, http.StatusBadGateway, ErrCodePublishRejected, err.Error())

	default:
		s.logger.Error("publish failed",
			"topic", topic, "error", err, "request_id", requestID)
		writeInternalError(w, "publish failed")
	}
}
