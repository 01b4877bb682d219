package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/mqttgate/internal/history"
	"github.com/nerrad567/mqttgate/internal/publisher"
)

// validOutcomes lists the accepted values of the outcome filter.
var validOutcomes = map[string]bool{
	string(publisher.ResultPublished):             true,
	string(publisher.ResultInvalidTopic):          true,
	string(publisher.ResultConnectionUnavailable): true,
	string(publisher.ResultPublishRejected):       true,
}

// handleListHistory returns the publish log, newest first.
//
// Query parameters: topic, outcome, limit (default 50, max 200), offset.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "publish history is disabled")
		return
	}

	q := r.URL.Query()
	filter := history.Filter{
		Topic:   q.Get("topic"),
		Outcome: q.Get("outcome"),
	}

	if filter.Outcome != "" && !validOutcomes[filter.Outcome] {
		writeBadRequest(w, "outcome must be one of published, invalid_topic, connection_unavailable, publish_rejected")
		return
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list publish history", "error", err)
		writeInternalError(w, "failed to list publish history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
