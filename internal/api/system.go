package api

import (
	"context"
	"net/http"
	"time"
)

// statusQueryTimeout bounds the history lookup made by /api/v1/status.
const statusQueryTimeout = 2 * time.Second

// handleHealth reports whether the broker connection is up.
// Load balancers and orchestrators treat the 503 as "take out of rotation".
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := "ok", http.StatusOK
	if !s.publisher.IsConnected() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"backend": s.publisher.Backend(),
		"version": s.version,
	})
}

// handleStatus returns a runtime snapshot of the gateway.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	historyStatus := map[string]any{"enabled": s.history != nil}
	if s.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), statusQueryTimeout)
		defer cancel()

		counts, err := s.history.CountByOutcome(ctx)
		if err != nil {
			s.logger.Warn("status: counting history outcomes", "error", err)
		} else {
			historyStatus["outcomes"] = counts
		}
	}

	watchStatus := map[string]any{"enabled": s.watch != nil}
	if s.watch != nil {
		watchStatus["clients"] = s.watch.ClientCount()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":        s.version,
		"started_at":     s.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"broker": map[string]any{
			"backend":   s.publisher.Backend(),
			"connected": s.publisher.IsConnected(),
		},
		"history": historyStatus,
		"watch":   watchStatus,
	})
}
