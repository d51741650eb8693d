package api

import "net/http"

// handleGetTime returns the current fused time, drift-compensated to the
// moment of the request. When no sync cycle has completed yet the local
// fallback estimate is returned instead of an error.
func (s *Server) handleGetTime(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CurrentTime())
}

// handleTimeStatus returns the sync scheduler's state, including the last
// cycle's per-source results.
func (s *Server) handleTimeStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.TimeStatus())
}
