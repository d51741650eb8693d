package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chronofuse/chronofuse-core/internal/engine"
	"github.com/chronofuse/chronofuse-core/internal/temporal"
)

// createStreamRequest is the JSON body for stream creation. Retention is
// expressed in seconds to match the configuration file; zero means keep
// points until evicted by max_points.
type createStreamRequest struct {
	ID            string `json:"id"`
	Resolution    int64  `json:"resolution"`
	Retention     int    `json:"retention"`
	MaxPoints     int    `json:"max_points"`
	Interpolation string `json:"interpolation"`
}

// handleListStreams returns every registered stream with its statistics.
func (s *Server) handleListStreams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"streams": s.engine.Streams(),
	})
}

// handleCreateStream registers a new stream at runtime.
func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	var req createStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	method, err := temporal.ParseInterpolationMethod(req.Interpolation)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	cfg := temporal.StreamConfig{
		ID:            req.ID,
		Resolution:    req.Resolution,
		Retention:     time.Duration(req.Retention) * time.Second,
		MaxPoints:     req.MaxPoints,
		Interpolation: method,
	}

	if err := s.engine.RegisterStream(cfg); err != nil {
		switch {
		case errors.Is(err, temporal.ErrDuplicateStream):
			writeConflict(w, "stream already exists: "+req.ID)
		case errors.Is(err, temporal.ErrInvalidConfig):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, err.Error())
		}
		return
	}

	info, err := s.engine.Stream(cfg.ID)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// handleGetStream returns one stream's configuration and statistics.
func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := s.engine.Stream(id)
	if err != nil {
		if errors.Is(err, temporal.ErrUnknownStream) {
			writeNotFound(w, "unknown stream: "+id)
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleDeleteStream unregisters a stream and discards its points.
func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.engine.UnregisterStream(id); err != nil {
		if errors.Is(err, temporal.ErrUnknownStream) {
			writeNotFound(w, "unknown stream: "+id)
			return
		}
		writeInternalError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAddPoints ingests a batch of points into a stream. The body is
// either a bare JSON array of points or a {"points": [...]} envelope, the
// same shapes the MQTT ingest topic accepts.
func (s *Server) handleAddPoints(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := decodePointsBody(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(body) == 0 {
		writeBadRequest(w, "no points provided")
		return
	}

	stored, err := s.engine.AddDataPoints(id, body)
	if err != nil {
		switch {
		case errors.Is(err, temporal.ErrUnknownStream):
			writeNotFound(w, "unknown stream: "+id)
		case errors.Is(err, engine.ErrInvalidPoint):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stored": stored,
	})
}

// decodePointsBody parses the request body as either a bare array of
// points or a {"points": [...]} envelope.
func decodePointsBody(r *http.Request) ([]engine.PointInput, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, errors.New("invalid JSON body: " + err.Error())
	}

	var points []engine.PointInput
	if err := json.Unmarshal(raw, &points); err == nil {
		return points, nil
	}

	var envelope struct {
		Points []engine.PointInput `json:"points"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.New("body must be a point array or a points envelope")
	}
	return envelope.Points, nil
}

// handlePointAt answers a point-in-time query. The stream's interpolation
// method applies when no exact bucket matches the requested timestamp.
//
// Query parameters:
//   - ts: Timestamp in milliseconds since the Unix epoch (required)
func (s *Server) handlePointAt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ts, err := queryInt64(r, "ts")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	point, err := s.engine.DataAtTime(id, ts)
	if err != nil {
		switch {
		case errors.Is(err, temporal.ErrUnknownStream):
			writeNotFound(w, "unknown stream: "+id)
		case errors.Is(err, temporal.ErrNoData):
			writeNotFound(w, "no data at requested time")
		default:
			writeInternalError(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, point)
}

// handleRange answers a range query over [start, end].
//
// Query parameters:
//   - start: Range start in milliseconds (required)
//   - end: Range end in milliseconds (required)
//   - fill: When "true", gaps are bridged by synthesized points that are
//     not stored
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	start, err := queryInt64(r, "start")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	end, err := queryInt64(r, "end")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	fill := r.URL.Query().Get("fill") == "true"

	points, err := s.engine.DataInRange(id, start, end, fill)
	if err != nil {
		switch {
		case errors.Is(err, temporal.ErrUnknownStream):
			writeNotFound(w, "unknown stream: "+id)
		case errors.Is(err, temporal.ErrInvalidRange):
			writeBadRequest(w, "end must not be before start")
		default:
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stream_id": id,
		"start":     start,
		"end":       end,
		"filled":    fill,
		"count":     len(points),
		"points":    points,
	})
}

// handleGaps reports the interior gaps of a stream within [start, end].
func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	start, err := queryInt64(r, "start")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	end, err := queryInt64(r, "end")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	gaps, err := s.engine.Gaps(id, start, end)
	if err != nil {
		switch {
		case errors.Is(err, temporal.ErrUnknownStream):
			writeNotFound(w, "unknown stream: "+id)
		case errors.Is(err, temporal.ErrInvalidRange):
			writeBadRequest(w, "end must not be before start")
		default:
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stream_id": id,
		"gaps":      gaps,
	})
}

// reconstructRequest is the JSON body for a reconstruction commit.
type reconstructRequest struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// handleReconstruct synthesizes points for a stream's gaps in [start, end]
// and stores them.
func (s *Server) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req reconstructRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	stored, err := s.engine.CommitReconstruction(id, req.Start, req.End)
	if err != nil {
		switch {
		case errors.Is(err, temporal.ErrUnknownStream):
			writeNotFound(w, "unknown stream: "+id)
		case errors.Is(err, temporal.ErrInvalidRange):
			writeBadRequest(w, "end must not be before start")
		default:
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stream_id": id,
		"stored":    stored,
	})
}

// queryInt64 parses a required int64 query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, errors.New("missing required query parameter: " + name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name + ": must be an integer timestamp in milliseconds")
	}
	return v, nil
}
