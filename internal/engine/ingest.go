package engine

import (
	"encoding/json"
	"fmt"

	"github.com/chronofuse/chronofuse-core/internal/infrastructure/mqtt"
)

// ingestEnvelope is the wrapped form of an MQTT ingest payload.
type ingestEnvelope struct {
	Points []PointInput `json:"points"`
}

// handleIngestMessage processes one message from chronofuse/ingest/+.
//
// The payload is either a bare JSON array of points or an envelope with a
// "points" array:
//
//	[{"timestamp": 1700000000000, "payload": {"value": 21.5}}]
//	{"points": [{"timestamp": 1700000000000, "payload": {"value": 21.5}}]}
//
// Errors are returned to the MQTT client wrapper, which logs them; a bad
// message never disturbs the subscription.
func (e *Engine) handleIngestMessage(topic string, payload []byte) error {
	streamID := mqtt.StreamFromIngestTopic(topic)
	if streamID == "" {
		return fmt.Errorf("ingest: topic %q carries no stream ID", topic)
	}

	inputs, err := decodeIngestPayload(payload)
	if err != nil {
		return fmt.Errorf("ingest: stream %q: %w", streamID, err)
	}
	if len(inputs) == 0 {
		return nil
	}

	stored, err := e.AddDataPoints(streamID, inputs)
	if err != nil {
		return fmt.Errorf("ingest: stream %q: %w", streamID, err)
	}

	e.logger.Debug("mqtt ingest stored",
		"stream", streamID,
		"received", len(inputs),
		"stored", stored,
	)
	return nil
}

// decodeIngestPayload accepts both the bare array and envelope forms.
func decodeIngestPayload(payload []byte) ([]PointInput, error) {
	var bare []PointInput
	if err := json.Unmarshal(payload, &bare); err == nil {
		return bare, nil
	}

	var envelope ingestEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("payload is neither a point array nor an envelope: %w", err)
	}
	return envelope.Points, nil
}
