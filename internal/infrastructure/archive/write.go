package archive

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStreamPoint mirrors one data point from a stream to the archive.
//
// The write is non-blocking; data is batched and sent asynchronously. The
// point's own timestamp is used, not the wall clock, so delayed ingestion
// lands at the right place in the archive.
//
// Parameters:
//   - streamID: The stream the point belongs to (e.g., "sensor-temp")
//   - origin: "observed" or "reconstructed"
//   - confidence: The point's confidence score (0..1)
//   - fields: The point's numeric payload fields
//   - ts: The point's timestamp
//
// Example:
//
//	client.WriteStreamPoint("sensor-temp", "observed", 1.0,
//	    map[string]interface{}{"value": 21.5}, ts)
func (c *Client) WriteStreamPoint(streamID, origin string, confidence float64, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if len(fields) == 0 {
		return
	}

	all := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		all[k] = v
	}
	all["confidence"] = confidence

	point := write.NewPoint(
		"stream_points",
		map[string]string{
			"stream_id": streamID,
			"origin":    origin,
		},
		all,
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WriteFusedTime mirrors one fused time estimate to the archive.
//
// Used for tracking source agreement and clock quality over time.
//
// Parameters:
//   - sourceID: The best contributing source for this estimate
//   - offsetMS: Fused timestamp minus local clock, in milliseconds
//   - accuracy: Estimated accuracy in seconds
//   - quality: The estimate's quality score (0..1)
func (c *Client) WriteFusedTime(sourceID string, offsetMS int64, accuracy, quality float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"fused_time",
		map[string]string{
			"source_id": sourceID,
		},
		map[string]interface{}{
			"offset_ms": offsetMS,
			"accuracy":  accuracy,
			"quality":   quality,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
