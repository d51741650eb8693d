package temporal

import (
	"fmt"
	"strings"
	"time"
)

// Origin identifies whether a data point was observed or synthesized.
type Origin string

// Origin values.
const (
	OriginObserved      Origin = "observed"
	OriginReconstructed Origin = "reconstructed"
)

// InterpolationMethod selects how PointAt answers queries that fall
// between buckets.
type InterpolationMethod string

// Interpolation methods.
const (
	InterpolationNearest InterpolationMethod = "nearest"
	InterpolationLinear  InterpolationMethod = "linear"
	InterpolationCubic   InterpolationMethod = "cubic"
	InterpolationStep    InterpolationMethod = "step"
)

// ParseInterpolationMethod converts a config string to an
// InterpolationMethod. Empty defaults to linear.
func ParseInterpolationMethod(s string) (InterpolationMethod, error) {
	switch strings.ToLower(s) {
	case "":
		return InterpolationLinear, nil
	case "nearest":
		return InterpolationNearest, nil
	case "linear":
		return InterpolationLinear, nil
	case "cubic":
		return InterpolationCubic, nil
	case "step":
		return InterpolationStep, nil
	default:
		return "", fmt.Errorf("%w: unknown interpolation method %q", ErrInvalidConfig, s)
	}
}

// DataPoint is one record in a stream. Points are owned exclusively by
// their stream; ordering by timestamp is the only required invariant.
type DataPoint struct {
	// Timestamp is the point's time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// Payload holds named numeric and text fields. Numeric fields are
	// float64; anything else is carried opaquely.
	Payload map[string]any `json:"payload"`

	// Origin records whether the point was observed or reconstructed.
	Origin Origin `json:"origin"`

	// Confidence (0..1) is 1.0 for observed points; reconstructed points
	// carry the confidence of their synthesis.
	Confidence float64 `json:"confidence"`
}

// DeepCopy returns an independent copy of the point, including its payload.
func (p DataPoint) DeepCopy() DataPoint {
	clone := p
	if p.Payload != nil {
		clone.Payload = make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			clone.Payload[k] = v
		}
	}
	return clone
}

// StreamConfig describes one data stream.
type StreamConfig struct {
	// ID uniquely names the stream.
	ID string `json:"id"`

	// Resolution is the bucket width in milliseconds. Incoming timestamps
	// are rounded down to a multiple of the resolution.
	Resolution int64 `json:"resolution"`

	// Retention bounds how long points are kept, relative to the newest
	// point in the stream. Zero disables age-based eviction.
	Retention time.Duration `json:"retention"`

	// MaxPoints caps the number of buckets held. Zero disables the cap.
	MaxPoints int `json:"max_points"`

	// Interpolation selects the PointAt behaviour between buckets.
	Interpolation InterpolationMethod `json:"interpolation"`
}

// Validate checks the configuration for errors.
func (c StreamConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: stream ID is required", ErrInvalidConfig)
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %d", ErrInvalidConfig, c.Resolution)
	}
	if c.MaxPoints < 0 {
		return fmt.Errorf("%w: max points must not be negative", ErrInvalidConfig)
	}
	if c.Retention < 0 {
		return fmt.Errorf("%w: retention must not be negative", ErrInvalidConfig)
	}
	switch c.Interpolation {
	case InterpolationNearest, InterpolationLinear, InterpolationCubic, InterpolationStep:
		return nil
	default:
		return fmt.Errorf("%w: unknown interpolation method %q", ErrInvalidConfig, c.Interpolation)
	}
}

// StreamStats summarises a stream for monitoring.
type StreamStats struct {
	Points    int   `json:"points"`
	OldestTS  int64 `json:"oldest_ts"`
	NewestTS  int64 `json:"newest_ts"`
	Evictions int64 `json:"evictions"`
}
