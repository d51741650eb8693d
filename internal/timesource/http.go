package timesource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chronofuse/chronofuse-core/internal/infrastructure/config"
)

// maxResponseSize caps provider responses (64 KB). Timing APIs return small
// JSON objects; anything larger is malformed or hostile.
const maxResponseSize = 64 << 10

// millisecondEpochFloor distinguishes second-resolution from
// millisecond-resolution numeric timestamps. Values at or above this are
// treated as milliseconds (the threshold corresponds to 2001-09-09 in
// milliseconds, far above any plausible second-resolution value).
const millisecondEpochFloor = 1e12

// HTTPAdapter fetches time readings from a provider exposing a JSON HTTP
// endpoint. The response must contain a timestamp field; accuracy and
// geometry metadata are optional and fall back to the configured base
// values when absent.
type HTTPAdapter struct {
	cfg    config.TimeSourceConfig
	client *http.Client
}

// NewHTTPAdapter creates an adapter for one configured timing provider.
//
// Parameters:
//   - cfg: Source configuration (URL, timeout, base quality, field names)
//
// Returns:
//   - *HTTPAdapter: Adapter ready for use
func NewHTTPAdapter(cfg config.TimeSourceConfig) *HTTPAdapter {
	if cfg.TimestampField == "" {
		cfg.TimestampField = "timestamp"
	}
	if cfg.BaseGeometryQuality <= 0 {
		cfg.BaseGeometryQuality = 0.5
	}
	return &HTTPAdapter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}
}

// Name returns the configured source ID.
func (a *HTTPAdapter) Name() string {
	return a.cfg.ID
}

// Fetch performs one HTTP GET against the provider and normalises the
// response into a TimeSample.
//
// The fetch is bounded by the configured per-source timeout in addition to
// any deadline already on ctx. Network errors and timeouts return
// ErrSourceUnavailable; unusable payloads return ErrMalformedSample.
func (a *HTTPAdapter) Fetch(ctx context.Context) (TimeSample, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.GetTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, a.cfg.URL, nil)
	if err != nil {
		return TimeSample{}, fmt.Errorf("%w: building request for %s: %w", ErrSourceUnavailable, a.cfg.ID, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		// Covers timeouts, DNS failures, and connection refusals alike.
		return TimeSample{}, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, a.cfg.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TimeSample{}, fmt.Errorf("%w: %s returned status %d", ErrSourceUnavailable, a.cfg.ID, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return TimeSample{}, fmt.Errorf("%w: %s: reading body: %w", ErrSourceUnavailable, a.cfg.ID, err)
	}
	fetchedAt := time.Now()
	latency := fetchedAt.Sub(start)

	sample, err := a.parseSample(body)
	if err != nil {
		return TimeSample{}, err
	}

	sample.FetchLatency = latency.Milliseconds()
	sample.FetchedAt = fetchedAt
	return sample, nil
}

// parseSample normalises a provider JSON payload into a TimeSample.
func (a *HTTPAdapter) parseSample(body []byte) (TimeSample, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return TimeSample{}, fmt.Errorf("%w: %s: parsing response: %w", ErrMalformedSample, a.cfg.ID, err)
	}

	raw, ok := payload[a.cfg.TimestampField]
	if !ok {
		return TimeSample{}, fmt.Errorf("%w: %s: response missing field %q", ErrMalformedSample, a.cfg.ID, a.cfg.TimestampField)
	}

	timestampMS, err := normaliseTimestamp(raw)
	if err != nil {
		return TimeSample{}, fmt.Errorf("%w: %s: %w", ErrMalformedSample, a.cfg.ID, err)
	}

	sample := TimeSample{
		SourceID:         a.cfg.ID,
		RawTimestamp:     timestampMS,
		DeclaredAccuracy: a.cfg.BaseAccuracy,
		GeometryQuality:  a.cfg.BaseGeometryQuality,
	}

	// Optional provider-reported quality metadata overrides the static
	// base values.
	if a.cfg.AccuracyField != "" {
		if acc, ok := payload[a.cfg.AccuracyField].(float64); ok && acc > 0 {
			sample.DeclaredAccuracy = acc
		}
	}
	if a.cfg.GeometryField != "" {
		if geom, ok := payload[a.cfg.GeometryField].(float64); ok {
			sample.GeometryQuality = clamp01(geom)
		}
	}

	return sample, nil
}

// normaliseTimestamp converts a JSON timestamp value to canonical integer
// milliseconds since the Unix epoch.
//
// Accepted forms:
//   - number >= 1e12: milliseconds since epoch
//   - number < 1e12: seconds since epoch (fractional seconds preserved)
//   - string: RFC 3339
func normaliseTimestamp(raw any) (int64, error) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 {
			return 0, fmt.Errorf("non-positive timestamp %v", v)
		}
		if v >= millisecondEpochFloor {
			return int64(v), nil
		}
		return int64(v * 1000), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return 0, fmt.Errorf("parsing timestamp %q: %w", v, err)
		}
		return t.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

// clamp01 bounds a value to the [0, 1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
