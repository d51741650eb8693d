package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chronofuse/chronofuse-core/internal/infrastructure/archive"
	"github.com/chronofuse/chronofuse-core/internal/infrastructure/config"
	"github.com/chronofuse/chronofuse-core/internal/infrastructure/logging"
	"github.com/chronofuse/chronofuse-core/internal/infrastructure/mqtt"
	"github.com/chronofuse/chronofuse-core/internal/temporal"
	"github.com/chronofuse/chronofuse-core/internal/timesource"
	"github.com/chronofuse/chronofuse-core/internal/timesync"
)

// Deps holds the engine's dependencies. Config and Logger are required;
// MQTT and Archive are optional and may be nil.
type Deps struct {
	Config  *config.Config
	Logger  *logging.Logger
	MQTT    *mqtt.Client
	Archive *archive.Client
}

// Engine is the temporal fusion facade. It answers time queries from the
// scheduler's latest estimate and data queries from the in-memory index.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Engine struct {
	cfg    *config.Config
	logger *logging.Logger

	index     *temporal.Index
	scheduler *timesync.Scheduler

	mqttClient    *mqtt.Client
	archiveClient *archive.Client

	// Change callbacks for WebSocket broadcasting (optional).
	onPointsAdded   func(streamID string, points []temporal.DataPoint)
	onTimePublished func(timesync.FusedTime)
	callbackMu      sync.RWMutex

	started bool
	startMu sync.Mutex
}

// PointInput is one data point as submitted by a producer, before the
// engine normalises it to an observed point with full confidence.
type PointInput struct {
	// Timestamp in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// Payload holds the point's named fields. Numeric fields decode to
	// float64.
	Payload map[string]any `json:"payload"`
}

// New creates an engine from configuration.
//
// It builds an HTTP adapter per configured time source, assembles the sync
// scheduler, and pre-registers the configured streams. The scheduler does
// not run until Start is called.
//
// Returns:
//   - *Engine: Ready to start
//   - error: If a configured stream is invalid or duplicated
func New(deps Deps) (*Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	cfg := deps.Config

	adapters := make([]timesource.Adapter, 0, len(cfg.TimeSync.Sources))
	for _, sc := range cfg.TimeSync.Sources {
		adapters = append(adapters, timesource.NewHTTPAdapter(sc))
	}

	scheduler := timesync.NewScheduler(adapters, timesync.SchedulerOptions{
		Interval: cfg.TimeSync.GetSyncInterval(),
		Fusion: timesync.FusionOptions{
			StaleAfter:               cfg.TimeSync.GetStaleAfter(),
			MinSourcesFullConfidence: cfg.TimeSync.MinSourcesFullConfidence,
		},
		MaxConcurrentFetches: cfg.TimeSync.MaxConcurrentFetches,
	})
	scheduler.SetLogger(logger.With("component", "timesync"))

	e := &Engine{
		cfg:           cfg,
		logger:        logger,
		index:         temporal.NewIndex(),
		scheduler:     scheduler,
		mqttClient:    deps.MQTT,
		archiveClient: deps.Archive,
	}

	for _, sc := range cfg.Streams {
		streamCfg, err := streamConfigFromYAML(sc)
		if err != nil {
			return nil, fmt.Errorf("engine: stream %q: %w", sc.ID, err)
		}
		if err := e.index.Register(streamCfg); err != nil {
			return nil, fmt.Errorf("engine: stream %q: %w", sc.ID, err)
		}
	}

	return e, nil
}

// streamConfigFromYAML converts a config file stream entry to the index's
// stream configuration.
func streamConfigFromYAML(sc config.StreamConfig) (temporal.StreamConfig, error) {
	method, err := temporal.ParseInterpolationMethod(sc.Interpolation)
	if err != nil {
		return temporal.StreamConfig{}, err
	}
	return temporal.StreamConfig{
		ID:            sc.ID,
		Resolution:    sc.Resolution,
		Retention:     sc.GetRetention(),
		MaxPoints:     sc.MaxPoints,
		Interpolation: method,
	}, nil
}

// Start launches the sync scheduler and, when an MQTT client is present,
// wires the ingest subscription and the retained fused time publication.
//
// Parameters:
//   - ctx: Cancelling this context stops the scheduler (Stop also works)
//
// Returns:
//   - error: ErrAlreadyStarted, or a subscription failure
func (e *Engine) Start(ctx context.Context) error {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}

	e.scheduler.SetOnPublish(e.handleTimePublished)
	if err := e.scheduler.Start(ctx); err != nil {
		return err
	}

	if e.mqttClient != nil {
		topic := mqtt.Topics{}.AllStreamIngest()
		if err := e.mqttClient.Subscribe(topic, byte(e.cfg.MQTT.QoS), e.handleIngestMessage); err != nil {
			// Roll back the scheduler so a retry starts clean.
			_ = e.scheduler.Stop()
			return fmt.Errorf("engine: ingest subscription: %w", err)
		}
		e.logger.Info("mqtt ingest subscribed", "topic", topic)
	}

	e.started = true
	e.logger.Info("engine started",
		"streams", len(e.index.List()),
		"sources", len(e.cfg.TimeSync.Sources),
	)
	return nil
}

// Stop halts the sync scheduler. The index and its data remain queryable.
func (e *Engine) Stop() error {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if !e.started {
		return ErrNotStarted
	}

	if err := e.scheduler.Stop(); err != nil {
		return err
	}
	e.started = false
	e.logger.Info("engine stopped")
	return nil
}

// handleTimePublished mirrors each new fused time estimate to MQTT
// (retained) and the archive, then notifies the change callback. Runs on
// the scheduler goroutine.
func (e *Engine) handleTimePublished(ft timesync.FusedTime) {
	if e.mqttClient != nil {
		payload, err := json.Marshal(ft)
		if err == nil {
			if err := e.mqttClient.PublishRetained(mqtt.Topics{}.TimeCurrent(), payload); err != nil {
				e.logger.Warn("fused time publish failed", "error", err)
			}
		}
	}

	if e.archiveClient != nil {
		offsetMS := ft.Timestamp - ft.PublishedAt.UnixMilli()
		e.archiveClient.WriteFusedTime(ft.ContributingSourceID, offsetMS, ft.EstimatedAccuracy, ft.QualityScore)
	}

	e.callbackMu.RLock()
	callback := e.onTimePublished
	e.callbackMu.RUnlock()
	if callback != nil {
		callback(ft)
	}
}

// CurrentTime returns the latest fused time, drift-compensated to the
// moment of the call. Never blocks on network I/O.
func (e *Engine) CurrentTime() timesync.FusedTime {
	return e.scheduler.Current()
}

// TimeStatus returns the sync scheduler's state and the last cycle's
// per-source results.
func (e *Engine) TimeStatus() timesync.Status {
	return e.scheduler.Status()
}

// RegisterStream creates a stream at runtime.
func (e *Engine) RegisterStream(cfg temporal.StreamConfig) error {
	if err := e.index.Register(cfg); err != nil {
		return err
	}
	e.logger.Info("stream registered",
		"stream", cfg.ID,
		"resolution_ms", cfg.Resolution,
		"interpolation", string(cfg.Interpolation),
	)
	return nil
}

// UnregisterStream removes a stream and discards its points.
func (e *Engine) UnregisterStream(id string) error {
	if err := e.index.Unregister(id); err != nil {
		return err
	}
	e.logger.Info("stream unregistered", "stream", id)
	return nil
}

// StreamInfo pairs a stream's configuration with its current statistics.
type StreamInfo struct {
	Config temporal.StreamConfig `json:"config"`
	Stats  temporal.StreamStats  `json:"stats"`
}

// Streams returns every registered stream with its statistics, sorted by
// ID.
func (e *Engine) Streams() []StreamInfo {
	ids := e.index.List()
	infos := make([]StreamInfo, 0, len(ids))
	for _, id := range ids {
		cfg, err := e.index.Config(id)
		if err != nil {
			continue // unregistered between List and Config
		}
		stats, err := e.index.Stats(id)
		if err != nil {
			continue
		}
		infos = append(infos, StreamInfo{Config: cfg, Stats: stats})
	}
	return infos
}

// Stream returns one stream's configuration and statistics.
func (e *Engine) Stream(id string) (StreamInfo, error) {
	cfg, err := e.index.Config(id)
	if err != nil {
		return StreamInfo{}, err
	}
	stats, err := e.index.Stats(id)
	if err != nil {
		return StreamInfo{}, err
	}
	return StreamInfo{Config: cfg, Stats: stats}, nil
}

// AddDataPoints ingests a batch of producer-submitted points into a
// stream. Each input is normalised to an observed point with confidence
// 1.0; the producer cannot claim otherwise. Observed points mirror to the
// archive when one is connected.
//
// Parameters:
//   - streamID: Target stream
//   - inputs: Points to ingest
//
// Returns:
//   - int: Number of points stored (duplicates of observed buckets count,
//     they overwrite)
//   - error: ErrInvalidPoint for a malformed input, or the index's error
func (e *Engine) AddDataPoints(streamID string, inputs []PointInput) (int, error) {
	points := make([]temporal.DataPoint, 0, len(inputs))
	for _, in := range inputs {
		if in.Timestamp <= 0 {
			return 0, fmt.Errorf("%w: timestamp must be positive", ErrInvalidPoint)
		}
		if len(in.Payload) == 0 {
			return 0, fmt.Errorf("%w: payload must not be empty", ErrInvalidPoint)
		}
		points = append(points, temporal.DataPoint{
			Timestamp:  in.Timestamp,
			Payload:    in.Payload,
			Origin:     temporal.OriginObserved,
			Confidence: 1.0,
		})
	}

	stored, err := e.index.Insert(streamID, points...)
	if err != nil {
		return 0, err
	}

	if e.archiveClient != nil {
		for _, p := range points {
			e.archiveClient.WriteStreamPoint(streamID, string(p.Origin), p.Confidence,
				p.Payload, time.UnixMilli(p.Timestamp))
		}
	}

	e.callbackMu.RLock()
	callback := e.onPointsAdded
	e.callbackMu.RUnlock()
	if callback != nil && stored > 0 {
		callback(streamID, points)
	}

	return stored, nil
}

// DataAtTime answers a point query against a stream, applying the
// stream's interpolation method when no exact bucket matches.
func (e *Engine) DataAtTime(streamID string, ts int64) (temporal.DataPoint, error) {
	return e.index.PointAt(streamID, ts)
}

// DataInRange returns a stream's points in [start, end]. With fill set,
// gaps are bridged by synthesized points that are not stored.
func (e *Engine) DataInRange(streamID string, start, end int64, fill bool) ([]temporal.DataPoint, error) {
	if fill {
		return e.index.RangeQueryFilled(streamID, start, end)
	}
	return e.index.RangeQuery(streamID, start, end)
}

// Gaps reports the interior gaps of a stream within [start, end].
func (e *Engine) Gaps(streamID string, start, end int64) ([]temporal.Gap, error) {
	return e.index.FindGaps(streamID, start, end)
}

// CommitReconstruction synthesizes points for a stream's gaps in
// [start, end] and stores them. Returns the number of points stored.
func (e *Engine) CommitReconstruction(streamID string, start, end int64) (int, error) {
	stored, err := e.index.CommitReconstruction(streamID, start, end)
	if err != nil {
		return 0, err
	}
	if stored > 0 {
		e.logger.Info("gap reconstruction committed",
			"stream", streamID,
			"points", stored,
			"start", start,
			"end", end,
		)
	}
	return stored, nil
}

// SetOnPointsAdded registers a callback invoked after each successful
// ingest. The callback runs on the ingesting goroutine and must not block.
func (e *Engine) SetOnPointsAdded(callback func(streamID string, points []temporal.DataPoint)) {
	e.callbackMu.Lock()
	e.onPointsAdded = callback
	e.callbackMu.Unlock()
}

// SetOnTimePublished registers a callback invoked after each sync cycle
// publication. The callback runs on the scheduler goroutine and must not
// block.
func (e *Engine) SetOnTimePublished(callback func(timesync.FusedTime)) {
	e.callbackMu.Lock()
	e.onTimePublished = callback
	e.callbackMu.Unlock()
}

// HealthCheck reports whether the engine is running.
func (e *Engine) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("engine health check: %w", ctx.Err())
	default:
	}

	e.startMu.Lock()
	defer e.startMu.Unlock()
	if !e.started {
		return ErrNotStarted
	}
	return nil
}
