package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chronofuse/chronofuse-core/internal/infrastructure/config"
	"github.com/chronofuse/chronofuse-core/internal/temporal"
	"github.com/chronofuse/chronofuse-core/internal/timesync"
)

// testConfig returns a minimal engine configuration with one stream and no
// time sources, so the scheduler publishes the local fallback immediately.
func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{ID: "test", Name: "test"},
		TimeSync: config.TimeSyncConfig{
			SyncInterval:             60,
			StaleAfter:               120,
			MinSourcesFullConfidence: 3,
		},
		Streams: []config.StreamConfig{
			{ID: "sensor-temp", Resolution: 1000, Retention: 3600, MaxPoints: 1000, Interpolation: "linear"},
		},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Deps{Config: testConfig()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNewRegistersConfiguredStreams(t *testing.T) {
	e := newTestEngine(t)

	info, err := e.Stream("sensor-temp")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if info.Config.Resolution != 1000 {
		t.Errorf("expected resolution 1000, got %d", info.Config.Resolution)
	}
	if info.Config.Interpolation != temporal.InterpolationLinear {
		t.Errorf("expected linear interpolation, got %s", info.Config.Interpolation)
	}
	if info.Config.Retention != time.Hour {
		t.Errorf("expected 1h retention, got %v", info.Config.Retention)
	}
}

func TestNewRejectsInvalidStream(t *testing.T) {
	cfg := testConfig()
	cfg.Streams = append(cfg.Streams, config.StreamConfig{ID: "bad", Resolution: 0})

	if _, err := New(Deps{Config: cfg}); err == nil {
		t.Fatal("New() should reject a stream with zero resolution")
	}
}

func TestNewRejectsDuplicateStream(t *testing.T) {
	cfg := testConfig()
	cfg.Streams = append(cfg.Streams, cfg.Streams[0])

	if _, err := New(Deps{Config: cfg}); err == nil {
		t.Fatal("New() should reject duplicate stream IDs")
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("New() should require a config")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.HealthCheck(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted before Start, got %v", err)
	}

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	if err := e.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := e.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted on second Stop, got %v", err)
	}
}

func TestCurrentTimeFallbackBeforeStart(t *testing.T) {
	e := newTestEngine(t)

	ft := e.CurrentTime()
	if ft.ContributingSourceID != timesync.LocalSourceID {
		t.Errorf("expected local fallback, got %s", ft.ContributingSourceID)
	}
	if ft.QualityScore != 0 {
		t.Errorf("expected quality 0 before first cycle, got %v", ft.QualityScore)
	}
}

func TestOnTimePublishedFiresOnFirstCycle(t *testing.T) {
	e := newTestEngine(t)

	published := make(chan timesync.FusedTime, 1)
	e.SetOnTimePublished(func(ft timesync.FusedTime) {
		select {
		case published <- ft:
		default:
		}
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer e.Stop()

	select {
	case ft := <-published:
		// No sources configured, so the first cycle is the fallback.
		if ft.ContributingSourceID != timesync.LocalSourceID {
			t.Errorf("expected local fallback, got %s", ft.ContributingSourceID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not publish")
	}
}

func TestAddDataPoints(t *testing.T) {
	e := newTestEngine(t)

	stored, err := e.AddDataPoints("sensor-temp", []PointInput{
		{Timestamp: 1000, Payload: map[string]any{"value": 20.0}},
		{Timestamp: 2000, Payload: map[string]any{"value": 21.0}},
	})
	if err != nil {
		t.Fatalf("AddDataPoints() error = %v", err)
	}
	if stored != 2 {
		t.Fatalf("expected 2 points stored, got %d", stored)
	}

	p, err := e.DataAtTime("sensor-temp", 1000)
	if err != nil {
		t.Fatalf("DataAtTime() error = %v", err)
	}
	if p.Origin != temporal.OriginObserved || p.Confidence != 1.0 {
		t.Errorf("ingested point not normalised to observed: %+v", p)
	}
}

func TestAddDataPointsValidation(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name  string
		input PointInput
	}{
		{name: "zero timestamp", input: PointInput{Payload: map[string]any{"value": 1.0}}},
		{name: "negative timestamp", input: PointInput{Timestamp: -5, Payload: map[string]any{"value": 1.0}}},
		{name: "empty payload", input: PointInput{Timestamp: 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.AddDataPoints("sensor-temp", []PointInput{tt.input}); !errors.Is(err, ErrInvalidPoint) {
				t.Errorf("expected ErrInvalidPoint, got %v", err)
			}
		})
	}
}

func TestAddDataPointsUnknownStream(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.AddDataPoints("ghost", []PointInput{
		{Timestamp: 1000, Payload: map[string]any{"value": 1.0}},
	})
	if !errors.Is(err, temporal.ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream, got %v", err)
	}
}

func TestOnPointsAddedCallback(t *testing.T) {
	e := newTestEngine(t)

	var mu sync.Mutex
	var gotStream string
	var gotCount int
	e.SetOnPointsAdded(func(streamID string, points []temporal.DataPoint) {
		mu.Lock()
		gotStream = streamID
		gotCount = len(points)
		mu.Unlock()
	})

	if _, err := e.AddDataPoints("sensor-temp", []PointInput{
		{Timestamp: 1000, Payload: map[string]any{"value": 1.0}},
	}); err != nil {
		t.Fatalf("AddDataPoints() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotStream != "sensor-temp" || gotCount != 1 {
		t.Errorf("callback saw stream=%q count=%d", gotStream, gotCount)
	}
}

func TestDataInRangeFilled(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.AddDataPoints("sensor-temp", []PointInput{
		{Timestamp: 1000, Payload: map[string]any{"value": 10.0}},
		{Timestamp: 6000, Payload: map[string]any{"value": 20.0}},
	}); err != nil {
		t.Fatalf("AddDataPoints() error = %v", err)
	}

	plain, err := e.DataInRange("sensor-temp", 0, 10_000, false)
	if err != nil {
		t.Fatalf("DataInRange() error = %v", err)
	}
	if len(plain) != 2 {
		t.Fatalf("expected 2 stored points, got %d", len(plain))
	}

	filled, err := e.DataInRange("sensor-temp", 0, 10_000, true)
	if err != nil {
		t.Fatalf("DataInRange(fill) error = %v", err)
	}
	if len(filled) <= len(plain) {
		t.Errorf("expected synthesized points in the gap, got %d", len(filled))
	}
}

func TestRegisterAndUnregisterStream(t *testing.T) {
	e := newTestEngine(t)

	err := e.RegisterStream(temporal.StreamConfig{
		ID: "extra", Resolution: 500, Interpolation: temporal.InterpolationStep,
	})
	if err != nil {
		t.Fatalf("RegisterStream() error = %v", err)
	}
	if len(e.Streams()) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(e.Streams()))
	}

	if err := e.UnregisterStream("extra"); err != nil {
		t.Fatalf("UnregisterStream() error = %v", err)
	}
	if err := e.UnregisterStream("extra"); !errors.Is(err, temporal.ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream, got %v", err)
	}
}

func TestCommitReconstruction(t *testing.T) {
	e := newTestEngine(t)

	if _, err := e.AddDataPoints("sensor-temp", []PointInput{
		{Timestamp: 1000, Payload: map[string]any{"value": 10.0}},
		{Timestamp: 6000, Payload: map[string]any{"value": 20.0}},
	}); err != nil {
		t.Fatalf("AddDataPoints() error = %v", err)
	}

	stored, err := e.CommitReconstruction("sensor-temp", 0, 10_000)
	if err != nil {
		t.Fatalf("CommitReconstruction() error = %v", err)
	}
	if stored != 4 {
		t.Errorf("expected 4 reconstructed points, got %d", stored)
	}
}

func TestHandleIngestMessage(t *testing.T) {
	e := newTestEngine(t)

	payload := []byte(`[{"timestamp": 1000, "payload": {"value": 21.5}}]`)
	if err := e.handleIngestMessage("chronofuse/ingest/sensor-temp", payload); err != nil {
		t.Fatalf("handleIngestMessage() error = %v", err)
	}

	p, err := e.DataAtTime("sensor-temp", 1000)
	if err != nil {
		t.Fatalf("DataAtTime() error = %v", err)
	}
	if p.Payload["value"] != 21.5 {
		t.Errorf("expected 21.5, got %v", p.Payload["value"])
	}
}

func TestHandleIngestMessageEnvelope(t *testing.T) {
	e := newTestEngine(t)

	payload := []byte(`{"points": [{"timestamp": 2000, "payload": {"value": 22.0}}]}`)
	if err := e.handleIngestMessage("chronofuse/ingest/sensor-temp", payload); err != nil {
		t.Fatalf("handleIngestMessage() error = %v", err)
	}

	if _, err := e.DataAtTime("sensor-temp", 2000); err != nil {
		t.Errorf("envelope point not stored: %v", err)
	}
}

func TestHandleIngestMessageBadTopic(t *testing.T) {
	e := newTestEngine(t)

	if err := e.handleIngestMessage("chronofuse/time/current", []byte(`[]`)); err == nil {
		t.Error("expected error for non-ingest topic")
	}
}

func TestHandleIngestMessageMalformed(t *testing.T) {
	e := newTestEngine(t)

	if err := e.handleIngestMessage("chronofuse/ingest/sensor-temp", []byte(`not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}
