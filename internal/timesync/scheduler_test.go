package timesync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chronofuse/chronofuse-core/internal/timesource"
)

// fakeAdapter returns a canned sample or error, recording fetch counts.
type fakeAdapter struct {
	name    string
	sample  timesource.TimeSample
	err     error
	delay   time.Duration
	fetches atomic.Int32
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context) (timesource.TimeSample, error) {
	f.fetches.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return timesource.TimeSample{}, timesource.ErrSourceUnavailable
		}
	}
	if f.err != nil {
		return timesource.TimeSample{}, f.err
	}
	s := f.sample
	s.FetchedAt = time.Now()
	return s, nil
}

func freshSample(id string, ts int64, accuracy float64) timesource.TimeSample {
	return timesource.TimeSample{
		SourceID:         id,
		RawTimestamp:     ts,
		DeclaredAccuracy: accuracy,
		GeometryQuality:  0.9,
	}
}

func TestScheduler_PublishesFirstCycleImmediately(t *testing.T) {
	now := time.Now().UnixMilli()
	adapter := &fakeAdapter{name: "src", sample: freshSample("src", now, 0.01)}

	s := NewScheduler([]timesource.Adapter{adapter}, SchedulerOptions{
		Interval: time.Hour, // only the immediate first cycle runs
		Fusion:   FusionOptions{MinSourcesFullConfidence: 1},
	})

	published := make(chan FusedTime, 1)
	s.SetOnPublish(func(ft FusedTime) {
		select {
		case published <- ft:
		default:
		}
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		//nolint:errcheck // shutdown in test cleanup
		s.Stop()
	}()

	select {
	case ft := <-published:
		if ft.SampleCount != 1 {
			t.Errorf("SampleCount = %d, want 1", ft.SampleCount)
		}
		if ft.ContributingSourceID != "src" {
			t.Errorf("ContributingSourceID = %q, want %q", ft.ContributingSourceID, "src")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not publish")
	}

	current := s.Current()
	if current.QualityScore <= 0 {
		t.Errorf("Current().QualityScore = %v, want positive after successful cycle", current.QualityScore)
	}
}

func TestScheduler_AllSourcesFailStillPublishes(t *testing.T) {
	adapters := []timesource.Adapter{
		&fakeAdapter{name: "a", err: timesource.ErrSourceUnavailable},
		&fakeAdapter{name: "b", err: timesource.ErrMalformedSample},
	}

	s := NewScheduler(adapters, SchedulerOptions{
		Interval: time.Hour,
		Fusion:   FusionOptions{MinSourcesFullConfidence: 3},
	})

	published := make(chan FusedTime, 1)
	s.SetOnPublish(func(ft FusedTime) {
		select {
		case published <- ft:
		default:
		}
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		//nolint:errcheck // shutdown in test cleanup
		s.Stop()
	}()

	select {
	case ft := <-published:
		if ft.QualityScore != 0 {
			t.Errorf("QualityScore = %v, want 0 for fallback publication", ft.QualityScore)
		}
		if ft.ContributingSourceID != LocalSourceID {
			t.Errorf("ContributingSourceID = %q, want %q", ft.ContributingSourceID, LocalSourceID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("failed cycle did not publish fallback")
	}

	// Per-source failures are visible in the status report.
	status := s.Status()
	if len(status.Sources) != 2 {
		t.Fatalf("Status().Sources = %d entries, want 2", len(status.Sources))
	}
	for _, result := range status.Sources {
		if result.OK {
			t.Errorf("source %q reported OK, want failure", result.SourceID)
		}
		if result.Error == "" {
			t.Errorf("source %q missing error detail", result.SourceID)
		}
	}
}

func TestScheduler_CurrentBeforeStartIsLocalFallback(t *testing.T) {
	s := NewScheduler(nil, SchedulerOptions{})

	before := time.Now().UnixMilli()
	current := s.Current()
	after := time.Now().UnixMilli()

	if current.QualityScore != 0 || current.ContributingSourceID != LocalSourceID {
		t.Errorf("Current() = %+v, want local fallback before first cycle", current)
	}
	if current.Timestamp < before || current.Timestamp > after {
		t.Errorf("fallback Timestamp = %d, want local clock between %d and %d", current.Timestamp, before, after)
	}
}

func TestScheduler_DriftCompensation(t *testing.T) {
	base := time.Now()
	var clockMu sync.Mutex
	clockNow := base

	s := NewScheduler(nil, SchedulerOptions{})
	s.SetClock(func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clockNow
	})

	// Seed a published value directly, as a completed cycle would.
	seeded := FusedTime{
		Timestamp:            1_000_000,
		EstimatedAccuracy:    0.01,
		QualityScore:         0.8,
		ContributingSourceID: "src",
		SampleCount:          1,
		PublishedAt:          base,
	}
	s.current.Store(&seeded)

	clockMu.Lock()
	clockNow = base.Add(5 * time.Second)
	clockMu.Unlock()

	current := s.Current()
	if current.Timestamp != 1_005_000 {
		t.Errorf("Current().Timestamp = %d, want 1005000 (published + elapsed)", current.Timestamp)
	}
	if current.QualityScore != 0.8 {
		t.Errorf("QualityScore = %v, want quality metadata preserved", current.QualityScore)
	}
}

func TestScheduler_ClampBackwards(t *testing.T) {
	s := NewScheduler(nil, SchedulerOptions{})

	prev := FusedTime{Timestamp: 2_000_000, SampleCount: 2}
	s.current.Store(&prev)

	// Regression beyond the accuracy bound is clamped.
	clamped := s.clampBackwards(FusedTime{
		Timestamp:         1_999_000,
		EstimatedAccuracy: 0.1, // 100ms allowed jitter, regression is 1000ms
		SampleCount:       1,
	})
	if clamped.Timestamp != 2_000_000 {
		t.Errorf("clamped Timestamp = %d, want held at previous 2000000", clamped.Timestamp)
	}

	// Regression within the accuracy bound is tolerated.
	tolerated := s.clampBackwards(FusedTime{
		Timestamp:         1_999_950,
		EstimatedAccuracy: 0.1,
		SampleCount:       1,
	})
	if tolerated.Timestamp != 1_999_950 {
		t.Errorf("tolerated Timestamp = %d, want bounded jitter preserved", tolerated.Timestamp)
	}

	// A fallback reset may move backwards freely.
	reset := s.clampBackwards(FusedTime{
		Timestamp:   1_000_000,
		SampleCount: 0,
	})
	if reset.Timestamp != 1_000_000 {
		t.Errorf("reset Timestamp = %d, want fallback reinitialisation allowed", reset.Timestamp)
	}
}

func TestScheduler_StopDrainsInFlightCycle(t *testing.T) {
	slow := &fakeAdapter{
		name:   "slow",
		sample: freshSample("slow", time.Now().UnixMilli(), 0.01),
		delay:  200 * time.Millisecond,
	}

	s := NewScheduler([]timesource.Adapter{slow}, SchedulerOptions{
		Interval: time.Hour,
		Fusion:   FusionOptions{MinSourcesFullConfidence: 1},
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Give the first cycle time to enter the fetch.
	time.Sleep(50 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return; in-flight cycle not drained")
	}

	if err := s.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("second Stop() error = %v, want ErrNotStarted", err)
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler(nil, SchedulerOptions{Interval: time.Hour})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		//nolint:errcheck // shutdown in test cleanup
		s.Stop()
	}()

	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestScheduler_BoundedFanOut(t *testing.T) {
	// With a worker limit of 1, concurrent fetches never overlap.
	var active, maxActive atomic.Int32

	observe := func() func() {
		n := active.Add(1)
		for {
			peak := maxActive.Load()
			if n <= peak || maxActive.CompareAndSwap(peak, n) {
				break
			}
		}
		return func() { active.Add(-1) }
	}

	mk := func(name string) timesource.Adapter {
		return adapterFunc{
			name: name,
			fetch: func(ctx context.Context) (timesource.TimeSample, error) {
				defer observe()()
				time.Sleep(20 * time.Millisecond)
				return freshSampleNow(name), nil
			},
		}
	}

	s := NewScheduler([]timesource.Adapter{mk("a"), mk("b"), mk("c")}, SchedulerOptions{
		Interval:             time.Hour,
		Fusion:               FusionOptions{MinSourcesFullConfidence: 1},
		MaxConcurrentFetches: 1,
	})

	samples, results := s.fetchAll(context.Background())
	if len(samples) != 3 {
		t.Fatalf("fetchAll returned %d samples, want 3", len(samples))
	}
	if len(results) != 3 {
		t.Fatalf("fetchAll returned %d results, want 3", len(results))
	}
	if peak := maxActive.Load(); peak > 1 {
		t.Errorf("max concurrent fetches = %d, want 1 with SetLimit(1)", peak)
	}
}

// adapterFunc adapts a function to the timesource.Adapter interface.
type adapterFunc struct {
	name  string
	fetch func(ctx context.Context) (timesource.TimeSample, error)
}

func (a adapterFunc) Name() string { return a.name }
func (a adapterFunc) Fetch(ctx context.Context) (timesource.TimeSample, error) {
	return a.fetch(ctx)
}

func freshSampleNow(id string) timesource.TimeSample {
	s := freshSample(id, time.Now().UnixMilli(), 0.01)
	s.FetchedAt = time.Now()
	return s
}
