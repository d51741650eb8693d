package timesync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chronofuse/chronofuse-core/internal/timesource"
)

// Logger defines the logging interface used by the Scheduler.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// State describes where the scheduler is in its cycle.
type State string

// Scheduler states.
const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateFusing    State = "fusing"
	StatePublished State = "published"
)

// SourceResult records the outcome of one adapter fetch within a cycle,
// for status reporting and diagnostics.
type SourceResult struct {
	SourceID  string `json:"source_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Status is a snapshot of the scheduler for monitoring.
type Status struct {
	State       State          `json:"state"`
	LastCycleID string         `json:"last_cycle_id,omitempty"`
	LastCycleAt time.Time      `json:"last_cycle_at,omitzero"`
	Sources     []SourceResult `json:"sources,omitempty"`
	Current     FusedTime      `json:"current"`
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	// Interval between fetch+fuse cycles. Default 30s.
	Interval time.Duration

	// Fusion tuning passed through to Fuse each cycle.
	Fusion FusionOptions

	// MaxConcurrentFetches bounds the fan-out worker count. Zero or
	// negative means one worker per adapter.
	MaxConcurrentFetches int
}

// Scheduler runs the periodic fetch+fuse loop and publishes the latest
// FusedTime for non-blocking reads.
//
// Thread Safety:
//   - Current, Status, and SetOnPublish are safe for concurrent use.
//   - Start and Stop must not be called concurrently with each other.
type Scheduler struct {
	adapters []timesource.Adapter
	opts     SchedulerOptions
	logger   Logger

	// clock is injectable for tests.
	clock func() time.Time

	// current holds the last published FusedTime. Readers load it
	// atomically and never see a partial update.
	current atomic.Pointer[FusedTime]

	state atomic.Value // State

	// lastCycle diagnostics, guarded by mu.
	mu          sync.RWMutex
	lastCycleID string
	lastCycleAt time.Time
	lastResults []SourceResult
	onPublish   func(FusedTime)

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewScheduler creates a scheduler over the given adapters.
//
// The scheduler does not run until Start is called.
func NewScheduler(adapters []timesource.Adapter, opts SchedulerOptions) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	s := &Scheduler{
		adapters: adapters,
		opts:     opts,
		logger:   noopLogger{},
		clock:    time.Now,
	}
	s.state.Store(StateIdle)
	return s
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the local clock source. Intended for tests.
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.clock = clock
}

// SetOnPublish registers a callback invoked after every publication,
// including the fallback publication of a fully failed cycle. The callback
// runs on the scheduler goroutine and must not block.
func (s *Scheduler) SetOnPublish(callback func(FusedTime)) {
	s.mu.Lock()
	s.onPublish = callback
	s.mu.Unlock()
}

// Start launches the sync loop in a background goroutine.
//
// The first cycle runs immediately; subsequent cycles run every interval.
//
// Parameters:
//   - ctx: Cancelling this context stops the loop (Stop also works)
//
// Returns:
//   - error: ErrAlreadyStarted if the scheduler is running
func (s *Scheduler) Start(ctx context.Context) error {
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(loopCtx)

	s.logger.Info("sync scheduler started",
		"interval", s.opts.Interval.String(),
		"sources", len(s.adapters),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
// No fetches are orphaned: adapter contexts are cancelled and the cycle
// drains before Stop returns.
func (s *Scheduler) Stop() error {
	if !s.started {
		return ErrNotStarted
	}
	s.cancel()
	<-s.done
	s.started = false
	s.state.Store(StateIdle)
	s.logger.Info("sync scheduler stopped")
	return nil
}

// Current returns the latest fused time, drift-compensated to the moment of
// the call. It never blocks on network I/O. Before the first cycle
// completes, it returns a local-clock fallback with quality 0.
func (s *Scheduler) Current() FusedTime {
	now := s.clock()
	published := s.current.Load()
	if published == nil {
		return localFallback(now)
	}
	return published.ProjectTo(now)
}

// Status returns a snapshot of the scheduler state and the last cycle's
// per-source results.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, _ := s.state.Load().(State)
	results := make([]SourceResult, len(s.lastResults))
	copy(results, s.lastResults)

	return Status{
		State:       st,
		LastCycleID: s.lastCycleID,
		LastCycleAt: s.lastCycleAt,
		Sources:     results,
		Current:     s.Current(),
	}
}

// run is the scheduler loop. It exits when ctx is cancelled, closing done.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	// First cycle immediately so Current() is meaningful at startup.
	s.runCycle(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle executes one FETCHING → FUSING → PUBLISHED transition.
// A cycle that fails entirely still publishes the fallback FusedTime; the
// scheduler never stalls.
func (s *Scheduler) runCycle(ctx context.Context) {
	cycleID := uuid.NewString()

	s.state.Store(StateFetching)
	samples, results := s.fetchAll(ctx)

	s.state.Store(StateFusing)
	now := s.clock()
	fused := Fuse(samples, now, s.opts.Fusion)
	fused = s.clampBackwards(fused)

	s.current.Store(&fused)
	s.state.Store(StatePublished)

	s.mu.Lock()
	s.lastCycleID = cycleID
	s.lastCycleAt = now
	s.lastResults = results
	callback := s.onPublish
	s.mu.Unlock()

	if fused.SampleCount == 0 {
		s.logger.Warn("sync cycle published local fallback",
			"cycle_id", cycleID,
			"sources_attempted", len(s.adapters),
		)
	} else {
		s.logger.Debug("sync cycle published",
			"cycle_id", cycleID,
			"timestamp", fused.Timestamp,
			"quality", fused.QualityScore,
			"samples", fused.SampleCount,
			"contributing_source", fused.ContributingSourceID,
		)
	}

	if callback != nil {
		callback(fused)
	}
}

// fetchAll fans out over all adapters concurrently, bounded by the
// configured worker count. Each adapter enforces its own per-source
// timeout, so the cycle completes when all adapters have returned or timed
// out. Failed fetches are excluded; their errors are recorded per source.
func (s *Scheduler) fetchAll(ctx context.Context) ([]timesource.TimeSample, []SourceResult) {
	samples := make([]timesource.TimeSample, 0, len(s.adapters))
	results := make([]SourceResult, len(s.adapters))

	g, fetchCtx := errgroup.WithContext(ctx)
	if s.opts.MaxConcurrentFetches > 0 {
		g.SetLimit(s.opts.MaxConcurrentFetches)
	}

	var mu sync.Mutex
	for i, adapter := range s.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			sample, err := adapter.Fetch(fetchCtx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[i] = SourceResult{SourceID: adapter.Name(), Error: err.Error()}
				s.logger.Debug("source fetch failed", "source", adapter.Name(), "error", err)
				return nil // one failed source never fails the cycle
			}
			results[i] = SourceResult{SourceID: adapter.Name(), OK: true, LatencyMS: sample.FetchLatency}
			samples = append(samples, sample)
			return nil
		})
	}
	//nolint:errcheck // goroutines always return nil; failures are per-source
	g.Wait()

	return samples, results
}

// clampBackwards enforces the monotonic publication invariant: a new
// estimate may move backwards only within its own accuracy bound. Larger
// regressions are clamped to the previous timestamp. A fallback reset
// (no contributing samples) is exempt and may reinitialise freely.
func (s *Scheduler) clampBackwards(fused FusedTime) FusedTime {
	prev := s.current.Load()
	if prev == nil || fused.SampleCount == 0 {
		return fused
	}

	allowedJitterMS := int64(fused.EstimatedAccuracy * 1000)
	if fused.Timestamp < prev.Timestamp-allowedJitterMS {
		s.logger.Warn("fused time regressed beyond accuracy bound, clamping",
			"previous", prev.Timestamp,
			"proposed", fused.Timestamp,
			"allowed_jitter_ms", allowedJitterMS,
		)
		fused.Timestamp = prev.Timestamp
	}
	return fused
}
