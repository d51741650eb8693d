package temporal

import (
	"fmt"
	"sort"
	"sync"
)

// Index is the registry of data streams. It owns stream lifecycle and
// routes queries; per-point locking lives in the streams themselves.
//
// All state is held in memory and rebuilt from scratch on restart.
type Index struct {
	mu      sync.RWMutex
	streams map[string]*Stream
}

// NewIndex creates an empty stream registry.
func NewIndex() *Index {
	return &Index{
		streams: make(map[string]*Stream),
	}
}

// Register creates a stream from the given configuration.
//
// Returns ErrInvalidConfig if the configuration fails validation and
// ErrDuplicateStream if the ID is already taken.
func (ix *Index) Register(cfg StreamConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.streams[cfg.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateStream, cfg.ID)
	}
	ix.streams[cfg.ID] = newStream(cfg)
	return nil
}

// Unregister removes a stream and discards its points.
//
// Returns ErrUnknownStream if the ID is not registered.
func (ix *Index) Unregister(id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.streams[id]; !exists {
		return fmt.Errorf("%w: %q", ErrUnknownStream, id)
	}
	delete(ix.streams, id)
	return nil
}

// stream looks up a stream by ID.
func (ix *Index) stream(id string) (*Stream, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	s, exists := ix.streams[id]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStream, id)
	}
	return s, nil
}

// Config returns the configuration of a registered stream.
func (ix *Index) Config(id string) (StreamConfig, error) {
	s, err := ix.stream(id)
	if err != nil {
		return StreamConfig{}, err
	}
	return s.Config(), nil
}

// Insert adds points to a stream. Reconstructed points never displace
// observed ones. Returns the number of points stored.
func (ix *Index) Insert(id string, points ...DataPoint) (int, error) {
	s, err := ix.stream(id)
	if err != nil {
		return 0, err
	}
	return s.InsertBatch(points), nil
}

// PointAt answers a point query on a stream, applying the stream's
// interpolation method when no exact bucket matches.
func (ix *Index) PointAt(id string, ts int64) (DataPoint, error) {
	s, err := ix.stream(id)
	if err != nil {
		return DataPoint{}, err
	}
	return s.PointAt(ts)
}

// RangeQuery returns the stored points of a stream in [start, end],
// ordered by time.
//
// Returns ErrInvalidRange when end is before start.
func (ix *Index) RangeQuery(id string, start, end int64) ([]DataPoint, error) {
	if end < start {
		return nil, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, end, start)
	}
	s, err := ix.stream(id)
	if err != nil {
		return nil, err
	}
	return s.Range(start, end), nil
}

// RangeQueryFilled is RangeQuery with gaps filled by synthesized points.
// The synthesized points are not stored.
func (ix *Index) RangeQueryFilled(id string, start, end int64) ([]DataPoint, error) {
	if end < start {
		return nil, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, end, start)
	}
	s, err := ix.stream(id)
	if err != nil {
		return nil, err
	}
	return s.FillGaps(start, end), nil
}

// FindGaps reports the interior gaps of a stream within [start, end].
func (ix *Index) FindGaps(id string, start, end int64) ([]Gap, error) {
	if end < start {
		return nil, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, end, start)
	}
	s, err := ix.stream(id)
	if err != nil {
		return nil, err
	}
	return s.FindGaps(start, end), nil
}

// CommitReconstruction synthesizes points for the gaps in [start, end] and
// stores them. Buckets that gained an observed point in the meantime keep
// it. Returns the number of points stored.
func (ix *Index) CommitReconstruction(id string, start, end int64) (int, error) {
	if end < start {
		return 0, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, end, start)
	}
	s, err := ix.stream(id)
	if err != nil {
		return 0, err
	}
	return s.InsertBatch(s.Reconstruct(start, end)), nil
}

// List returns the IDs of all registered streams, sorted.
func (ix *Index) List() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ids := make([]string, 0, len(ix.streams))
	for id := range ix.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns a snapshot of a stream's size and bounds.
func (ix *Index) Stats(id string) (StreamStats, error) {
	s, err := ix.stream(id)
	if err != nil {
		return StreamStats{}, err
	}
	return s.Stats(), nil
}
