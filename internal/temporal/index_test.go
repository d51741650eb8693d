package temporal

import (
	"errors"
	"testing"
)

func testIndex(t *testing.T, configs ...StreamConfig) *Index {
	t.Helper()
	ix := NewIndex()
	for _, cfg := range configs {
		if err := ix.Register(cfg); err != nil {
			t.Fatalf("register %q: %v", cfg.ID, err)
		}
	}
	return ix
}

func TestIndexRegister(t *testing.T) {
	ix := NewIndex()

	cfg := StreamConfig{ID: "temp", Resolution: 1000, Interpolation: InterpolationLinear}
	if err := ix.Register(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ix.Register(cfg); !errors.Is(err, ErrDuplicateStream) {
		t.Errorf("expected ErrDuplicateStream, got %v", err)
	}
}

func TestIndexRegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  StreamConfig
	}{
		{name: "missing id", cfg: StreamConfig{Resolution: 1000, Interpolation: InterpolationLinear}},
		{name: "zero resolution", cfg: StreamConfig{ID: "a", Interpolation: InterpolationLinear}},
		{name: "negative max points", cfg: StreamConfig{ID: "a", Resolution: 1000, MaxPoints: -1, Interpolation: InterpolationLinear}},
		{name: "unknown method", cfg: StreamConfig{ID: "a", Resolution: 1000, Interpolation: "spline"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewIndex().Register(tt.cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestIndexUnregister(t *testing.T) {
	ix := testIndex(t, StreamConfig{ID: "temp", Resolution: 1000, Interpolation: InterpolationLinear})

	if err := ix.Unregister("temp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ix.Unregister("temp"); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream after removal, got %v", err)
	}
	if _, err := ix.PointAt("temp", 0); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("expected ErrUnknownStream on query, got %v", err)
	}
}

func TestIndexInsertAndQuery(t *testing.T) {
	ix := testIndex(t, StreamConfig{ID: "temp", Resolution: 1000, Interpolation: InterpolationLinear})

	stored, err := ix.Insert("temp", observed(0, 10.0), observed(10_000, 20.0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 2 {
		t.Fatalf("expected 2 points stored, got %d", stored)
	}

	p, err := ix.PointAt("temp", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Payload["value"] != 15.0 {
		t.Errorf("expected interpolated 15.0, got %v", p.Payload["value"])
	}
}

func TestIndexRangeQueryInvalidRange(t *testing.T) {
	ix := testIndex(t, StreamConfig{ID: "temp", Resolution: 1000, Interpolation: InterpolationLinear})

	if _, err := ix.RangeQuery("temp", 5000, 1000); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := ix.RangeQueryFilled("temp", 5000, 1000); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange from filled query, got %v", err)
	}
}

func TestIndexUnknownStreamOperations(t *testing.T) {
	ix := NewIndex()

	if _, err := ix.Insert("ghost", observed(0, 1.0)); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("insert: expected ErrUnknownStream, got %v", err)
	}
	if _, err := ix.RangeQuery("ghost", 0, 1000); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("range: expected ErrUnknownStream, got %v", err)
	}
	if _, err := ix.Stats("ghost"); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("stats: expected ErrUnknownStream, got %v", err)
	}
	if _, err := ix.Config("ghost"); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("config: expected ErrUnknownStream, got %v", err)
	}
}

func TestIndexCommitReconstruction(t *testing.T) {
	ix := testIndex(t, StreamConfig{ID: "temp", Resolution: 1000, Interpolation: InterpolationLinear})

	if _, err := ix.Insert("temp", observed(0, 10.0), observed(5000, 20.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := ix.CommitReconstruction("temp", 0, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 4 {
		t.Fatalf("expected 4 reconstructed points stored, got %d", stored)
	}

	stats, err := ix.Stats("temp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Points != 6 {
		t.Errorf("expected 6 points after commit, got %d", stats.Points)
	}

	// Committed points are reconstructed; a later observation replaces one.
	p, err := ix.PointAt("temp", 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Origin != OriginReconstructed {
		t.Errorf("expected reconstructed point at 2000, got %s", p.Origin)
	}
	if _, err := ix.Insert("temp", observed(2000, 14.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err = ix.PointAt("temp", 2000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Origin != OriginObserved || p.Payload["value"] != 14.0 {
		t.Errorf("observation did not replace the reconstructed point: %+v", p)
	}
}

func TestIndexList(t *testing.T) {
	ix := testIndex(t,
		StreamConfig{ID: "zeta", Resolution: 1000, Interpolation: InterpolationLinear},
		StreamConfig{ID: "alpha", Resolution: 1000, Interpolation: InterpolationLinear},
	)

	ids := ix.List()
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "zeta" {
		t.Errorf("expected sorted [alpha zeta], got %v", ids)
	}
}
