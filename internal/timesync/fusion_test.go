package timesync

import (
	"math"
	"testing"
	"time"

	"github.com/chronofuse/chronofuse-core/internal/timesource"
)

func sampleAt(id string, ts int64, accuracy, geometry float64, fetchedAt time.Time) timesource.TimeSample {
	return timesource.TimeSample{
		SourceID:         id,
		RawTimestamp:     ts,
		DeclaredAccuracy: accuracy,
		GeometryQuality:  geometry,
		FetchedAt:        fetchedAt,
	}
}

func TestFuse_EmptySetFallsBackToLocalClock(t *testing.T) {
	now := time.Now()

	fused := Fuse(nil, now, FusionOptions{MinSourcesFullConfidence: 3})

	if fused.QualityScore != 0 {
		t.Errorf("QualityScore = %v, want 0 for fallback", fused.QualityScore)
	}
	if fused.ContributingSourceID != LocalSourceID {
		t.Errorf("ContributingSourceID = %q, want %q", fused.ContributingSourceID, LocalSourceID)
	}
	if fused.SampleCount != 0 {
		t.Errorf("SampleCount = %d, want 0", fused.SampleCount)
	}

	// Timestamp equals local clock within 5ms.
	diff := fused.Timestamp - now.UnixMilli()
	if diff < -5 || diff > 5 {
		t.Errorf("fallback Timestamp off by %dms, want within 5ms of local clock", diff)
	}
}

func TestFuse_WeightedAverageFavoursAccurateSource(t *testing.T) {
	now := time.Now()
	samples := []timesource.TimeSample{
		sampleAt("gnss", 1000, 0.001, 1.0, now),
		sampleAt("ntp", 1050, 0.01, 0.5, now),
	}

	fused := Fuse(samples, now, FusionOptions{MinSourcesFullConfidence: 3})

	// The resulting timestamp must sit closer to the accurate source.
	if math.Abs(float64(fused.Timestamp-1000)) >= math.Abs(float64(fused.Timestamp-1050)) {
		t.Errorf("Timestamp = %d, want closer to 1000 than to 1050", fused.Timestamp)
	}
	if fused.ContributingSourceID != "gnss" {
		t.Errorf("ContributingSourceID = %q, want %q", fused.ContributingSourceID, "gnss")
	}
	if fused.EstimatedAccuracy != 0.001 {
		t.Errorf("EstimatedAccuracy = %v, want best declared accuracy 0.001", fused.EstimatedAccuracy)
	}
	if fused.SampleCount != 2 {
		t.Errorf("SampleCount = %d, want 2", fused.SampleCount)
	}
}

func TestFuse_MonotonicWeighting(t *testing.T) {
	// Adding a worse sample to a better one must never degrade the
	// estimated accuracy below what the worse sample yields alone.
	now := time.Now()
	better := sampleAt("a", 5000, 0.002, 0.9, now)
	worse := sampleAt("b", 5100, 0.05, 0.9, now)
	opts := FusionOptions{MinSourcesFullConfidence: 3}

	alone := Fuse([]timesource.TimeSample{better}, now, opts)
	combined := Fuse([]timesource.TimeSample{better, worse}, now, opts)
	worseAlone := Fuse([]timesource.TimeSample{worse}, now, opts)

	if alone.EstimatedAccuracy > worseAlone.EstimatedAccuracy {
		t.Errorf("better alone accuracy %v worse than worse alone %v", alone.EstimatedAccuracy, worseAlone.EstimatedAccuracy)
	}
	if combined.EstimatedAccuracy > worseAlone.EstimatedAccuracy {
		t.Errorf("combined accuracy %v worse than worse alone %v", combined.EstimatedAccuracy, worseAlone.EstimatedAccuracy)
	}
	// More sources increase the quality score.
	if combined.QualityScore <= alone.QualityScore {
		t.Errorf("combined quality %v should exceed single-source quality %v", combined.QualityScore, alone.QualityScore)
	}
}

func TestFuse_QualityCappedAtOne(t *testing.T) {
	now := time.Now()
	samples := []timesource.TimeSample{
		sampleAt("a", 1000, 0.01, 1.0, now),
		sampleAt("b", 1001, 0.01, 1.0, now),
		sampleAt("c", 1002, 0.01, 1.0, now),
		sampleAt("d", 1003, 0.01, 1.0, now),
	}

	fused := Fuse(samples, now, FusionOptions{MinSourcesFullConfidence: 2})

	if fused.QualityScore != 1 {
		t.Errorf("QualityScore = %v, want capped at 1", fused.QualityScore)
	}
}

func TestFuse_SingleSourceDeRated(t *testing.T) {
	now := time.Now()
	samples := []timesource.TimeSample{
		sampleAt("only", 1000, 0.01, 0.9, now),
	}

	fused := Fuse(samples, now, FusionOptions{MinSourcesFullConfidence: 3})

	want := 0.9 * (1.0 / 3.0)
	if math.Abs(fused.QualityScore-want) > 1e-9 {
		t.Errorf("QualityScore = %v, want %v (geometry de-rated by source count)", fused.QualityScore, want)
	}
}

func TestFuse_StaleSamplesDiscarded(t *testing.T) {
	now := time.Now()
	samples := []timesource.TimeSample{
		sampleAt("fresh", 1000, 0.01, 1.0, now.Add(-10*time.Second)),
		sampleAt("stale", 99999, 0.001, 1.0, now.Add(-5*time.Minute)),
	}

	fused := Fuse(samples, now, FusionOptions{
		StaleAfter:               time.Minute,
		MinSourcesFullConfidence: 3,
	})

	if fused.SampleCount != 1 {
		t.Fatalf("SampleCount = %d, want 1 after staleness filter", fused.SampleCount)
	}
	if fused.ContributingSourceID != "fresh" {
		t.Errorf("ContributingSourceID = %q, want the fresh sample", fused.ContributingSourceID)
	}
	if fused.Timestamp != 1000 {
		t.Errorf("Timestamp = %d, want 1000 from the surviving sample", fused.Timestamp)
	}
}

func TestFuse_AllStaleFallsBack(t *testing.T) {
	now := time.Now()
	samples := []timesource.TimeSample{
		sampleAt("stale", 1000, 0.001, 1.0, now.Add(-time.Hour)),
	}

	fused := Fuse(samples, now, FusionOptions{
		StaleAfter:               time.Minute,
		MinSourcesFullConfidence: 3,
	})

	if fused.QualityScore != 0 || fused.ContributingSourceID != LocalSourceID {
		t.Errorf("fused = %+v, want local fallback when every sample is stale", fused)
	}
}

func TestFuse_AccuracyTieBrokenByLatency(t *testing.T) {
	now := time.Now()
	slow := sampleAt("slow", 1000, 0.01, 0.9, now)
	slow.FetchLatency = 200
	fast := sampleAt("fast", 1010, 0.01, 0.9, now)
	fast.FetchLatency = 20

	fused := Fuse([]timesource.TimeSample{slow, fast}, now, FusionOptions{MinSourcesFullConfidence: 3})

	if fused.ContributingSourceID != "fast" {
		t.Errorf("ContributingSourceID = %q, want lower-latency source on accuracy tie", fused.ContributingSourceID)
	}
}

func TestFusedTime_ProjectTo(t *testing.T) {
	published := time.Now()
	ft := FusedTime{
		Timestamp:   1_000_000,
		PublishedAt: published,
	}

	projected := ft.ProjectTo(published.Add(2 * time.Second))
	if projected.Timestamp != 1_002_000 {
		t.Errorf("projected Timestamp = %d, want 1002000", projected.Timestamp)
	}

	// Projection never moves the timestamp backwards.
	backwards := ft.ProjectTo(published.Add(-time.Second))
	if backwards.Timestamp != 1_000_000 {
		t.Errorf("backwards projection Timestamp = %d, want unchanged", backwards.Timestamp)
	}
}
