package pipeline

import (
	"slices"
	"sync"
	"time"
)

// Pipeline stage names recorded in StageStats.
const (
	StageParse     = "parse"
	StageStructure = "structure"
	StageAssets    = "assets"
	StageAnchor    = "anchor"
	StagePartition = "partition"
	StageStore     = "store"
	StageTotal     = "total"
)

type sample struct {
	timestamp time.Time
	duration  time.Duration
}

// StatsSnapshot is a point-in-time aggregate of one stage's latency samples.
type StatsSnapshot struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// StageStats tracks recent per-stage latencies within a rolling window.
type StageStats struct {
	mu      sync.Mutex
	samples map[string][]sample
	maxAge  time.Duration
}

func NewStageStats(maxAge time.Duration) *StageStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &StageStats{
		samples: make(map[string][]sample),
		maxAge:  maxAge,
	}
}

func (s *StageStats) Record(stage string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[stage] = append(s.pruneLocked(stage, now), sample{timestamp: now, duration: d})
}

// Snapshot aggregates every stage with at least one live sample.
func (s *StageStats) Snapshot() map[string]StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]StatsSnapshot, len(s.samples))
	for stage := range s.samples {
		live := s.pruneLocked(stage, now)
		if len(live) == 0 {
			delete(s.samples, stage)
			continue
		}
		s.samples[stage] = live
		out[stage] = aggregate(live)
	}
	return out
}

func aggregate(samples []sample) StatsSnapshot {
	values := make([]float64, 0, len(samples))
	var sum float64
	for _, sm := range samples {
		ms := float64(sm.duration) / float64(time.Millisecond)
		values = append(values, ms)
		sum += ms
	}
	slices.Sort(values)

	return StatsSnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: sum / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func (s *StageStats) pruneLocked(stage string, now time.Time) []sample {
	cutoff := now.Add(-s.maxAge)
	list := s.samples[stage]
	writeIdx := 0
	for _, sm := range list {
		if !sm.timestamp.Before(cutoff) {
			list[writeIdx] = sm
			writeIdx++
		}
	}
	return list[:writeIdx]
}

func percentile(sortedValues []float64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return sortedValues[0]
	}
	if pct >= 100 {
		return sortedValues[len(sortedValues)-1]
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return sortedValues[lower]
	}
	weight := index - float64(lower)
	lo := sortedValues[lower]
	hi := sortedValues[upper]
	return lo + ((hi - lo) * weight)
}
