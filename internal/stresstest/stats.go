package stresstest

import (
	"sort"
)

// Stats holds timing statistics for one group of samples
type Stats struct {
	CompletedRequests int
	ErrorCount        int // failed calls (transport errors, 4xx, 5xx)
	SuccessCount      int
	Durations         []int64 // For percentile calculation
	TotalDurationMs   int64
	MinDurationMs     int64
	MaxDurationMs     int64
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{
		Durations:     make([]int64, 0, 1000),
		MinDurationMs: -1,
		MaxDurationMs: -1,
	}
}

// AddResult adds a sample to the statistics
func (s *Stats) AddResult(durationMs int64, failed bool) {
	s.CompletedRequests++
	s.TotalDurationMs += durationMs
	s.Durations = append(s.Durations, durationMs)

	if failed {
		s.ErrorCount++
	} else {
		s.SuccessCount++
	}

	if s.MinDurationMs == -1 || durationMs < s.MinDurationMs {
		s.MinDurationMs = durationMs
	}
	if s.MaxDurationMs == -1 || durationMs > s.MaxDurationMs {
		s.MaxDurationMs = durationMs
	}
}

// AvgDurationMs returns the average duration in milliseconds
func (s *Stats) AvgDurationMs() float64 {
	if s.CompletedRequests == 0 {
		return 0
	}
	return float64(s.TotalDurationMs) / float64(s.CompletedRequests)
}

// Min returns the minimum duration, or 0 if no results
func (s *Stats) Min() int64 {
	if s.MinDurationMs == -1 {
		return 0
	}
	return s.MinDurationMs
}

// Max returns the maximum duration, or 0 if no results
func (s *Stats) Max() int64 {
	if s.MaxDurationMs == -1 {
		return 0
	}
	return s.MaxDurationMs
}

// Percentile calculates the percentile value (p should be between 0 and 100)
func (s *Stats) Percentile(p float64) int64 {
	if len(s.Durations) == 0 {
		return 0
	}

	sorted := make([]int64, len(s.Durations))
	copy(sorted, s.Durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation between lower and upper
	weight := index - float64(lower)
	return int64(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// P50 returns the 50th percentile (median)
func (s *Stats) P50() int64 {
	return s.Percentile(50)
}

// P90 returns the 90th percentile
func (s *Stats) P90() int64 {
	return s.Percentile(90)
}

// P95 returns the 95th percentile
func (s *Stats) P95() int64 {
	return s.Percentile(95)
}

// P99 returns the 99th percentile
func (s *Stats) P99() int64 {
	return s.Percentile(99)
}

// ErrorRate returns the failed fraction of samples, between 0 and 1
func (s *Stats) ErrorRate() float64 {
	if s.CompletedRequests == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.CompletedRequests)
}

// Clone returns a deep copy
func (s *Stats) Clone() *Stats {
	c := *s
	c.Durations = make([]int64, len(s.Durations))
	copy(c.Durations, s.Durations)
	return &c
}

// NameStats is the summary of one sample name, as reported and persisted
type NameStats struct {
	Name   string  `json:"name" yaml:"name"`
	Count  int     `json:"count" yaml:"count"`
	Failed int     `json:"failed" yaml:"failed"`
	AvgMs  float64 `json:"avgMs" yaml:"avgMs"`
	MinMs  int64   `json:"minMs" yaml:"minMs"`
	MaxMs  int64   `json:"maxMs" yaml:"maxMs"`
	P50Ms  int64   `json:"p50Ms" yaml:"p50Ms"`
	P90Ms  int64   `json:"p90Ms" yaml:"p90Ms"`
	P95Ms  int64   `json:"p95Ms" yaml:"p95Ms"`
	P99Ms  int64   `json:"p99Ms" yaml:"p99Ms"`
}

// Summarize reduces s to its reported figures
func (s *Stats) Summarize(name string) NameStats {
	return NameStats{
		Name:   name,
		Count:  s.CompletedRequests,
		Failed: s.ErrorCount,
		AvgMs:  s.AvgDurationMs(),
		MinMs:  s.Min(),
		MaxMs:  s.Max(),
		P50Ms:  s.P50(),
		P90Ms:  s.P90(),
		P95Ms:  s.P95(),
		P99Ms:  s.P99(),
	}
}
