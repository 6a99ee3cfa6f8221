package stresstest

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/trackload/internal/types"
)

const defaultBufferSize = 100

// CheckStats is the pass/fail tally of one named check
type CheckStats struct {
	Name   string `json:"name" yaml:"name"`
	Passed int    `json:"passed" yaml:"passed"`
	Failed int    `json:"failed" yaml:"failed"`
}

// Rate returns the passed fraction, or 0 with no results
func (c CheckStats) Rate() float64 {
	if c.Passed+c.Failed == 0 {
		return 0
	}
	return float64(c.Passed) / float64(c.Passed+c.Failed)
}

// ScenarioStats is the iteration tally of one scenario
type ScenarioStats struct {
	Name       string `json:"name" yaml:"name"`
	Planned    int    `json:"planned,omitempty" yaml:"planned,omitempty"`
	Iterations int    `json:"iterations" yaml:"iterations"`
	Dropped    int    `json:"dropped" yaml:"dropped"`
}

// Result is the end-of-run summary
type Result struct {
	RunID       int64             `json:"runId,omitempty" yaml:"runId,omitempty"`
	Profile     string            `json:"profile" yaml:"profile"`
	Env         string            `json:"env" yaml:"env"`
	BaseURL     string            `json:"baseUrl" yaml:"baseUrl"`
	Status      string            `json:"status" yaml:"status"`
	StartedAt   time.Time         `json:"startedAt" yaml:"startedAt"`
	CompletedAt time.Time         `json:"completedAt" yaml:"completedAt"`
	Overall     NameStats         `json:"overall" yaml:"overall"`
	ByName      []NameStats       `json:"byName" yaml:"byName"`
	Checks      []CheckStats      `json:"checks" yaml:"checks"`
	Scenarios   []ScenarioStats   `json:"scenarios" yaml:"scenarios"`
	Thresholds  []ThresholdResult `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Passed      bool              `json:"passed" yaml:"passed"`
}

// Duration returns the wall time of the run
func (r *Result) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Collector aggregates samples, checks and iteration counts of one run.
// It implements types.Recorder and IterationObserver and is safe for
// concurrent use. With a manager, samples and checks are persisted in
// batches.
type Collector struct {
	manager    *Manager
	runID      int64
	log        *zap.Logger
	bufferSize int

	mu         sync.Mutex
	overall    *Stats
	byName     map[string]*Stats
	byScenario map[string]*Stats
	checks     map[string]*CheckStats
	scnChecks  map[string]*CheckStats
	started    map[string]int
	dropped    map[string]int
	planned    map[string]int
	metricsBuf []*Metric
	checksBuf  []*CheckRecord

	flushMu sync.Mutex
}

// NewCollector creates a collector. manager may be nil to keep everything
// in memory.
func NewCollector(manager *Manager, runID int64, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{
		manager:    manager,
		runID:      runID,
		log:        log,
		bufferSize: defaultBufferSize,
		overall:    NewStats(),
		byName:     make(map[string]*Stats),
		byScenario: make(map[string]*Stats),
		checks:     make(map[string]*CheckStats),
		scnChecks:  make(map[string]*CheckStats),
		started:    make(map[string]int),
		dropped:    make(map[string]int),
		planned:    make(map[string]int),
		metricsBuf: make([]*Metric, 0, defaultBufferSize),
		checksBuf:  make([]*CheckRecord, 0, defaultBufferSize),
	}
}

var (
	_ types.Recorder    = (*Collector)(nil)
	_ IterationObserver = (*Collector)(nil)
	_ MetricSource      = (*Collector)(nil)
)

// Sample records one timing sample
func (c *Collector) Sample(s types.Sample) {
	c.mu.Lock()
	c.overall.AddResult(s.DurationMs, s.Failed)
	statsFor(c.byName, s.Name).AddResult(s.DurationMs, s.Failed)
	if s.Scenario != "" {
		statsFor(c.byScenario, s.Scenario).AddResult(s.DurationMs, s.Failed)
	}

	var batch []*Metric
	if c.manager != nil {
		c.metricsBuf = append(c.metricsBuf, &Metric{
			RunID:        c.runID,
			Timestamp:    s.Timestamp,
			Scenario:     s.Scenario,
			Name:         s.Name,
			Method:       s.Method,
			StatusCode:   s.StatusCode,
			DurationMs:   s.DurationMs,
			Failed:       s.Failed,
			ErrorCode:    s.ErrorCode,
			ErrorMessage: s.Error,
		})
		if len(c.metricsBuf) >= c.bufferSize {
			batch = c.metricsBuf
			c.metricsBuf = make([]*Metric, 0, c.bufferSize)
		}
	}
	c.mu.Unlock()

	if batch != nil {
		c.flushMetrics(batch)
	}
}

// Check records one check result
func (c *Collector) Check(r types.CheckResult) {
	c.mu.Lock()
	tally(c.checks, r.Name, r.Passed)
	if r.Scenario != "" {
		tally(c.scnChecks, r.Scenario, r.Passed)
	}

	var batch []*CheckRecord
	if c.manager != nil {
		c.checksBuf = append(c.checksBuf, &CheckRecord{
			RunID:     c.runID,
			Timestamp: r.Timestamp,
			Scenario:  r.Scenario,
			Name:      r.Name,
			Passed:    r.Passed,
		})
		if len(c.checksBuf) >= c.bufferSize {
			batch = c.checksBuf
			c.checksBuf = make([]*CheckRecord, 0, c.bufferSize)
		}
	}
	c.mu.Unlock()

	if batch != nil {
		c.flushChecks(batch)
	}
}

// Plan registers the scheduled iteration count of each plan so scenarios
// that never started still show up in the snapshot
func (c *Collector) Plan(plans []ScenarioPlan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range plans {
		c.planned[plans[i].Name] = plans[i].PlannedIterations()
	}
}

// IterationStarted counts one iteration handed to a VU
func (c *Collector) IterationStarted(scenario string) {
	c.mu.Lock()
	c.started[scenario]++
	c.mu.Unlock()
}

// IterationDropped counts one iteration skipped for lack of a free VU
func (c *Collector) IterationDropped(scenario string) {
	c.mu.Lock()
	c.dropped[scenario]++
	c.mu.Unlock()
}

// SampleStats returns a copy of the stats matching the tag filter, or nil.
// Supported tags are name and scenario. An empty tag key selects every
// sample.
func (c *Collector) SampleStats(tagKey, tagValue string) *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s *Stats
	switch tagKey {
	case "":
		s = c.overall
	case "name":
		s = c.byName[tagValue]
	case "scenario":
		s = c.byScenario[tagValue]
	}
	if s == nil {
		return nil
	}
	return s.Clone()
}

// CheckCounts returns the tallies matching the tag filter. Supported tags
// are check and scenario.
func (c *Collector) CheckCounts(tagKey, tagValue string) (passed, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch tagKey {
	case "":
		for _, cs := range c.checks {
			passed += cs.Passed
			failed += cs.Failed
		}
	case "check", "name":
		if cs, ok := c.checks[tagValue]; ok {
			return cs.Passed, cs.Failed
		}
	case "scenario":
		if cs, ok := c.scnChecks[tagValue]; ok {
			return cs.Passed, cs.Failed
		}
	}
	return passed, failed
}

// IterationCounts returns started and dropped iterations of a scenario,
// or of all scenarios when scenario is empty
func (c *Collector) IterationCounts(scenario string) (started, dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scenario != "" {
		return c.started[scenario], c.dropped[scenario]
	}
	for _, n := range c.started {
		started += n
	}
	for _, n := range c.dropped {
		dropped += n
	}
	return started, dropped
}

// Snapshot returns the aggregated figures collected so far, sorted by name
func (c *Collector) Snapshot() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := Result{Overall: c.overall.Summarize("overall")}

	for name, s := range c.byName {
		res.ByName = append(res.ByName, s.Summarize(name))
	}
	sort.Slice(res.ByName, func(i, j int) bool { return res.ByName[i].Name < res.ByName[j].Name })

	for _, cs := range c.checks {
		res.Checks = append(res.Checks, *cs)
	}
	sort.Slice(res.Checks, func(i, j int) bool { return res.Checks[i].Name < res.Checks[j].Name })

	names := make(map[string]struct{}, len(c.started))
	for n := range c.started {
		names[n] = struct{}{}
	}
	for n := range c.dropped {
		names[n] = struct{}{}
	}
	for n := range c.planned {
		names[n] = struct{}{}
	}
	for n := range names {
		res.Scenarios = append(res.Scenarios, ScenarioStats{
			Name:       n,
			Planned:    c.planned[n],
			Iterations: c.started[n],
			Dropped:    c.dropped[n],
		})
	}
	sort.Slice(res.Scenarios, func(i, j int) bool { return res.Scenarios[i].Name < res.Scenarios[j].Name })

	return res
}

// Close writes any buffered samples and checks
func (c *Collector) Close() error {
	c.mu.Lock()
	metrics := c.metricsBuf
	checks := c.checksBuf
	c.metricsBuf = nil
	c.checksBuf = nil
	c.mu.Unlock()

	if c.manager == nil {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	if err := c.manager.SaveMetricsBatch(metrics); err != nil {
		return err
	}
	return c.manager.SaveChecksBatch(checks)
}

// flushMetrics writes a full sample buffer. Failures are logged and the run
// goes on.
func (c *Collector) flushMetrics(batch []*Metric) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	if err := c.manager.SaveMetricsBatch(batch); err != nil {
		c.log.Warn("failed to save samples", zap.Int("count", len(batch)), zap.Error(err))
	}
}

func (c *Collector) flushChecks(batch []*CheckRecord) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()
	if err := c.manager.SaveChecksBatch(batch); err != nil {
		c.log.Warn("failed to save checks", zap.Int("count", len(batch)), zap.Error(err))
	}
}

func statsFor(m map[string]*Stats, key string) *Stats {
	s, ok := m[key]
	if !ok {
		s = NewStats()
		m[key] = s
	}
	return s
}

func tally(m map[string]*CheckStats, key string, passed bool) {
	cs, ok := m[key]
	if !ok {
		cs = &CheckStats{Name: key}
		m[key] = cs
	}
	if passed {
		cs.Passed++
	} else {
		cs.Failed++
	}
}
