package stresstest

import (
	"fmt"
	"strings"
	"time"

	"github.com/studiowebux/trackload/internal/config"
)

// Run statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Stage is one segment of a ramping arrival rate: the rate moves linearly
// from the previous stage's target to Target over Duration
type Stage struct {
	Target   int // iterations per time unit
	Duration time.Duration
}

// ScenarioPlan describes how one scenario is scheduled
type ScenarioPlan struct {
	Name     string
	Executor string

	// ramping-arrival-rate
	TimeUnit        time.Duration
	Stages          []Stage
	PreAllocatedVUs int

	// shared-iterations
	VUs         int
	Iterations  int
	MaxDuration time.Duration
}

// Validate validates the plan
func (p *ScenarioPlan) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	switch p.Executor {
	case config.ExecutorRampingArrivalRate:
		if p.PreAllocatedVUs <= 0 {
			return fmt.Errorf("scenario %s: preAllocatedVUs must be greater than 0", p.Name)
		}
		if p.TimeUnit <= 0 {
			return fmt.Errorf("scenario %s: time unit must be positive", p.Name)
		}
		for _, s := range p.Stages {
			if s.Target < 0 || s.Duration < 0 {
				return fmt.Errorf("scenario %s: stage targets and durations cannot be negative", p.Name)
			}
		}
	case config.ExecutorSharedIterations:
		if p.VUs <= 0 {
			return fmt.Errorf("scenario %s: vus must be greater than 0", p.Name)
		}
		if p.Iterations < 0 {
			return fmt.Errorf("scenario %s: iterations cannot be negative", p.Name)
		}
		if p.MaxDuration <= 0 {
			return fmt.Errorf("scenario %s: maxDuration must be positive", p.Name)
		}
	default:
		return fmt.Errorf("scenario %s: unknown executor %q", p.Name, p.Executor)
	}
	return nil
}

// PlannedIterations returns how many iterations the plan schedules
func (p *ScenarioPlan) PlannedIterations() int {
	if p.Executor == config.ExecutorSharedIterations {
		return p.Iterations
	}
	return len(ArrivalOffsets(p.Stages, p.TimeUnit))
}

// BuildPlans turns the profile entries for names (all profile scenarios when
// empty) into plans. Arrival-rate scenarios ramp to the X_LOAD-scaled rate
// over RAMP_UP, hold it for HOLD_RATE and ramp down over TEAR_DOWN.
// Shared-iteration scenarios without an iteration count run
// defaultIterations times.
func BuildPlans(cfg *config.Config, names []string, defaultIterations int) ([]ScenarioPlan, error) {
	if len(names) == 0 {
		names = cfg.Profile.ScenarioNames()
	}

	plans := make([]ScenarioPlan, 0, len(names))
	for _, name := range names {
		sp, ok := cfg.Profile.Scenarios[name]
		if !ok {
			return nil, fmt.Errorf("scenario %q is not in profile %s (available: %s)",
				name, cfg.Profile.Name, strings.Join(cfg.Profile.ScenarioNames(), ", "))
		}

		plan := ScenarioPlan{Name: name, Executor: sp.Executor}
		if plan.Executor == "" {
			plan.Executor = config.ExecutorRampingArrivalRate
		}

		switch plan.Executor {
		case config.ExecutorRampingArrivalRate:
			unit, err := sp.Unit()
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", name, err)
			}
			rate := cfg.TargetRate(name)
			plan.TimeUnit = unit
			plan.PreAllocatedVUs = sp.PreAllocatedVUs
			plan.Stages = []Stage{
				{Target: rate, Duration: cfg.RampUp},
				{Target: rate, Duration: cfg.HoldRate},
				{Target: 0, Duration: cfg.TearDown},
			}
		case config.ExecutorSharedIterations:
			maxDuration, err := sp.MaxDurationValue()
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", name, err)
			}
			plan.VUs = sp.VUs
			plan.Iterations = sp.Iterations
			if plan.Iterations == 0 {
				plan.Iterations = defaultIterations
			}
			plan.MaxDuration = maxDuration
		}

		if err := plan.Validate(); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Run represents a load run record
type Run struct {
	ID                int64      `json:"id" yaml:"id"`
	ProfileName       string     `json:"profile" yaml:"profile"`
	Env               string     `json:"env" yaml:"env"`
	BaseURL           string     `json:"baseUrl" yaml:"baseUrl"`
	Scenarios         string     `json:"scenarios" yaml:"scenarios"` // comma separated
	XLoad             float64    `json:"xLoad" yaml:"xLoad"`
	StartedAt         time.Time  `json:"startedAt" yaml:"startedAt"`
	CompletedAt       *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Status            string     `json:"status" yaml:"status"` // "running", "completed", "cancelled", "failed"
	TotalIterations   int        `json:"iterations" yaml:"iterations"`
	DroppedIterations int        `json:"droppedIterations" yaml:"droppedIterations"`
	TotalRequests     int        `json:"requests" yaml:"requests"`
	FailedRequests    int        `json:"failedRequests" yaml:"failedRequests"`
	ChecksPassed      int        `json:"checksPassed" yaml:"checksPassed"`
	ChecksFailed      int        `json:"checksFailed" yaml:"checksFailed"`
	ThresholdsPassed  bool       `json:"thresholdsPassed" yaml:"thresholdsPassed"`
}

// Metric represents one persisted timing sample
type Metric struct {
	ID           int64
	RunID        int64
	Timestamp    time.Time
	Scenario     string
	Name         string
	Method       string
	StatusCode   int
	DurationMs   int64
	Failed       bool
	ErrorCode    int
	ErrorMessage string
}

// CheckRecord represents one persisted check result
type CheckRecord struct {
	ID        int64
	RunID     int64
	Timestamp time.Time
	Scenario  string
	Name      string
	Passed    bool
}
