package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ExecutorRampingArrivalRate = "ramping-arrival-rate"
	ExecutorSharedIterations   = "shared-iterations"
)

// Scenario names wired to flows
const (
	ScenarioCreateIssue = "create_issue"
	ScenarioUpdateIssue = "update_issue"
	ScenarioViewIssue   = "view_issue"
	ScenarioSearch      = "search"
	ScenarioSeedIssues  = "create_issues"
	ScenarioUsers       = "users"
)

// Profile is a load profile: which scenarios run, at what rate, and the
// thresholds the run is judged against.
type Profile struct {
	Name       string                     `yaml:"name"`
	Scenarios  map[string]ScenarioProfile `yaml:"scenarios"`
	Thresholds map[string][]string        `yaml:"thresholds"`
}

// ScenarioProfile configures how one scenario is scheduled
type ScenarioProfile struct {
	Executor        string `yaml:"executor"`
	Rate            int    `yaml:"rate"`            // iterations per time unit, before X_LOAD
	TimeUnit        string `yaml:"timeUnit"`        // default 1m (rates per minute)
	PreAllocatedVUs int    `yaml:"preAllocatedVUs"` // ramping-arrival-rate only
	VUs             int    `yaml:"vus"`             // shared-iterations only
	Iterations      int    `yaml:"iterations"`      // shared-iterations only, 0 = one per fixture row
	MaxDuration     string `yaml:"maxDuration"`     // shared-iterations only
}

// LoadProfile reads a YAML load profile
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = path
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks every scenario entry
func (p *Profile) Validate() error {
	if len(p.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario is required")
	}
	for _, name := range p.ScenarioNames() {
		sp := p.Scenarios[name]
		switch sp.Executor {
		case "", ExecutorRampingArrivalRate:
			if sp.Rate < 0 {
				return fmt.Errorf("scenario %s: rate cannot be negative", name)
			}
			if sp.PreAllocatedVUs <= 0 {
				return fmt.Errorf("scenario %s: preAllocatedVUs must be greater than 0", name)
			}
			if _, err := sp.Unit(); err != nil {
				return fmt.Errorf("scenario %s: %w", name, err)
			}
		case ExecutorSharedIterations:
			if sp.VUs <= 0 {
				return fmt.Errorf("scenario %s: vus must be greater than 0", name)
			}
			if sp.Iterations < 0 {
				return fmt.Errorf("scenario %s: iterations cannot be negative", name)
			}
			if _, err := sp.MaxDurationValue(); err != nil {
				return fmt.Errorf("scenario %s: %w", name, err)
			}
		default:
			return fmt.Errorf("scenario %s: unknown executor %q", name, sp.Executor)
		}
	}
	return nil
}

// ScenarioNames returns scenario names in a stable order
func (p *Profile) ScenarioNames() []string {
	names := make([]string, 0, len(p.Scenarios))
	for name := range p.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unit returns the time unit rates are expressed in
func (sp ScenarioProfile) Unit() (time.Duration, error) {
	if sp.TimeUnit == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(sp.TimeUnit)
	if err != nil {
		return 0, fmt.Errorf("invalid timeUnit: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeUnit must be positive")
	}
	return d, nil
}

// MaxDurationValue returns the shared-iterations deadline, default 10m
func (sp ScenarioProfile) MaxDurationValue() (time.Duration, error) {
	if sp.MaxDuration == "" {
		return 10 * time.Minute, nil
	}
	d, err := time.ParseDuration(sp.MaxDuration)
	if err != nil {
		return 0, fmt.Errorf("invalid maxDuration: %w", err)
	}
	return d, nil
}

// DefaultProfile is the mixed workload: issue creation, update, view and search
// at their base per-minute rates.
func DefaultProfile() *Profile {
	return &Profile{
		Name: "default",
		Scenarios: map[string]ScenarioProfile{
			ScenarioCreateIssue: {Executor: ExecutorRampingArrivalRate, Rate: 2, TimeUnit: "1m", PreAllocatedVUs: 10},
			ScenarioUpdateIssue: {Executor: ExecutorRampingArrivalRate, Rate: 15, TimeUnit: "1m", PreAllocatedVUs: 10},
			ScenarioViewIssue:   {Executor: ExecutorRampingArrivalRate, Rate: 50, TimeUnit: "1m", PreAllocatedVUs: 50},
			ScenarioSearch:      {Executor: ExecutorRampingArrivalRate, Rate: 17, TimeUnit: "1m", PreAllocatedVUs: 10},
		},
		Thresholds: map[string][]string{
			"http_req_duration{name:/issues}":       {"p(90)<1000"},
			"http_req_duration{name:/commands}":     {"p(90)<1000"},
			"http_req_duration{name:/issues/{id}}":  {"p(90)<500"},
			"http_req_duration{name:/sortedIssues}": {"p(90)<500"},
			"http_req_failed":                       {"rate<0.01"},
		},
	}
}

// SeedIssuesProfile bulk-creates issues to populate the tracker
func SeedIssuesProfile() *Profile {
	return &Profile{
		Name: "seed-issues",
		Scenarios: map[string]ScenarioProfile{
			ScenarioSeedIssues: {Executor: ExecutorRampingArrivalRate, Rate: 600, TimeUnit: "1m", PreAllocatedVUs: 200},
		},
		Thresholds: map[string][]string{
			"http_req_duration{name:/issues}": {"p(95)<2000"},
			"http_req_failed":                 {"rate<0.01"},
		},
	}
}

// UsersProfile creates one account per users.csv row with a single VU
func UsersProfile() *Profile {
	return &Profile{
		Name: "setup-users",
		Scenarios: map[string]ScenarioProfile{
			ScenarioUsers: {Executor: ExecutorSharedIterations, VUs: 1, MaxDuration: "10m"},
		},
		Thresholds: map[string][]string{
			"http_req_failed": {"rate<0.01"},
		},
	}
}
