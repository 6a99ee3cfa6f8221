package types

import (
	"context"
	"sync"
	"time"
)

// HttpRequest represents a single call issued against the tracker API
type HttpRequest struct {
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"` // Sample name tag used for thresholds
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
	Token   string            `json:"-" yaml:"-"` // Bearer token, never serialized
}

// TLSConfig names the certificate files used for HTTPS calls
type TLSConfig struct {
	CertFile           string `json:"certFile,omitempty" yaml:"certFile,omitempty"` // client certificate (mTLS)
	KeyFile            string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`   // client private key (mTLS)
	CAFile             string `json:"caFile,omitempty" yaml:"caFile,omitempty"`     // CA bundle for server verification
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// IsZero reports whether no TLS option is set
func (c TLSConfig) IsZero() bool {
	return c == TLSConfig{}
}

// RequestResult contains the HTTP response data
type RequestResult struct {
	Name         string            `json:"name"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Status       int               `json:"status"`
	StatusText   string            `json:"statusText"`
	Headers      map[string]string `json:"headers"`
	Body         string            `json:"body"`
	Duration     int64             `json:"duration"`     // milliseconds
	RequestSize  int               `json:"requestSize"`  // bytes
	ResponseSize int               `json:"responseSize"` // bytes
	Error        string            `json:"error,omitempty"`
	ErrorCode    int               `json:"errorCode,omitempty"`
	Traceparent  string            `json:"traceparent,omitempty"`
}

// Failed reports whether the call counts towards http_req_failed:
// transport errors and any status outside 2xx/3xx.
func (r *RequestResult) Failed() bool {
	return r.Error != "" || r.Status == 0 || r.Status >= 400
}

// OK reports whether the call returned a 2xx status without a transport error
func (r *RequestResult) OK() bool {
	return r.Error == "" && r.Status >= 200 && r.Status < 300
}

// Sample is one named timing measurement
type Sample struct {
	Timestamp  time.Time
	Scenario   string
	Name       string
	Method     string
	URL        string
	StatusCode int
	DurationMs int64
	Failed     bool
	ErrorCode  int
	Error      string
}

// CheckResult is the outcome of one named verification
type CheckResult struct {
	Timestamp time.Time
	Scenario  string
	Name      string
	Passed    bool
}

// Recorder receives timing samples and check results.
// Implementations must be safe for concurrent use.
type Recorder interface {
	Sample(Sample)
	Check(CheckResult)
}

// MultiRecorder fans out to several recorders
type MultiRecorder []Recorder

func (m MultiRecorder) Sample(s Sample) {
	for _, r := range m {
		r.Sample(s)
	}
}

func (m MultiRecorder) Check(c CheckResult) {
	for _, r := range m {
		r.Check(c)
	}
}

// MemoryRecorder keeps everything in memory. Useful for tests and dry runs.
type MemoryRecorder struct {
	mu      sync.Mutex
	samples []Sample
	checks  []CheckResult
}

func (m *MemoryRecorder) Sample(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
}

func (m *MemoryRecorder) Check(c CheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, c)
}

// Samples returns a copy of the recorded samples
func (m *MemoryRecorder) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Checks returns a copy of the recorded checks
func (m *MemoryRecorder) Checks() []CheckResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CheckResult, len(m.checks))
	copy(out, m.checks)
	return out
}

type scenarioKey struct{}

// WithScenario tags a context with the name of the scenario being executed
func WithScenario(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, scenarioKey{}, name)
}

// ScenarioFrom returns the scenario tag of ctx, or "" when untagged
func ScenarioFrom(ctx context.Context) string {
	name, _ := ctx.Value(scenarioKey{}).(string)
	return name
}
