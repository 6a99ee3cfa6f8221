package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/studiowebux/trackload/internal/config"
	"github.com/studiowebux/trackload/internal/fixtures"
	"github.com/studiowebux/trackload/internal/tracker"
	"github.com/studiowebux/trackload/internal/types"
)

const (
	DefaultSettle = 1 * time.Second
	DefaultTopN   = 100
)

// DefaultStates are the workflow states UpdateIssue moves issues between
var DefaultStates = []string{"Open", "In Progress", "Fixed", "Verified"}

// API is the tracker surface the flows use. *tracker.Client implements it.
type API interface {
	CreateDraft(ctx context.Context, token string) tracker.Outcome[tracker.Draft]
	UpdateDraft(ctx context.Context, token, draftID string, content tracker.IssueDraft) tracker.Outcome[tracker.Draft]
	CreateIssueFromDraft(ctx context.Context, token, draftID string) tracker.Outcome[tracker.IssueRef]
	CreateIssue(ctx context.Context, token string, content tracker.IssueDraft) tracker.Outcome[tracker.IssueRef]
	SortedIssues(ctx context.Context, token string, n int, query string) tracker.Outcome[tracker.SortedIssues]
	IssuesGetter(ctx context.Context, token string, ids []string) tracker.Outcome[[]tracker.IssueRef]
	IssuesCount(ctx context.Context, token, query string) tracker.Outcome[tracker.IssueCount]
	Issue(ctx context.Context, token, idReadable string) tracker.Outcome[tracker.IssueRef]
	CommandAssist(ctx context.Context, token, query, issueID string) tracker.Outcome[tracker.Ack]
	Command(ctx context.Context, token, query, comment, issueID string) tracker.Outcome[tracker.Ack]
	SearchAssist(ctx context.Context, token, query string) tracker.Outcome[tracker.Ack]
	CreateHubUser(ctx context.Context, token, email, name string) tracker.Outcome[tracker.HubUser]
	CreatePermanentToken(ctx context.Context, token, userID, name string) tracker.Outcome[tracker.PermanentToken]
}

// Reporter receives failed-check records and setup output.
// *report.ErrorReporter implements it.
type Reporter interface {
	LogError(isError bool, res *types.RequestResult, tags map[string]string)
	Token(user, token string)
}

// Flow is one schedulable scenario execution. iteration is the index of
// the execution within its scenario, used by per-row setup flows.
type Flow func(ctx context.Context, iteration int)

// Options configures a Runner
type Options struct {
	Dataset    *fixtures.Dataset
	API        API
	Reporter   Reporter
	Checks     types.Recorder // receives check results, may be nil
	AdminToken string         // used by CreateUser

	Settle    time.Duration // think time between dependent steps
	TopN      int           // ranked list size
	ProjectID string
	States    []string

	// Intn returns a value in [0, n). Defaults to math/rand/v2.IntN.
	Intn func(n int) int
	// Sleep waits for d or until ctx is done, reporting whether the full
	// interval elapsed.
	Sleep func(ctx context.Context, d time.Duration) bool
}

// Runner executes the tracker flows. It holds no per-execution state and is
// safe for concurrent use.
type Runner struct {
	ds         *fixtures.Dataset
	api        API
	reporter   Reporter
	checks     types.Recorder
	adminToken string
	settle     time.Duration
	topN       int
	projectID  string
	states     []string
	intn       func(n int) int
	sleep      func(ctx context.Context, d time.Duration) bool
}

// New validates opts and creates a Runner
func New(opts Options) (*Runner, error) {
	if opts.Dataset == nil {
		return nil, errors.New("dataset is required")
	}
	if opts.API == nil {
		return nil, errors.New("tracker API is required")
	}

	r := &Runner{
		ds:         opts.Dataset,
		api:        opts.API,
		reporter:   opts.Reporter,
		checks:     opts.Checks,
		adminToken: opts.AdminToken,
		settle:     opts.Settle,
		topN:       opts.TopN,
		projectID:  opts.ProjectID,
		states:     opts.States,
		intn:       opts.Intn,
		sleep:      opts.Sleep,
	}
	if r.reporter == nil {
		r.reporter = nopReporter{}
	}
	if r.settle < 0 {
		return nil, fmt.Errorf("settle interval cannot be negative")
	}
	if r.topN <= 0 {
		r.topN = DefaultTopN
	}
	if r.projectID == "" {
		r.projectID = tracker.DemoProjectID
	}
	if len(r.states) == 0 {
		r.states = DefaultStates
	}
	if r.intn == nil {
		r.intn = rand.IntN
	}
	if r.sleep == nil {
		r.sleep = sleepContext
	}
	return r, nil
}

// Flow returns the flow scheduled under a profile scenario name
func (r *Runner) Flow(name string) (Flow, error) {
	switch name {
	case config.ScenarioCreateIssue:
		return func(ctx context.Context, _ int) { r.CreateIssue(ctx) }, nil
	case config.ScenarioUpdateIssue:
		return func(ctx context.Context, _ int) { r.UpdateIssue(ctx) }, nil
	case config.ScenarioViewIssue:
		return func(ctx context.Context, _ int) { r.ViewIssue(ctx) }, nil
	case config.ScenarioSearch:
		return func(ctx context.Context, _ int) { r.SearchIssues(ctx) }, nil
	case config.ScenarioSeedIssues:
		return func(ctx context.Context, _ int) { r.SeedIssue(ctx) }, nil
	case config.ScenarioUsers:
		return r.CreateUser, nil
	}
	return nil, fmt.Errorf("unknown scenario %q", name)
}

// pick selects a value from a fixture column
func (r *Runner) pick(col fixtures.Column) string {
	return col.Pick(r.intn)
}

// randomSuffix returns n random lowercase letters
func (r *Runner) randomSuffix(n int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[r.intn(len(charset))]
	}
	return string(b)
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

type nopReporter struct{}

func (nopReporter) LogError(bool, *types.RequestResult, map[string]string) {}
func (nopReporter) Token(string, string)                                   {}
