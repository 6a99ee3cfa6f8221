package scenario

import (
	"context"
	"net/http"
	"time"

	"github.com/studiowebux/trackload/internal/filter"
	"github.com/studiowebux/trackload/internal/tracker"
	"github.com/studiowebux/trackload/internal/types"
)

// check is a named verification of one response: an expected status and
// JMESPath expressions that must select non-empty values
type check struct {
	name   string
	status int
	fields []string
}

var (
	checkIssueCreated  = check{name: "issue created", status: http.StatusOK, fields: []string{"idReadable"}}
	checkStateChanged  = check{name: "state changed", status: http.StatusOK}
	checkCommentAdded  = check{name: "comment added", status: http.StatusOK}
	checkIssuesFetched = check{name: "issues fetched", status: http.StatusOK}
	checkIssueViewed   = check{name: "issue viewed", status: http.StatusOK, fields: []string{"idReadable"}}
	checkSearch        = check{name: "search returned", status: http.StatusOK}
)

func (c check) passes(res *types.RequestResult) bool {
	if res == nil || res.Error != "" || res.Status != c.status {
		return false
	}
	for _, f := range c.fields {
		if !filter.Has(res.Body, f) {
			return false
		}
	}
	return true
}

// verify evaluates c against res, records the result and reports a failure.
// It never changes control flow.
func (r *Runner) verify(ctx context.Context, c check, res *types.RequestResult) bool {
	passed := c.passes(res)
	scenario := types.ScenarioFrom(ctx)
	if r.checks != nil {
		r.checks.Check(types.CheckResult{
			Timestamp: time.Now(),
			Scenario:  scenario,
			Name:      c.name,
			Passed:    passed,
		})
	}
	r.reporter.LogError(!passed, res, map[string]string{
		"scenario": scenario,
		"check":    c.name,
	})
	return passed
}

// observe marks an observational step: the call is issued for its load and
// timing sample only, and its outcome never gates later steps.
func observe[T any](tracker.Outcome[T]) {}
