package stresstest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/trackload/internal/config"
	"github.com/studiowebux/trackload/internal/types"
)

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector(nil, 0, nil)
	c.Sample(sample("create_issue", "/issues", 100, false))
	c.Sample(sample("create_issue", "/commands", 40, true))
	c.Sample(sample("view_issue", "/issues/{id}", 60, false))
	c.Check(types.CheckResult{Scenario: "create_issue", Name: "issue created", Passed: true})
	c.Check(types.CheckResult{Scenario: "view_issue", Name: "issue viewed", Passed: false})
	c.IterationStarted("create_issue")
	c.IterationStarted("view_issue")
	c.IterationDropped("view_issue")

	snap := c.Snapshot()

	assert.Equal(t, 3, snap.Overall.Count)
	assert.Equal(t, 1, snap.Overall.Failed)
	require.Len(t, snap.ByName, 3)
	assert.Equal(t, "/commands", snap.ByName[0].Name)
	assert.Equal(t, "/issues", snap.ByName[1].Name)
	assert.Equal(t, "/issues/{id}", snap.ByName[2].Name)

	assert.Equal(t, []CheckStats{
		{Name: "issue created", Passed: 1},
		{Name: "issue viewed", Failed: 1},
	}, snap.Checks)
	assert.Equal(t, []ScenarioStats{
		{Name: "create_issue", Iterations: 1},
		{Name: "view_issue", Iterations: 1, Dropped: 1},
	}, snap.Scenarios)
}

func TestCollector_PlannedScenarios(t *testing.T) {
	c := NewCollector(nil, 0, nil)
	c.Plan([]ScenarioPlan{
		{Name: "users", Executor: config.ExecutorSharedIterations, Iterations: 4},
		{Name: "search", Executor: config.ExecutorRampingArrivalRate, TimeUnit: time.Second, Stages: []Stage{
			{Target: 10, Duration: 0},
			{Target: 10, Duration: time.Second},
		}},
	})
	c.IterationStarted("users")

	assert.Equal(t, []ScenarioStats{
		{Name: "search", Planned: 10},
		{Name: "users", Planned: 4, Iterations: 1},
	}, c.Snapshot().Scenarios)
}

func TestCollector_TagFilters(t *testing.T) {
	c := NewCollector(nil, 0, nil)
	c.Sample(sample("search", "/sortedIssues", 10, false))
	c.Sample(sample("view_issue", "/sortedIssues", 30, false))
	c.Check(types.CheckResult{Scenario: "search", Name: "search returned", Passed: true})

	assert.Equal(t, 2, c.SampleStats("name", "/sortedIssues").CompletedRequests)
	assert.Equal(t, 1, c.SampleStats("scenario", "search").CompletedRequests)
	assert.Equal(t, 2, c.SampleStats("", "").CompletedRequests)
	assert.Nil(t, c.SampleStats("name", "/missing"))
	assert.Nil(t, c.SampleStats("method", "GET"))

	passed, failed := c.CheckCounts("check", "search returned")
	assert.Equal(t, 1, passed)
	assert.Equal(t, 0, failed)
	passed, _ = c.CheckCounts("scenario", "search")
	assert.Equal(t, 1, passed)
	passed, _ = c.CheckCounts("", "")
	assert.Equal(t, 1, passed)
}

func TestCollector_PersistsInBatches(t *testing.T) {
	m := createTestManager(t)
	run := createTestRun(t, m, time.Now())
	c := NewCollector(m, run.ID, nil)

	var wg sync.WaitGroup
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.Sample(sample("view_issue", fmt.Sprintf("/n%d", w), int64(i), false))
				c.Check(types.CheckResult{Timestamp: time.Now(), Scenario: "view_issue", Name: "issue viewed", Passed: i%2 == 0})
			}
		}(w)
	}
	wg.Wait()

	metrics, err := m.GetMetrics(run.ID)
	require.NoError(t, err)
	assert.Len(t, metrics, 200, "full buffers are written while the run goes on")

	require.NoError(t, c.Close())

	metrics, err = m.GetMetrics(run.ID)
	require.NoError(t, err)
	assert.Len(t, metrics, 250)

	checks, err := m.GetCheckStats(run.ID)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.Equal(t, 125, checks[0].Passed)
	assert.Equal(t, 125, checks[0].Failed)
}

func TestCheckStats_Rate(t *testing.T) {
	assert.Equal(t, 0.0, CheckStats{}.Rate())
	assert.Equal(t, 0.75, CheckStats{Passed: 3, Failed: 1}.Rate())
}
