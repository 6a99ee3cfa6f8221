package stresstest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestManager creates a new Manager with in-memory SQLite database for testing
func createTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func createTestRun(t *testing.T, m *Manager, startedAt time.Time) *Run {
	t.Helper()
	run := &Run{
		ProfileName: "default",
		Env:         "local",
		BaseURL:     "http://localhost:8080",
		Scenarios:   "create_issue,view_issue",
		XLoad:       1,
		StartedAt:   startedAt,
		Status:      StatusRunning,
	}
	require.NoError(t, m.CreateRun(run))
	require.NotZero(t, run.ID)
	return run
}

func TestManager_RunLifecycle(t *testing.T) {
	m := createTestManager(t)
	run := createTestRun(t, m, time.Now().Add(-time.Minute))

	got, err := m.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, "create_issue,view_issue", got.Scenarios)

	now := time.Now()
	run.CompletedAt = &now
	run.Status = StatusCompleted
	run.TotalIterations = 12
	run.DroppedIterations = 1
	run.TotalRequests = 40
	run.FailedRequests = 2
	run.ChecksPassed = 20
	run.ChecksFailed = 1
	run.ThresholdsPassed = true
	require.NoError(t, m.UpdateRun(run))

	got, err = m.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 12, got.TotalIterations)
	assert.Equal(t, 1, got.DroppedIterations)
	assert.Equal(t, 40, got.TotalRequests)
	assert.Equal(t, 2, got.FailedRequests)
	assert.Equal(t, 20, got.ChecksPassed)
	assert.Equal(t, 1, got.ChecksFailed)
	assert.True(t, got.ThresholdsPassed)
}

func TestManager_GetRunNotFound(t *testing.T) {
	m := createTestManager(t)

	_, err := m.GetRun(999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestManager_ListRunsNewestFirst(t *testing.T) {
	m := createTestManager(t)
	base := time.Now().Add(-time.Hour)
	first := createTestRun(t, m, base)
	second := createTestRun(t, m, base.Add(time.Minute))
	third := createTestRun(t, m, base.Add(2*time.Minute))

	runs, err := m.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, []int64{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = m.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestManager_SamplesAndChecks(t *testing.T) {
	m := createTestManager(t)
	run := createTestRun(t, m, time.Now())
	now := time.Now()

	require.NoError(t, m.SaveMetricsBatch([]*Metric{
		{RunID: run.ID, Timestamp: now, Scenario: "view_issue", Name: "/issues/{id}", Method: "GET", StatusCode: 200, DurationMs: 100},
		{RunID: run.ID, Timestamp: now, Scenario: "view_issue", Name: "/issues/{id}", Method: "GET", StatusCode: 500, DurationMs: 300, Failed: true, ErrorCode: 1500, ErrorMessage: "boom"},
		{RunID: run.ID, Timestamp: now, Scenario: "create_issue", Name: "/issues", Method: "POST", StatusCode: 200, DurationMs: 50},
	}))
	require.NoError(t, m.SaveChecksBatch([]*CheckRecord{
		{RunID: run.ID, Timestamp: now, Scenario: "create_issue", Name: "issue created", Passed: true},
		{RunID: run.ID, Timestamp: now, Scenario: "create_issue", Name: "issue created", Passed: false},
		{RunID: run.ID, Timestamp: now, Scenario: "view_issue", Name: "issue viewed", Passed: true},
	}))

	metrics, err := m.GetMetrics(run.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.True(t, metrics[1].Failed)
	assert.Equal(t, 1500, metrics[1].ErrorCode)
	assert.Equal(t, "boom", metrics[1].ErrorMessage)

	names, err := m.GetNameStats(run.ID)
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "/issues", names[0].Name)
	assert.Equal(t, 1, names[0].Count)
	assert.Equal(t, "/issues/{id}", names[1].Name)
	assert.Equal(t, 2, names[1].Count)
	assert.Equal(t, 1, names[1].Failed)
	assert.Equal(t, 200.0, names[1].AvgMs)

	checks, err := m.GetCheckStats(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []CheckStats{
		{Name: "issue created", Passed: 1, Failed: 1},
		{Name: "issue viewed", Passed: 1, Failed: 0},
	}, checks)

	require.NoError(t, m.DeleteRun(run.ID))
	metrics, err = m.GetMetrics(run.ID)
	require.NoError(t, err)
	assert.Empty(t, metrics)
	_, err = m.GetRun(run.ID)
	assert.Error(t, err)
}

func TestManager_EmptyBatches(t *testing.T) {
	m := createTestManager(t)

	assert.NoError(t, m.SaveMetricsBatch(nil))
	assert.NoError(t, m.SaveChecksBatch(nil))
}
