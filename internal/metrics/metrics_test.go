package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studiowebux/trackload/internal/types"
)

// counterValue finds a gathered counter by family name and label values
func counterValue(t *testing.T, r *Recorder, family string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	return 0
}

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder()

	r.Sample(types.Sample{Scenario: "create_issue", Name: "/issues", Method: "POST", StatusCode: 200, DurationMs: 120})
	r.Sample(types.Sample{Scenario: "create_issue", Name: "/issues", Method: "POST", StatusCode: 500, DurationMs: 80, Failed: true})
	r.Check(types.CheckResult{Scenario: "create_issue", Name: "issue created", Passed: true})
	r.Check(types.CheckResult{Scenario: "create_issue", Name: "issue created", Passed: false})
	r.IterationStarted("create_issue")
	r.IterationDropped("create_issue")

	scn := map[string]string{"scenario": "create_issue", "name": "/issues"}
	assert.Equal(t, 1.0, counterValue(t, r, "http_reqs_total", map[string]string{"scenario": "create_issue", "name": "/issues", "status": "200"}))
	assert.Equal(t, 1.0, counterValue(t, r, "http_reqs_total", map[string]string{"scenario": "create_issue", "name": "/issues", "status": "500"}))
	assert.Equal(t, 1.0, counterValue(t, r, "http_req_failed_total", scn))
	assert.Equal(t, 1.0, counterValue(t, r, "checks_total", map[string]string{"scenario": "create_issue", "check": "issue created", "result": "pass"}))
	assert.Equal(t, 1.0, counterValue(t, r, "checks_total", map[string]string{"scenario": "create_issue", "check": "issue created", "result": "fail"}))
	assert.Equal(t, 1.0, counterValue(t, r, "iterations_total", map[string]string{"scenario": "create_issue"}))
	assert.Equal(t, 1.0, counterValue(t, r, "dropped_iterations_total", map[string]string{"scenario": "create_issue"}))
	assert.Equal(t, 2.0, counterValue(t, r, "http_req_duration_seconds", map[string]string{"scenario": "create_issue", "name": "/issues", "method": "POST"}))
}

func TestRouter_ServesMetricsAndHealth(t *testing.T) {
	r := NewRecorder()
	r.IterationStarted("search")
	srv := httptest.NewServer(NewRouter(r.Registry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `iterations_total{scenario="search"} 1`))

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStart_Shutdown(t *testing.T) {
	s, err := Start("127.0.0.1:0", NewRecorder().Registry(), zap.NewNop())
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(context.Background()))
}
