package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/studiowebux/trackload/internal/config"
	"github.com/studiowebux/trackload/internal/report"
	"github.com/studiowebux/trackload/internal/stresstest"
)

// RunsOptions selects the run store and output of the runs commands
type RunsOptions struct {
	DBPath       string // default ~/.trackload/trackload.db
	OutputFormat string
	Limit        int
	Stdout       io.Writer
}

func (o RunsOptions) open() (*stresstest.Manager, io.Writer, error) {
	path, err := config.ResolveDatabasePath(o.DBPath)
	if err != nil {
		return nil, nil, err
	}
	m, err := stresstest.NewManager(path)
	if err != nil {
		return nil, nil, err
	}
	w := o.Stdout
	if w == nil {
		w = os.Stdout
	}
	return m, w, nil
}

// ListRuns prints the stored runs, newest first
func ListRuns(opts RunsOptions) error {
	m, w, err := opts.open()
	if err != nil {
		return err
	}
	defer m.Close()

	runs, err := m.ListRuns(opts.Limit)
	if err != nil {
		return err
	}
	out, err := report.FormatRuns(runs, opts.OutputFormat, report.IsTerminal(w))
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// ShowRun prints the stored summary of one run
func ShowRun(id int64, opts RunsOptions) error {
	m, w, err := opts.open()
	if err != nil {
		return err
	}
	defer m.Close()

	run, err := m.GetRun(id)
	if err != nil {
		return err
	}
	byName, err := m.GetNameStats(id)
	if err != nil {
		return err
	}
	checks, err := m.GetCheckStats(id)
	if err != nil {
		return err
	}
	samples, err := m.GetMetrics(id)
	if err != nil {
		return err
	}
	overall := stresstest.NewStats()
	for _, s := range samples {
		overall.AddResult(s.DurationMs, s.Failed)
	}

	res := &stresstest.Result{
		RunID:     run.ID,
		Profile:   run.ProfileName,
		Env:       run.Env,
		BaseURL:   run.BaseURL,
		Status:    run.Status,
		StartedAt: run.StartedAt,
		ByName:    byName,
		Checks:    checks,
		Passed:    run.ThresholdsPassed,
		Overall:   overall.Summarize("overall"),
		Scenarios: []stresstest.ScenarioStats{{
			Name:       run.Scenarios,
			Iterations: run.TotalIterations,
			Dropped:    run.DroppedIterations,
		}},
	}
	if run.CompletedAt != nil {
		res.CompletedAt = *run.CompletedAt
	}
	return report.WriteSummary(w, res, opts.OutputFormat)
}

// DeleteRun removes a stored run with its samples and checks
func DeleteRun(id int64, opts RunsOptions) error {
	m, w, err := opts.open()
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := m.GetRun(id); err != nil {
		return err
	}
	if err := m.DeleteRun(id); err != nil {
		return err
	}
	fmt.Fprintf(w, "Deleted run #%d\n", id)
	return nil
}
