package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studiowebux/trackload/internal/config"
	"github.com/studiowebux/trackload/internal/executor"
	"github.com/studiowebux/trackload/internal/fixtures"
	"github.com/studiowebux/trackload/internal/metrics"
	"github.com/studiowebux/trackload/internal/report"
	"github.com/studiowebux/trackload/internal/scenario"
	"github.com/studiowebux/trackload/internal/stresstest"
	"github.com/studiowebux/trackload/internal/tracker"
	"github.com/studiowebux/trackload/internal/types"
)

var (
	// ErrThresholdsFailed is returned when a run completes but breaches a threshold
	ErrThresholdsFailed = errors.New("thresholds failed")
	// ErrAdminTokenRequired is returned by setup users when TOKEN is missing
	ErrAdminTokenRequired = errors.New("TOKEN is required to create users")
)

// RunOptions contains options for a load run
type RunOptions struct {
	Scenarios    []string // profile scenarios to run, all when empty
	ProfileFile  string   // YAML load profile
	EnvFile      string   // path to .env file
	HostsFile    string   // hosts.jsonc
	OutputFormat string   // text, json, yaml
	DBPath       string   // overrides DB_PATH
	NoStore      bool     // skip run persistence

	Stdout io.Writer
	// Config replaces loading from the environment when set
	Config *config.Config
	// Logger replaces the LOG_LEVEL console logger when set
	Logger *zap.Logger
}

// Run executes the load profile against the configured tracker
func Run(ctx context.Context, opts RunOptions) error {
	return execute(ctx, opts, nil, fixtures.NeedIssues)
}

// SetupUsers creates one account per users.csv row and logs its token
func SetupUsers(ctx context.Context, opts RunOptions) error {
	opts.Scenarios = nil
	return execute(ctx, opts, config.UsersProfile(), fixtures.NeedUsers)
}

// SetupIssues bulk-creates issues to populate the tracker
func SetupIssues(ctx context.Context, opts RunOptions) error {
	opts.Scenarios = nil
	return execute(ctx, opts, config.SeedIssuesProfile(), fixtures.NeedIssues)
}

func loadConfig(opts RunOptions) (*config.Config, error) {
	if opts.Config != nil {
		return opts.Config, nil
	}
	cfg, err := config.Load(config.LoadOptions{
		EnvFile:     opts.EnvFile,
		HostsFile:   opts.HostsFile,
		ProfileFile: opts.ProfileFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.DBPath != "" {
		cfg.DatabasePath = opts.DBPath
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config, opts RunOptions) (*zap.Logger, error) {
	if opts.Logger != nil {
		return opts.Logger, nil
	}
	return report.NewLogger(cfg.LogLevel)
}

// execute runs profile (the configured one when nil) and writes the summary
func execute(ctx context.Context, opts RunOptions, profile *config.Profile, need fixtures.Requirement) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if profile != nil {
		cfg.Profile = profile
	}
	if need&fixtures.NeedUsers != 0 && !cfg.HasAdminToken() {
		return ErrAdminTokenRequired
	}

	log, err := buildLogger(cfg, opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	ds, err := fixtures.Load(cfg.FeedsDir, need)
	if err != nil {
		return fmt.Errorf("failed to load fixtures: %w", err)
	}

	plans, err := stresstest.BuildPlans(cfg, opts.Scenarios, len(ds.Users))
	if err != nil {
		return err
	}
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		names = append(names, p.Name)
	}
	thresholds, err := stresstest.ParseThresholds(cfg.Profile.Thresholds)
	if err != nil {
		return err
	}

	run := &stresstest.Run{
		ProfileName: cfg.Profile.Name,
		Env:         cfg.Env,
		BaseURL:     cfg.BaseURL,
		Scenarios:   strings.Join(names, ","),
		XLoad:       cfg.XLoad,
		StartedAt:   time.Now(),
		Status:      stresstest.StatusRunning,
	}

	tlsCfg, err := executor.LoadTLSConfig(cfg.TLS)
	if err != nil {
		return err
	}

	var manager *stresstest.Manager
	if !opts.NoStore {
		dbPath, err := config.ResolveDatabasePath(cfg.DatabasePath)
		if err != nil {
			return err
		}
		manager, err = stresstest.NewManager(dbPath)
		if err != nil {
			return err
		}
		defer manager.Close()
		if err := manager.CreateRun(run); err != nil {
			return err
		}
	}

	collector := stresstest.NewCollector(manager, run.ID, log)
	collector.Plan(plans)
	prom := metrics.NewRecorder()
	recorder := types.MultiRecorder{collector, prom}

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Start(cfg.MetricsAddr, prom.Registry(), log)
		if err != nil {
			return err
		}
		defer stopServer(srv, 5*time.Second, log)
	}

	api := tracker.New(cfg.BaseURL, executor.New(executor.Options{
		Timeout:  cfg.HTTPTimeout,
		Recorder: recorder,
		TLS:      tlsCfg,
	}))
	runner, err := scenario.New(scenario.Options{
		Dataset:    ds,
		API:        api,
		Reporter:   report.NewErrorReporter(log),
		Checks:     recorder,
		AdminToken: cfg.Token,
		Settle:     scenario.DefaultSettle,
	})
	if err != nil {
		return err
	}

	flows := make(map[string]stresstest.Flow, len(plans))
	for _, p := range plans {
		flow, err := runner.Flow(p.Name)
		if err != nil {
			return err
		}
		flows[p.Name] = stresstest.Flow(flow)
	}

	log.Info("load run started",
		zap.Int64("run", run.ID),
		zap.String("profile", run.ProfileName),
		zap.String("target", cfg.BaseURL),
		zap.Strings("scenarios", names),
		zap.Float64("x_load", cfg.XLoad))

	driver := stresstest.NewDriver(log, iterationFanout{collector, prom})
	_, runErr := driver.Run(ctx, plans, flows)

	if err := collector.Close(); err != nil {
		log.Warn("failed to flush samples", zap.Error(err))
	}

	res := collector.Snapshot()
	res.Thresholds, res.Passed = stresstest.EvaluateThresholds(thresholds, collector)
	res.RunID = run.ID
	res.Profile = run.ProfileName
	res.Env = run.Env
	res.BaseURL = run.BaseURL
	res.StartedAt = run.StartedAt
	res.CompletedAt = time.Now()
	res.Status = stresstest.StatusCompleted
	switch {
	case errors.Is(runErr, stresstest.ErrIterationPanicked):
		res.Status = stresstest.StatusFailed
	case runErr != nil:
		res.Status = stresstest.StatusCancelled
	}

	if manager != nil {
		finishRun(run, &res)
		if err := manager.UpdateRun(run); err != nil {
			log.Warn("failed to save run", zap.Int64("run", run.ID), zap.Error(err))
		}
	}

	if err := report.WriteSummary(stdout, &res, opts.OutputFormat); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("run %s: %w", res.Status, runErr)
	}
	if !res.Passed {
		return ErrThresholdsFailed
	}
	return nil
}

// finishRun copies the run totals from res
func finishRun(run *stresstest.Run, res *stresstest.Result) {
	completed := res.CompletedAt
	run.CompletedAt = &completed
	run.Status = res.Status
	run.TotalRequests = res.Overall.Count
	run.FailedRequests = res.Overall.Failed
	for _, s := range res.Scenarios {
		run.TotalIterations += s.Iterations
		run.DroppedIterations += s.Dropped
	}
	for _, c := range res.Checks {
		run.ChecksPassed += c.Passed
		run.ChecksFailed += c.Failed
	}
	run.ThresholdsPassed = res.Passed
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// stopServer shuts srv down within timeout, logging a failed shutdown
func stopServer(srv shutdowner, timeout time.Duration, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("failed to stop metrics server", zap.Error(err))
	}
}

// iterationFanout forwards iteration events to every observer
type iterationFanout []stresstest.IterationObserver

func (f iterationFanout) IterationStarted(scenario string) {
	for _, o := range f {
		o.IterationStarted(scenario)
	}
}

func (f iterationFanout) IterationDropped(scenario string) {
	for _, o := range f {
		o.IterationDropped(scenario)
	}
}
