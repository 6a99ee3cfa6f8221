package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studiowebux/trackload/internal/cli"
)

var (
	version = "0.1.0"
)

// exitThresholds is the exit code of a completed run that breached a threshold
const exitThresholds = 99

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrThresholdsFailed) {
			os.Exit(exitThresholds)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "trackload",
	Short: "Load generator for YouTrack-style issue trackers",
	Long: `trackload drives realistic issue tracker traffic: issue creation,
updates, views and searches at configurable arrival rates, then judges the
run against timing and failure thresholds.

Configuration comes from the environment (or a .env file):
  ENV, BASE_URL, RAMP_UP, HOLD_RATE, TEAR_DOWN, X_LOAD, TOKEN,
  HTTP_TIMEOUT, FEEDS_DIR, DB_PATH, METRICS_ADDR, LOG_LEVEL

Examples:
  trackload run                          # Mixed workload from the default profile
  trackload run view_issue search        # Only some scenarios
  trackload run -p soak.yaml -o json     # Custom profile, JSON summary
  trackload setup users                  # Create accounts from users.csv
  trackload setup issues                 # Populate the tracker
  trackload runs                         # List stored runs
  trackload mock --port 8080             # Local tracker double for ENV=local`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run the load profile",
	Long: `Run the scenarios of the load profile concurrently.

Scenarios: create_issue, update_issue, view_issue, search.
All profile scenarios run when none are named. Exits with code 99 when a
threshold is breached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions()
		opts.Scenarios = args
		return cli.Run(cmd.Context(), opts)
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Prepare a tracker for load runs",
}

var setupUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Create one account per users.csv row and log its permanent token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.SetupUsers(cmd.Context(), runOptions())
	},
}

var setupIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Bulk-create issues to populate the tracker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.SetupIssues(cmd.Context(), runOptions())
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored load runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListRuns(runsOptions())
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the stored summary of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		return cli.ShowRun(id, runsOptions())
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}
		return cli.DeleteRun(id, runsOptions())
	},
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Serve an in-memory tracker double",
	Long: `Serve an in-memory tracker implementing every endpoint the scenarios call.

Any non-empty bearer token is accepted. Point ENV=local (or BASE_URL) at it
for dry runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ServeMock(cmd.Context(), cli.MockOptions{
			ConfigPath: mockConfig,
			Port:       mockPort,
			Host:       mockHost,
			SeedIssues: mockSeed,
			LogLevel:   os.Getenv("LOG_LEVEL"),
			Ready: func(addr string) {
				fmt.Fprintf(os.Stderr, "Tracker double listening on %s\n", addr)
			},
		})
	},
}

// Flags for run and setup
var (
	flagProfile string
	flagEnvFile string
	flagHosts   string
	flagOutput  string
	flagDB      string
	flagNoStore bool
)

// Flags for runs
var (
	runsLimit int
)

// Flags for mock
var (
	mockConfig string
	mockPort   int
	mockHost   string
	mockSeed   int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "text", "Output format (text/json/yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Run database path (default DB_PATH or ~/.trackload/trackload.db)")

	for _, cmd := range []*cobra.Command{runCmd, setupUsersCmd, setupIssuesCmd} {
		cmd.Flags().StringVarP(&flagProfile, "profile", "p", "", "Load profile YAML file")
		cmd.Flags().StringVar(&flagEnvFile, "env-file", "", "Load environment variables from file")
		cmd.Flags().StringVar(&flagHosts, "hosts", "", "hosts.jsonc mapping ENV names to base URLs")
		cmd.Flags().BoolVar(&flagNoStore, "no-store", false, "Do not persist the run")
	}

	runsCmd.PersistentFlags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs to list")

	mockCmd.Flags().StringVarP(&mockConfig, "config", "c", "", "Tracker double config file (yaml/json)")
	mockCmd.Flags().IntVar(&mockPort, "port", 0, "Port to listen on (default 8080)")
	mockCmd.Flags().StringVar(&mockHost, "host", "", "Host to bind (default localhost)")
	mockCmd.Flags().IntVar(&mockSeed, "seed", 0, "Issues created at startup")

	setupCmd.AddCommand(setupUsersCmd)
	setupCmd.AddCommand(setupIssuesCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mockCmd)
}

func runOptions() cli.RunOptions {
	return cli.RunOptions{
		ProfileFile:  flagProfile,
		EnvFile:      flagEnvFile,
		HostsFile:    flagHosts,
		OutputFormat: flagOutput,
		DBPath:       flagDB,
		NoStore:      flagNoStore,
	}
}

func runsOptions() cli.RunsOptions {
	path := flagDB
	if path == "" {
		path = os.Getenv("DB_PATH")
	}
	return cli.RunsOptions{
		DBPath:       path,
		OutputFormat: flagOutput,
		Limit:        runsLimit,
	}
}

func parseRunID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", raw)
	}
	return id, nil
}
