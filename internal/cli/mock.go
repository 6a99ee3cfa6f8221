package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/studiowebux/trackload/internal/mock"
	"github.com/studiowebux/trackload/internal/report"
)

// MockOptions configures the local tracker double
type MockOptions struct {
	ConfigPath string // yaml or json config, defaults when empty
	Port       int    // overrides the config port when non-zero
	Host       string
	SeedIssues int
	LogLevel   string
	Logger     *zap.Logger
	// Ready is called with the base URL once the double is listening
	Ready func(addr string)
}

// ServeMock runs the tracker double until ctx is done
func ServeMock(ctx context.Context, opts MockOptions) error {
	cfg := mock.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := mock.LoadConfig(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.SeedIssues > 0 {
		cfg.SeedIssues = opts.SeedIssues
	}

	log := opts.Logger
	if log == nil {
		var err error
		if log, err = report.NewLogger(opts.LogLevel); err != nil {
			return err
		}
		defer log.Sync()
	}

	srv := mock.NewServer(cfg, log)
	if err := srv.Start(); err != nil {
		return err
	}
	if opts.Ready != nil {
		opts.Ready(srv.GetAddress())
	}

	<-ctx.Done()
	issues, users := srv.Store().Stats()
	log.Info("tracker double stopping", zap.Int("issues", issues), zap.Int("users", users))
	if err := srv.Stop(); err != nil {
		return fmt.Errorf("failed to stop tracker double: %w", err)
	}
	return nil
}
