package commands

import (
	"context"

	"github.com/systmms/landdsync/internal/config"
	"github.com/systmms/landdsync/internal/engine"
)

func runSync(ctx context.Context, cfg *config.Config, mode config.Mode, deps engine.Deps, metricsFile string) error {
	if err := cfg.Load(); err != nil {
		return err
	}
	def := cfg.Definition
	if err := def.Validate(mode); err != nil {
		return err
	}

	if metricsFile == "" {
		metricsFile = def.Metrics.Textfile
	}
	if deps.Metrics == nil {
		deps.Metrics = engine.NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = cfg.Logger
	}

	e, err := engine.New(def, deps)
	if err != nil {
		return err
	}
	report, runErr := e.Run(ctx, mode)

	if metricsFile != "" {
		if err := deps.Metrics.WriteTextfile(metricsFile); err != nil {
			cfg.Logger.Warn("Cannot write metrics to %s: %v", metricsFile, err)
		}
	}
	if runErr != nil {
		cfg.Logger.Error("%s sync failed after %d attempt(s)", mode, report.Attempts)
		return runErr
	}
	return nil
}
