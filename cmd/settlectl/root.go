package main

import (
	"context"

	"github.com/fieldops/backend/internal/app"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configDir string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "settlectl",
		Short:         "Settlement maintenance for the fieldops backend",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "Directory holding config.toml (default: ., ./backend, /app)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log.level")

	root.AddCommand(
		newReconcileCmd(opts),
		newProofsCmd(opts),
		newTokenCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configDir != "" {
		return config.LoadFrom(o.configDir)
	}
	return config.Load()
}

// logger writes to stderr so command output on stdout stays machine readable
func (o *rootOptions) logger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	return logger.New(logger.Config{Level: level, Format: cfg.Log.Format, Output: "stderr"})
}

// withContainer loads config, builds the services and hands them to fn
func (o *rootOptions) withContainer(ctx context.Context, fn func(*app.Container) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	log, err := o.logger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	c, err := app.New(ctx, cfg, log, app.Options{SkipIdempotency: true})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(context.Background()); cerr != nil {
			log.Warn("failed to release resources", zap.Error(cerr))
		}
	}()
	return fn(c)
}
