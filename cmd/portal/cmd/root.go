// Package cmd is the portal command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kochabx/portal/config"
	"github.com/kochabx/portal/internal/bootstrap"
	"github.com/kochabx/portal/internal/conf"
	"github.com/kochabx/portal/log"
)

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "portal",
		Short:        "Session and credential service of the content portal",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml); PORTAL_* variables override it")

	env := &environment{configPath: &configPath}
	root.AddCommand(
		newServeCmd(env),
		newMigrateCmd(env),
		newPurgeCmd(env),
		newUserCmd(env),
	)
	return root
}

// environment is what every command loads before doing its work.
type environment struct {
	configPath *string

	cfg    *conf.Config
	loader *config.Config
	logger *log.Logger
}

func (e *environment) load() error {
	cfg, loader, err := conf.Load(*e.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// built at trace so the process level alone decides, also after reloads
	lc := cfg.Log
	lc.Level = "trace"
	logger, err := log.NewFromConfig(lc)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	if err := log.SetProcessLevel(cfg.Log.Level); err != nil {
		return err
	}
	log.SetGlobalLogger(logger)

	e.cfg, e.loader, e.logger = cfg, loader, logger
	return nil
}

// runtime loads the environment and builds the components. The returned
// func releases both.
func (e *environment) runtime(ctx context.Context) (*bootstrap.Runtime, func(), error) {
	if err := e.load(); err != nil {
		return nil, nil, err
	}
	rt, err := bootstrap.Build(ctx, e.cfg, e.logger)
	if err != nil {
		_ = e.logger.Close()
		return nil, nil, err
	}
	release := func() {
		if err := rt.Close(context.Background()); err != nil {
			e.logger.Warn().Err(err).Msg("close")
		}
		_ = e.logger.Close()
	}
	return rt, release, nil
}
