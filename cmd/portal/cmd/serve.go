package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kochabx/portal/internal/bootstrap"
	"github.com/kochabx/portal/log"
)

func newServeCmd(env *environment) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := env.load(); err != nil {
				return err
			}
			rt, err := bootstrap.Build(ctx, env.cfg, env.logger)
			if err != nil {
				_ = env.logger.Close()
				return err
			}
			if migrate {
				if err := rt.Migrate(ctx); err != nil {
					_ = rt.Close(context.Background())
					return err
				}
			}

			application, err := rt.App(ctx)
			if err != nil {
				_ = rt.Close(context.Background())
				return err
			}
			application.RegisterClose("logger", func(context.Context) error { return env.logger.Close() }, 0)

			env.loader.OnChange(func() {
				var level string
				env.loader.Read(func() { level = env.cfg.Log.Level })
				if err := log.SetProcessLevel(level); err != nil {
					env.logger.Warn().Err(err).Msg("ignoring log level")
					return
				}
				env.logger.Info().Str("level", level).Msg("log level changed")
			})
			if *env.configPath != "" {
				if err := env.loader.Watch(); err != nil {
					env.logger.Warn().Err(err).Msg("config watch disabled")
				}
			}

			env.logger.Info().Str("env", env.cfg.Env).Str("addr", env.cfg.HTTP.Addr).Msg("starting portal")
			return application.Run()
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "create or update the tables before serving")
	return cmd
}
