package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, release, err := env.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			if err := rt.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func newPurgeCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired refresh credentials once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, release, err := env.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			p, err := rt.Purger()
			if err != nil {
				return err
			}
			n, err := p.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d credentials\n", n)
			return nil
		},
	}
}
