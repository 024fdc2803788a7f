package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kochabx/portal/internal/user"
)

// PasswordEnv supplies the password of user add when no flag is given.
const PasswordEnv = "PORTAL_NEW_PASSWORD"

func newUserCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserAddCmd(env), newUserDisableCmd(env))
	return cmd
}

func newUserAddCmd(env *environment) *cobra.Command {
	var p user.CreateParams

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an account",
		Long: "Create an account. The password is taken from --password, then " +
			PasswordEnv + ", then the first line of stdin.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if p.Password == "" {
				p.Password = os.Getenv(PasswordEnv)
			}
			if p.Password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				p.Password = strings.TrimRight(line, "\r\n")
			}

			rt, release, err := env.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			u, err := rt.Users.Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Email, "email", "", "login email")
	f.StringVar(&p.Name, "name", "", "display name")
	f.StringVar(&p.Role, "role", user.RoleUser, "user or admin")
	f.StringVar(&p.Password, "password", "", "password (visible in the process list)")
	f.BoolVar(&p.Approved, "approved", true, "account may sign in right away")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newUserDisableCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <user-id>",
		Short: "Deactivate an account and revoke its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, release, err := env.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			ctx := cmd.Context()
			u, err := rt.Users.FindByID(ctx, args[0])
			if err != nil {
				return err
			}
			if err := rt.Users.SetStatus(ctx, u.ID, false, u.Approved); err != nil {
				return err
			}
			n, err := rt.Sessions.RevokeAll(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "disabled, %d sessions revoked\n", n)
			return nil
		},
	}
}
