package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			u, err := c.app.Register(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), u)
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name")
	credentialFlags(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			u, err := c.app.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), u)
			return nil
		},
	}
	credentialFlags(cmd)
	return cmd
}

func credentialFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("email", "u", "", "account email")
	cmd.Flags().StringP("password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, ok := c.app.Session.User()
			if !ok || !c.app.Session.Authenticated() {
				return errors.New("not signed in (run diary login)")
			}
			printJSON(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reload members and entries from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Sync(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d members, %d entries\n", c.app.Family.Len(), c.app.Entries.Len())
			return nil
		},
	}
}
