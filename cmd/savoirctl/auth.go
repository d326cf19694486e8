package main

import (
	"fmt"

	"github.com/nigersavoir/savoir-client/internal/api"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			user, err := a.accounts.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", user.DisplayName, user.EmailAddress)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var req api.RegisterRequest
	var schoolID int64

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if schoolID > 0 {
				req.SchoolID = &schoolID
			}
			user, err := a.accounts.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s\n", user.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	cmd.Flags().StringVar(&req.City, "city", "", "city")
	cmd.Flags().StringVar(&req.Region, "region", "", "region")
	cmd.Flags().StringVar(&req.Grade, "grade", "", "school grade")
	cmd.Flags().Int64Var(&schoolID, "school", 0, "school id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			if err := a.accounts.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			current, ok := a.sessions.Current(ctx)
			if !ok {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			if !remote {
				if current.User == nil {
					fmt.Fprintln(out, "Signed in (no cached profile)")
					return nil
				}
				fmt.Fprintf(out, "%s <%s> %s\n", current.User.DisplayName, current.User.EmailAddress, current.User.Role)
				return nil
			}

			me, err := a.client.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s <%s> %s\n", me.Name, me.Email, me.Role)
			if me.School != nil {
				fmt.Fprintf(out, "School: %s (%s)\n", me.School.Name, me.School.City)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the profile from the server")
	return cmd
}
