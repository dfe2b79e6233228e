package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(checkSessionCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Signs in and keeps the session cookies for later commands.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.session.IsAuthenticated() {
			fmt.Fprintln(cmd.OutOrStdout(), "Already signed in from stored cookies, run logout first to sign in again.")
			return nil
		}
		err = a.ensureLogin(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Signs out and forgets the stored session cookies.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.session.Logout(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var checkSessionCmd = &cobra.Command{
	Use:   "check-session",
	Short: "Checks whether the stored session cookies are still signed in.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.session.AuthCookiesPresent() {
			return errors.New("no stored session, run login first")
		}
		valid, err := a.session.CheckSession(cmd.Context())
		if err != nil {
			return err
		}
		if !valid {
			return errors.New("the stored session has expired, run login again")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "The stored session is valid.")
		return nil
	},
}
