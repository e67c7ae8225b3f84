package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sumire/todoshare/internal/domain"
)

func newSignUpCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			id, err := a.store.SignUp(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				printIdentity(cmd.OutOrStdout(), id, true)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s\n", id.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	return cmd
}

func newSignInCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signin <email>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			id, err := a.store.SignIn(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				printIdentity(cmd.OutOrStdout(), id, true)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", id.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	return cmd
}

func newSignOutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out on every device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			if err := a.store.SignOut(cmd.Context()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Signed out", a.jsonOutput)
			return nil
		},
	}
}

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			user, err := a.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				printJSON(cmd.OutOrStdout(), user)
				return nil
			}
			printIdentity(cmd.OutOrStdout(), &domain.Identity{ID: user.ID, Email: user.Email}, false)
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in with %s, session in %s\n", user.Provider, a.session.Path())
			return nil
		},
	}
}

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <email>",
		Short: "Check that a user has signed up, before sharing with them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			profile, err := a.client.FindProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), &domain.Identity{ID: profile.ID, Email: profile.Email}, a.jsonOutput)
			return nil
		},
	}
}

// readPassword returns the flag value, or the first line of r.
func readPassword(r io.Reader, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", &domain.ValidationError{Field: "password", Message: "password is required"}
	}
	return pw, nil
}
