package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sumire/todoshare/internal/domain"
)

func newInboxCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "Show your notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			notifications, err := a.client.ListNotifications(cmd.Context())
			if err != nil {
				return err
			}
			printNotifications(cmd.OutOrStdout(), notifications, a.jsonOutput)
			return nil
		},
	}
}

func newReadCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "read [id]",
		Short: "Mark a notification, or all of them, as read",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return &domain.ValidationError{Field: "id", Message: "cannot combine an id with --all"}
			}
			if !all && len(args) != 1 {
				return &domain.ValidationError{Field: "id", Message: "expected a notification id or --all"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			if all {
				changed, err := a.client.MarkAllRead(cmd.Context())
				if err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), fmt.Sprintf("Marked %d notifications read", len(changed)), a.jsonOutput)
				return nil
			}
			if _, err := a.client.MarkRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Marked "+args[0]+" read", a.jsonOutput)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Mark every notification read")
	return cmd
}
