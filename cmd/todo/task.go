package main

import (
	"github.com/spf13/cobra"

	"github.com/sumire/todoshare/internal/domain"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List your todos and those shared with you",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := a.requireSession()
			if err != nil {
				return err
			}
			tasks, err := a.client.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			printTaskList(cmd.OutOrStdout(), tasks, me.ID, a.jsonOutput)
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			task, err := a.client.CreateTask(cmd.Context(), args[0], dueDate)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task, a.jsonOutput)
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var (
		title    string
		due      string
		clearDue bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the title or due date of a todo you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			if title == "" && due == "" && !clearDue {
				return &domain.ValidationError{Field: "edit", Message: "nothing to change, use --title, --due or --clear-due"}
			}

			current, err := findTask(cmd, a, args[0])
			if err != nil {
				return err
			}

			newTitle := current.Title
			if title != "" {
				newTitle = title
			}
			newDue := current.DueDate
			switch {
			case clearDue:
				newDue = nil
			case due != "":
				if newDue, err = parseDue(due); err != nil {
					return err
				}
			}

			task, err := a.client.UpdateTask(cmd.Context(), current.ID, newTitle, newDue)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task, a.jsonOutput)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&due, "due", "", "New due date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	return cmd
}

func newDoneCmd(a *app, completed bool) *cobra.Command {
	use, short := "done <id>", "Mark a todo completed"
	if !completed {
		use, short = "undo <id>", "Mark a todo not completed"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			task, err := a.client.SetCompleted(cmd.Context(), args[0], completed)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), task, a.jsonOutput)
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a todo you own",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			if err := a.client.DeleteTask(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Deleted "+args[0], a.jsonOutput)
			return nil
		},
	}
}

func newShareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "share <id> <email>",
		Short: "Share a todo you own with another user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			result, err := a.client.ShareTask(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printShareResult(cmd.OutOrStdout(), result, args[1], a.jsonOutput)
			return nil
		},
	}
}

// findTask looks a task up in the caller's visible list.
func findTask(cmd *cobra.Command, a *app, id string) (*domain.Task, error) {
	tasks, err := a.client.ListTasks(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func parseDue(s string) (*domain.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
