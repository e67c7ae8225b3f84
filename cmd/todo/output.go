package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sumire/todoshare/internal/client"
	"github.com/sumire/todoshare/internal/domain"
)

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// printTaskList prints tasks as a table. Tasks shared with me are marked.
func printTaskList(w io.Writer, tasks []domain.Task, me string, jsonOutput bool) {
	if jsonOutput {
		if tasks == nil {
			tasks = []domain.Task{}
		}
		printJSON(w, tasks)
		return
	}

	if len(tasks) == 0 {
		fmt.Fprintln(w, "No todos yet")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tDONE\tTITLE\tDUE\tSHARED\n")
	fmt.Fprintf(tw, "--\t----\t-----\t---\t------\n")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			task.ID, checkbox(task.Completed), truncate(task.Title, 40), dueString(task.DueDate), sharing(task, me))
	}
	tw.Flush()
}

// printTask prints a single task.
func printTask(w io.Writer, task *domain.Task, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, task)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", task.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", task.Title)
	fmt.Fprintf(tw, "Completed:\t%t\n", task.Completed)
	if task.DueDate != nil {
		fmt.Fprintf(tw, "Due:\t%s\n", task.DueDate)
	}
	if len(task.SharedWith) > 0 {
		fmt.Fprintf(tw, "Shared with:\t%s\n", strings.Join(task.SharedWith, ", "))
	}
	fmt.Fprintf(tw, "Created:\t%s\n", task.CreatedAt.Format("2006-01-02 15:04:05"))
	tw.Flush()
}

func printShareResult(w io.Writer, result *client.ShareResult, email string, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, result)
		return
	}
	if result.Status == domain.ShareStatusAlreadyShared {
		fmt.Fprintf(w, "Already shared with %s\n", email)
		return
	}
	fmt.Fprintf(w, "Shared with %s\n", email)
}

// printNotifications prints the inbox with an unread count header.
func printNotifications(w io.Writer, notifications []domain.Notification, jsonOutput bool) {
	if jsonOutput {
		if notifications == nil {
			notifications = []domain.Notification{}
		}
		printJSON(w, map[string]any{
			"unread":        domain.CountUnread(notifications),
			"notifications": notifications,
		})
		return
	}

	if len(notifications) == 0 {
		fmt.Fprintln(w, "No notifications")
		return
	}

	fmt.Fprintf(w, "%d unread\n\n", domain.CountUnread(notifications))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, n := range notifications {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Content)
	}
	tw.Flush()
}

func printIdentity(w io.Writer, id *domain.Identity, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, id)
		return
	}
	fmt.Fprintf(w, "%s (%s)\n", id.Email, id.ID)
}

// printError prints an error to the writer
func printError(w io.Writer, err error, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, map[string]any{
			"error": map[string]any{
				"message": err.Error(),
			},
		})
		return
	}

	fmt.Fprintf(w, "Error: %s\n", err.Error())
}

// printSuccess prints a success message
func printSuccess(w io.Writer, message string, jsonOutput bool) {
	if jsonOutput {
		printJSON(w, map[string]any{"message": message})
		return
	}
	fmt.Fprintln(w, message)
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func dueString(d *domain.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func sharing(task domain.Task, me string) string {
	switch {
	case task.UserID != me:
		return "with you"
	case len(task.SharedWith) == 1:
		return "1 person"
	case len(task.SharedWith) > 1:
		return fmt.Sprintf("%d people", len(task.SharedWith))
	default:
		return ""
	}
}

// truncate truncates a string to max length with ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
