package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/feed"
	"github.com/sumire/todoshare/internal/session"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow your todos and notifications live",
		Long:  `Prints the todo list and inbox whenever they change, until interrupted or the session ends.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := a.requireSession()
			if err != nil {
				return err
			}
			log, err := a.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			var ended atomic.Bool
			unsubscribe := a.store.Subscribe(func(change session.Change) {
				if change.Kind == session.SignedOut {
					ended.Store(true)
					cancel()
				}
			})
			defer unsubscribe()

			listener := feed.New(a.client, a.store, log)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return listener.Run(gctx)
			})
			g.Go(func() error {
				for u := range listener.Updates() {
					if done := printUpdate(cmd.OutOrStdout(), u, me, a.jsonOutput); done {
						cancel()
					}
				}
				return nil
			})
			if err := g.Wait(); err != nil {
				return err
			}

			if ended.Load() {
				printSuccess(cmd.OutOrStdout(), "Session ended", a.jsonOutput)
			}
			return nil
		},
	}
}

// printUpdate renders one listener update and reports whether watching
// should stop.
func printUpdate(w io.Writer, u feed.Update, me *domain.Identity, jsonOutput bool) bool {
	if jsonOutput {
		out := map[string]any{"kind": u.Kind}
		switch u.Kind {
		case feed.TasksChanged:
			out["tasks"] = u.Tasks
		case feed.NotificationsChanged:
			out["notifications"] = u.Notifications
		case feed.SharedWithYou:
			out["task"] = u.Task
		case feed.Failed:
			out["error"] = u.Err.Error()
		}
		printJSON(w, out)
		return u.Kind == feed.Disconnected
	}

	switch u.Kind {
	case feed.TasksChanged:
		fmt.Fprintln(w, "== todos")
		printTaskList(w, u.Tasks, me.ID, false)
	case feed.NotificationsChanged:
		fmt.Fprintln(w, "== inbox")
		printNotifications(w, u.Notifications, false)
	case feed.SharedWithYou:
		fmt.Fprintf(w, "A todo was shared with you: %s\n", u.Task.Title)
	case feed.Failed:
		fmt.Fprintf(w, "Error: %s\n", u.Err)
	case feed.Disconnected:
		fmt.Fprintln(w, "Disconnected from server")
		return true
	}
	return false
}
