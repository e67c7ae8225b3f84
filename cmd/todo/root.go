package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/client"
	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/logger"
	"github.com/sumire/todoshare/internal/session"
)

// app carries global flags and the lazily built client for one invocation.
type app struct {
	server      string
	jsonOutput  bool
	verbose     bool
	sessionFile string
	timeout     time.Duration

	client  *client.Client
	store   *session.Store
	session *session.File
}

// connect builds the client and session store on first use.
func (a *app) connect() error {
	if a.client != nil {
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	server, err := resolveServer(a.server, home)
	if err != nil {
		return err
	}

	file := session.NewFile(a.sessionFile)
	if a.sessionFile == "" {
		if file, err = session.DefaultFile(); err != nil {
			return err
		}
	}

	c, err := client.New(server,
		client.WithTokenStore(file),
		client.WithHTTPClient(&http.Client{Timeout: a.timeout}),
	)
	if err != nil {
		return err
	}
	a.client = c
	a.store = session.NewStore(c, c)
	a.session = file
	return nil
}

// requireSession connects and fails when nobody is signed in.
func (a *app) requireSession() (*domain.Identity, error) {
	if err := a.connect(); err != nil {
		return nil, err
	}
	id := a.store.Current()
	if id == nil {
		return nil, client.ErrNotSignedIn
	}
	return id, nil
}

func (a *app) logger(w io.Writer) (*zap.Logger, error) {
	if !a.verbose {
		return zap.NewNop(), nil
	}
	return logger.NewTo(w, "debug", "console")
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "todo",
		Short:         "Shared to-do list CLI",
		Long:          `A CLI for keeping to-dos, sharing them with other users and following changes live.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Output as JSON")
	root.PersistentFlags().StringVar(&a.server, "server", "", "Server URL (default from TODO_SERVER or ~/.todoshare/config.toml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log diagnostics to stderr")
	root.PersistentFlags().StringVar(&a.sessionFile, "session-file", "", "Session file (default ~/.todoshare/session.toml)")
	_ = root.PersistentFlags().MarkHidden("session-file")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "Timeout for each API request")

	root.AddCommand(
		newSignUpCmd(a),
		newSignInCmd(a),
		newSignOutCmd(a),
		newWhoAmICmd(a),
		newListCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDoneCmd(a, true),
		newDoneCmd(a, false),
		newRemoveCmd(a),
		newShareCmd(a),
		newLookupCmd(a),
		newInboxCmd(a),
		newReadCmd(a),
		newWatchCmd(a),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(args []string) int {
	return execute(args, os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		jsonOutput, _ := root.PersistentFlags().GetBool("json")
		printError(stderr, err, jsonOutput)
	}
	return mapErrorToExitCode(err)
}

// mapErrorToExitCode maps an error to the appropriate exit code
func mapErrorToExitCode(err error) int {
	var ve *domain.ValidationError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, client.ErrServerNotRunning):
		return ExitServerNotRunning
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthorized):
		return ExitNotSignedIn
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrForbidden):
		return ExitPermissionDenied
	case errors.Is(err, domain.ErrConflict):
		return ExitConflict
	case errors.As(err, &ve), errors.Is(err, domain.ErrInvalidInput):
		return ExitInvalidInput
	default:
		return ExitGeneralError
	}
}
