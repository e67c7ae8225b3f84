package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/client"
	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/feed"
	"github.com/sumire/todoshare/internal/handler"
	"github.com/sumire/todoshare/internal/repository/memory"
	"github.com/sumire/todoshare/internal/service"
)

func TestMapErrorToExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"server not running", fmt.Errorf("dial: %w", client.ErrServerNotRunning), ExitServerNotRunning},
		{"not signed in", client.ErrNotSignedIn, ExitNotSignedIn},
		{"bad credentials", &client.APIError{Status: 401, Code: "invalid_credentials"}, ExitNotSignedIn},
		{"not found", &client.APIError{Status: 404, Code: "not_found"}, ExitNotFound},
		{"share target", &client.APIError{Status: 404, Code: "user_not_found"}, ExitNotFound},
		{"forbidden", &client.APIError{Status: 403, Code: "forbidden"}, ExitPermissionDenied},
		{"conflict", &client.APIError{Status: 409, Code: "conflict"}, ExitConflict},
		{"validation", &domain.ValidationError{Field: "title", Message: "title is required"}, ExitInvalidInput},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapErrorToExitCode(tt.err))
		})
	}
}

func TestResolveServer(t *testing.T) {
	home := t.TempDir()

	t.Run("default", func(t *testing.T) {
		t.Setenv("TODO_SERVER", "")
		got, err := resolveServer("", home)
		require.NoError(t, err)
		assert.Equal(t, defaultServer, got)
	})

	require.NoError(t, os.MkdirAll(filepath.Join(home, ".todoshare"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".todoshare", "config.toml"),
		[]byte("[server]\nurl = \"http://from-file:9000\"\n"), 0o600))

	t.Run("config file", func(t *testing.T) {
		t.Setenv("TODO_SERVER", "")
		got, err := resolveServer("", home)
		require.NoError(t, err)
		assert.Equal(t, "http://from-file:9000", got)
	})

	t.Run("env beats file", func(t *testing.T) {
		t.Setenv("TODO_SERVER", "http://from-env:9000")
		got, err := resolveServer("", home)
		require.NoError(t, err)
		assert.Equal(t, "http://from-env:9000", got)
	})

	t.Run("flag beats env", func(t *testing.T) {
		t.Setenv("TODO_SERVER", "http://from-env:9000")
		got, err := resolveServer("http://from-flag:9000", home)
		require.NoError(t, err)
		assert.Equal(t, "http://from-flag:9000", got)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}

func TestSharing(t *testing.T) {
	assert.Equal(t, "", sharing(domain.Task{UserID: "me"}, "me"))
	assert.Equal(t, "1 person", sharing(domain.Task{UserID: "me", SharedWith: domain.IDList{"b"}}, "me"))
	assert.Equal(t, "2 people", sharing(domain.Task{UserID: "me", SharedWith: domain.IDList{"b", "c"}}, "me"))
	assert.Equal(t, "with you", sharing(domain.Task{UserID: "a", SharedWith: domain.IDList{"me"}}, "me"))
}

func TestPrintNotifications(t *testing.T) {
	var buf bytes.Buffer
	printNotifications(&buf, []domain.Notification{
		{ID: "n1", Content: "alice@example.com shared a todo with you: Buy milk"},
		{ID: "n2", Content: "old", Read: true},
	}, false)

	out := buf.String()
	assert.Contains(t, out, "1 unread")
	assert.Contains(t, out, "*  n1")
	assert.Contains(t, out, "Buy milk")
}

func TestPrintUpdate_StopsOnDisconnect(t *testing.T) {
	var buf bytes.Buffer
	me := &domain.Identity{ID: "me"}

	assert.False(t, printUpdate(&buf, feed.Update{Kind: feed.SharedWithYou, Task: &domain.Task{Title: "Buy milk"}}, me, false))
	assert.Contains(t, buf.String(), "shared with you: Buy milk")

	assert.True(t, printUpdate(&buf, feed.Update{Kind: feed.Disconnected}, me, false))
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("ignored\n"), "flag-pw")
	require.NoError(t, err)
	assert.Equal(t, "flag-pw", pw)

	pw, err = readPassword(strings.NewReader("secret\r\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)

	_, err = readPassword(strings.NewReader(""), "")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// cli runs commands against one server as one user.
type cli struct {
	t           *testing.T
	server      string
	sessionFile string
}

func newServer(t *testing.T) string {
	t.Helper()
	store := memory.New()
	bus := changefeed.NewMemoryBus(zap.NewNop())
	logger := zap.NewNop()

	e := handler.NewRouter(handler.Services{
		Auth: service.NewAuthService(store.Users(), store.Profiles(), bus, logger, service.AuthConfig{
			JWTSecret:       "test-secret",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		}),
		Tasks:         service.NewTaskService(store.Tasks(), bus, logger),
		Sharing:       service.NewSharingService(store, store.Tasks(), store.Profiles(), store.Notifications(), bus, logger),
		Notifications: service.NewNotificationService(store.Notifications(), bus, logger),
		Profiles:      service.NewProfileService(store.Profiles()),
		Feed:          bus,
	}, []string{"*"}, logger)

	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		_ = bus.Close()
		srv.Close()
	})
	return srv.URL
}

func newCLI(t *testing.T, server string) *cli {
	return &cli{t: t, server: server, sessionFile: filepath.Join(t.TempDir(), "session.toml")}
}

func (c *cli) run(args ...string) (string, string, int) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--server", c.server, "--session-file", c.sessionFile}, args...)
	code := execute(full, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, errOut, code := c.run(args...)
	require.Equal(c.t, ExitSuccess, code, "todo %v: %s", args, errOut)
	return out
}

func TestCLI_ShareFlow(t *testing.T) {
	server := newServer(t)
	alice := newCLI(t, server)
	bob := newCLI(t, server)

	assert.Contains(t, alice.mustRun("signup", "alice@example.com", "--password", "pw-alice"), "Signed up as alice@example.com")
	bob.mustRun("signup", "bob@example.com", "--password", "pw-bob")

	var created domain.Task
	require.NoError(t, json.Unmarshal([]byte(alice.mustRun("--json", "add", "Buy milk", "--due", "2026-11-01")), &created))
	assert.Equal(t, "Buy milk", created.Title)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, "2026-11-01", created.DueDate.String())

	assert.Contains(t, alice.mustRun("share", created.ID, "bob@example.com"), "Shared with bob@example.com")
	assert.Contains(t, alice.mustRun("share", created.ID, "bob@example.com"), "Already shared with bob@example.com")

	list := bob.mustRun("ls")
	assert.Contains(t, list, "Buy milk")
	assert.Contains(t, list, "with you")

	inbox := bob.mustRun("inbox")
	assert.Contains(t, inbox, "1 unread")
	assert.Contains(t, inbox, "alice@example.com shared a todo with you: Buy milk")

	bob.mustRun("done", created.ID)
	assert.Contains(t, alice.mustRun("ls"), "[x]")

	_, errOut, code := bob.run("rm", created.ID)
	assert.Equal(t, ExitPermissionDenied, code)
	assert.Contains(t, errOut, "Error:")

	assert.Contains(t, bob.mustRun("read", "--all"), "Marked 1 notifications read")
	assert.Contains(t, bob.mustRun("inbox"), "0 unread")

	alice.mustRun("edit", created.ID, "--title", "Buy oat milk", "--clear-due")
	assert.Contains(t, bob.mustRun("ls"), "Buy oat milk")

	alice.mustRun("rm", created.ID)
	assert.Contains(t, bob.mustRun("ls"), "No todos yet")
}

func TestCLI_Errors(t *testing.T) {
	server := newServer(t)
	alice := newCLI(t, server)

	_, errOut, code := alice.run("ls")
	assert.Equal(t, ExitNotSignedIn, code)
	assert.Contains(t, errOut, "Error:")

	alice.mustRun("signup", "alice@example.com", "--password", "pw-alice")

	_, _, code = alice.run("add", "   ")
	assert.Equal(t, ExitInvalidInput, code)

	var created domain.Task
	require.NoError(t, json.Unmarshal([]byte(alice.mustRun("--json", "add", "Buy milk")), &created))

	_, errOut, code = alice.run("share", created.ID, "nobody@example.com")
	assert.Equal(t, ExitNotFound, code)
	assert.Contains(t, errOut, "User not found")

	_, _, code = alice.run("add", "x", "--due", "tomorrow")
	assert.Equal(t, ExitInvalidInput, code)

	alice.mustRun("signout")
	_, _, code = alice.run("whoami")
	assert.Equal(t, ExitNotSignedIn, code)

	_, _, code = alice.run("signin", "alice@example.com", "--password", "wrong")
	assert.Equal(t, ExitNotSignedIn, code)
	assert.Contains(t, alice.mustRun("signin", "alice@example.com", "--password", "pw-alice"), "Signed in as alice@example.com")
}

func TestCLI_ServerNotRunning(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	c := newCLI(t, url)
	_, _, code := c.run("signin", "alice@example.com", "--password", "pw-alice")
	assert.Equal(t, ExitServerNotRunning, code)
}

func TestCLI_WhoAmIAndLookup(t *testing.T) {
	server := newServer(t)
	alice := newCLI(t, server)
	bob := newCLI(t, server)

	alice.mustRun("signup", "alice@example.com", "--password", "pw-alice")
	bob.mustRun("signup", "bob@example.com", "--password", "pw-bob1")

	who := alice.mustRun("whoami")
	assert.Contains(t, who, "alice@example.com")
	assert.Contains(t, who, "Signed in with password")
	assert.Contains(t, who, alice.sessionFile)

	var user domain.User
	require.NoError(t, json.Unmarshal([]byte(alice.mustRun("--json", "whoami")), &user))
	assert.Equal(t, "alice@example.com", user.Email)

	var found domain.Identity
	require.NoError(t, json.Unmarshal([]byte(alice.mustRun("--json", "lookup", "BOB@example.com")), &found))
	assert.Equal(t, "bob@example.com", found.Email)
	assert.NotEmpty(t, found.ID)

	_, _, code := alice.run("lookup", "nobody@example.com")
	assert.Equal(t, ExitNotFound, code)
}

func TestCLI_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer slow.Close()

	c := newCLI(t, slow.URL)
	_, errOut, code := c.run("--timeout", "50ms", "signin", "alice@example.com", "--password", "pw-alice")
	assert.Equal(t, ExitGeneralError, code)
	assert.Contains(t, errOut, "Timeout")
}
