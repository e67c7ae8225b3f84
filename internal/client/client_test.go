package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/handler"
	"github.com/sumire/todoshare/internal/repository/memory"
	"github.com/sumire/todoshare/internal/service"
)

type memoryTokens struct {
	mu    sync.Mutex
	creds *Credentials
	saves int
}

func (m *memoryTokens) Load() (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *memoryTokens) Save(c Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = &c
	m.saves++
	return nil
}

func (m *memoryTokens) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func signedIn(t *testing.T, url string) (*Client, *memoryTokens) {
	t.Helper()
	tokens := &memoryTokens{creds: &Credentials{
		User:   domain.Identity{ID: "u1", Email: "a@example.com"},
		Tokens: Tokens{AccessToken: "old-access", RefreshToken: "refresh"},
	}}
	c, err := New(url, WithTokenStore(tokens))
	require.NoError(t, err)
	return c, tokens
}

func TestAPIError_UnwrapsToDomain(t *testing.T) {
	tests := []struct {
		code   string
		status int
		want   error
	}{
		{"not_found", 404, domain.ErrNotFound},
		{"user_not_found", 404, domain.ErrShareTargetNotFound},
		{"user_not_found", 404, domain.ErrNotFound},
		{"invalid_credentials", 401, domain.ErrInvalidCredentials},
		{"unauthorized", 401, domain.ErrUnauthorized},
		{"forbidden", 403, domain.ErrForbidden},
		{"conflict", 409, domain.ErrConflict},
		{"invalid_input", 400, domain.ErrInvalidInput},
		{"Not Found", 404, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := &APIError{Status: tt.status, Code: tt.code, Message: "msg"}
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, "msg", err.Error())
		})
	}

	t.Run("validation details", func(t *testing.T) {
		err := error(&APIError{Status: 400, Code: "validation_error", Message: "title is required",
			Details: []FieldError{{Field: "title", Message: "title is required"}}})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "title", ve.Field)
	})
}

func TestClient_NotSignedIn(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.ListTasks(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Nil(t, c.CurrentSession())
}

func TestClient_ServerNotRunning(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.Authenticate(context.Background(), "a@example.com", "secret")
	assert.ErrorIs(t, err, ErrServerNotRunning)
}

func TestClient_EmptyTitleNeverSent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c, _ := signedIn(t, srv.URL)
	_, err := c.CreateTask(context.Background(), "  ", nil)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Zero(t, calls.Load())
}

func TestClient_RefreshesOnceOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/refresh":
			writeJSON(w, http.StatusOK, map[string]any{"data": Tokens{AccessToken: "new-access", RefreshToken: "new-refresh"}})
		case "/api/v1/todos":
			if r.Header.Get("Authorization") != "Bearer new-access" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"code": "unauthorized", "message": "Authentication is required"}})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": []domain.Task{{ID: "t1", Title: "Buy milk"}}})
		}
	}))
	defer srv.Close()

	c, tokens := signedIn(t, srv.URL)
	var changes []SessionChange
	c.OnSessionChange(func(ch SessionChange) { changes = append(changes, ch) })

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.Len(t, changes, 1)
	assert.Equal(t, Refreshed, changes[0].Kind)
	assert.Equal(t, "new-access", tokens.creds.Tokens.AccessToken)
}

func TestClient_FailedRefreshSignsOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"code": "unauthorized", "message": "Authentication is required"}})
	}))
	defer srv.Close()

	c, tokens := signedIn(t, srv.URL)
	var changes []SessionChange
	c.OnSessionChange(func(ch SessionChange) { changes = append(changes, ch) })

	_, err := c.ListNotifications(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Nil(t, c.CurrentSession())
	assert.Nil(t, tokens.creds)
	require.Len(t, changes, 1)
	assert.Equal(t, SignedOut, changes[0].Kind)
	assert.Nil(t, changes[0].Identity)
}

func newBackend(t *testing.T) string {
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

func register(t *testing.T, url, email string) *Client {
	t.Helper()
	c, err := New(url)
	require.NoError(t, err)
	id, err := c.CreateAccount(context.Background(), email, "password123")
	require.NoError(t, err)
	require.NoError(t, c.CreateProfile(context.Background(), domain.Profile{ID: id.ID, Email: id.Email}))
	return c
}

func TestClient_AgainstServer(t *testing.T) {
	url := newBackend(t)
	ctx := context.Background()
	a := register(t, url, "a@example.com")
	b := register(t, url, "b@example.com")

	require.NoError(t, a.Health(ctx))

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := b.Subscribe(streamCtx, changefeed.TableTodos, changefeed.TableNotifications)
	require.NoError(t, err)

	task, err := a.CreateTask(ctx, "Buy milk", nil)
	require.NoError(t, err)

	res, err := a.ShareTask(ctx, task.ID, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.ShareStatusShared, res.Status)

	res, err = a.ShareTask(ctx, task.ID, "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.ShareStatusAlreadyShared, res.Status)

	_, err = a.ShareTask(ctx, task.ID, "ghost@example.com")
	assert.ErrorIs(t, err, domain.ErrShareTargetNotFound)
	assert.Contains(t, err.Error(), "User not found")

	for _, want := range []changefeed.Table{changefeed.TableTodos, changefeed.TableNotifications} {
		select {
		case ev := <-events:
			assert.Equal(t, want, ev.Table)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s event", want)
		}
	}

	tasks, err := b.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	unread, err := b.CountUnread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
	changed, err := b.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Len(t, changed, 1)
	changed, err = b.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Empty(t, changed)

	require.NoError(t, a.DeleteTask(ctx, task.ID))
	tasks, err = b.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	inbox, err := b.ListNotifications(ctx)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)

	require.NoError(t, b.EndSession(ctx))
	assert.Nil(t, b.CurrentSession())
	_, err = b.ListTasks(ctx)
	assert.True(t, errors.Is(err, ErrNotSignedIn))
}

func TestClient_DuplicateProfileIsConflict(t *testing.T) {
	url := newBackend(t)
	c := register(t, url, "a@example.com")
	id := c.CurrentSession()
	require.NotNil(t, id)

	err := c.CreateProfile(context.Background(), domain.Profile{ID: id.ID, Email: id.Email})
	assert.ErrorIs(t, err, domain.ErrConflict)
}
