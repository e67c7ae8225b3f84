package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sumire/todoshare/internal/domain"
)

// Client is an HTTP client for the todoshare API. It also acts as the auth
// provider of the client side: it holds the session, refreshes it when the
// access token is rejected and reports every transition to OnSessionChange
// callbacks.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	store   TokenStore

	mu        sync.Mutex
	creds     *Credentials
	listeners map[int]func(SessionChange)
	nextID    int
}

// Option configures a Client.
type Option func(*Client)

// WithTokenStore persists the session in ts and resumes a stored one.
func WithTokenStore(ts TokenStore) Option {
	return func(c *Client) { c.store = ts }
}

// WithHTTPClient replaces the HTTP client used for request/response calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL, for example
// http://localhost:8080.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		stream:    &http.Client{},
		listeners: map[int]func(SessionChange){},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store != nil {
		creds, err := c.store.Load()
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		c.creds = creds
	}
	return c, nil
}

// =============================================================================
// Session
// =============================================================================

// CreateAccount registers a password account and signs it in.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (*domain.Identity, error) {
	return c.authenticate(ctx, "/auth/signup", email, password)
}

// Authenticate signs in with email and password.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	return c.authenticate(ctx, "/auth/signin", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*domain.Identity, error) {
	var creds Credentials
	if err := c.send(ctx, http.MethodPost, path, "", credentialsRequest{Email: email, Password: password}, &creds); err != nil {
		return nil, err
	}

	if err := c.setSession(&creds, SignedIn); err != nil {
		return nil, err
	}
	user := creds.User
	return &user, nil
}

// EndSession signs out on the server and forgets the local session. The
// local session is dropped even when the server call fails.
func (c *Client) EndSession(ctx context.Context) error {
	token := c.accessToken()
	if token == "" {
		return nil
	}

	err := c.send(ctx, http.MethodPost, "/auth/signout", token, nil, nil)
	if clearErr := c.setSession(nil, SignedOut); clearErr != nil && err == nil {
		err = clearErr
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		return nil
	}
	return err
}

// CurrentSession returns the signed-in identity, or nil.
func (c *Client) CurrentSession() *domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return nil
	}
	user := c.creds.User
	return &user
}

// OnSessionChange registers fn for every session transition and returns a
// function that removes it.
func (c *Client) OnSessionChange(fn func(SessionChange)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// SessionEnded reacts to a session event announced by the server. An
// expired access token is refreshed; a server-side sign-out drops the
// local session.
func (c *Client) SessionEnded(ctx context.Context, expired bool) {
	if expired && c.refresh(ctx) == nil {
		return
	}
	_ = c.setSession(nil, SignedOut)
}

// refresh exchanges the refresh token for a new pair.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.creds == nil {
		c.mu.Unlock()
		return ErrNotSignedIn
	}
	creds := *c.creds
	c.mu.Unlock()

	var tokens Tokens
	err := c.send(ctx, http.MethodPost, "/auth/refresh", "",
		map[string]string{"refresh_token": creds.Tokens.RefreshToken}, &tokens)
	if err != nil {
		return err
	}

	creds.Tokens = tokens
	return c.setSession(&creds, Refreshed)
}

// setSession replaces the session, persists it and notifies listeners.
// Clearing an already empty session notifies nobody.
func (c *Client) setSession(creds *Credentials, kind ChangeKind) error {
	c.mu.Lock()
	if creds == nil && c.creds == nil {
		c.mu.Unlock()
		return nil
	}
	c.creds = creds
	listeners := make([]func(SessionChange), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	var err error
	if c.store != nil {
		if creds == nil {
			err = c.store.Clear()
		} else {
			err = c.store.Save(*creds)
		}
		if err != nil {
			err = fmt.Errorf("persist session: %w", err)
		}
	}

	change := SessionChange{Kind: kind}
	if creds != nil {
		user := creds.User
		change.Identity = &user
	}
	for _, fn := range listeners {
		fn(change)
	}
	return err
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return ""
	}
	return c.creds.Tokens.AccessToken
}

// =============================================================================
// Health and account
// =============================================================================

// Health checks if the server is healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.baseURL, "/api/v1")+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", wrapConnectionError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp)
	}
	return nil
}

// Me returns the signed-in account.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// =============================================================================
// Profiles
// =============================================================================

// CreateProfile registers the directory entry of the signed-in identity.
func (c *Client) CreateProfile(ctx context.Context, profile domain.Profile) error {
	return c.do(ctx, http.MethodPost, "/profiles",
		map[string]string{"id": profile.ID, "email": profile.Email}, nil)
}

// FindProfile resolves an email to a profile.
func (c *Client) FindProfile(ctx context.Context, email string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := c.do(ctx, http.MethodGet, "/profiles?email="+url.QueryEscape(email), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// =============================================================================
// Todos
// =============================================================================

// ListTasks returns every todo the caller owns or has been shared, newest
// first.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask adds a todo. An empty or whitespace title is rejected before
// any request is made.
func (c *Client) CreateTask(ctx context.Context, title string, dueDate *domain.Date) (*domain.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &domain.ValidationError{Field: "title", Message: "title is required"}
	}

	var task domain.Task
	if err := c.do(ctx, http.MethodPost, "/todos", taskRequest{Title: title, DueDate: dueDate}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// SetCompleted marks a todo done or not done.
func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) (*domain.Task, error) {
	var task domain.Task
	err := c.do(ctx, http.MethodPut, "/todos/"+url.PathEscape(id)+"/completed",
		map[string]bool{"completed": completed}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask replaces a todo's title and due date. A nil due date clears it.
func (c *Client) UpdateTask(ctx context.Context, id, title string, dueDate *domain.Date) (*domain.Task, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &domain.ValidationError{Field: "title", Message: "title is required"}
	}

	var task domain.Task
	err := c.do(ctx, http.MethodPatch, "/todos/"+url.PathEscape(id), taskRequest{Title: title, DueDate: dueDate}, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes a todo.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil)
}

// ShareTask shares a todo with the user registered under email.
func (c *Client) ShareTask(ctx context.Context, id, email string) (*ShareResult, error) {
	var result ShareResult
	err := c.do(ctx, http.MethodPost, "/todos/"+url.PathEscape(id)+"/share",
		map[string]string{"email": email}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// Notifications
// =============================================================================

// ListNotifications returns the caller's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var list []domain.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CountUnread asks the server for the unread count.
func (c *Client) CountUnread(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/unread_count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MarkRead flags one notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	var n domain.Notification
	if err := c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkAllRead flags every unread notification as read and returns the ones
// that changed.
func (c *Client) MarkAllRead(ctx context.Context) ([]domain.Notification, error) {
	var changed []domain.Notification
	if err := c.do(ctx, http.MethodPost, "/notifications/read", nil, &changed); err != nil {
		return nil, err
	}
	return changed, nil
}

// =============================================================================
// Helper Methods
// =============================================================================

// do sends an authenticated request. A 401 triggers one refresh and retry;
// if the refresh fails the session is dropped and the original error is
// returned.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token := c.accessToken()
	if token == "" {
		return ErrNotSignedIn
	}

	err := c.send(ctx, method, path, token, body, out)
	if !errors.Is(err, domain.ErrUnauthorized) {
		return err
	}

	if refreshErr := c.refresh(ctx); refreshErr != nil {
		_ = c.setSession(nil, SignedOut)
		return err
	}
	return c.send(ctx, method, path, c.accessToken(), body, out)
}

// send performs one request and decodes the data envelope into out.
func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, wrapConnectionError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return parseErrorResponse(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

// newRequest creates a new HTTP request with common headers.
func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}
