package client

import (
	"encoding/json"
	"time"

	"github.com/sumire/todoshare/internal/domain"
)

// Tokens is the token pair issued by the backend.
type Tokens struct {
	AccessToken  string    `json:"access_token" toml:"access_token"`
	RefreshToken string    `json:"refresh_token" toml:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" toml:"expires_at"`
}

// Credentials is an established session: who is signed in and the tokens
// that prove it.
type Credentials struct {
	User   domain.Identity `json:"user" toml:"user"`
	Tokens Tokens          `json:"tokens" toml:"tokens"`
}

// TokenStore persists credentials between client instances. Load returns
// nil, nil when nothing is stored.
type TokenStore interface {
	Load() (*Credentials, error)
	Save(Credentials) error
	Clear() error
}

// ChangeKind classifies a session transition.
type ChangeKind string

const (
	SignedIn  ChangeKind = "signed_in"
	SignedOut ChangeKind = "signed_out"
	Refreshed ChangeKind = "refreshed"
)

// SessionChange is pushed to OnSessionChange callbacks. Identity is nil
// after SignedOut.
type SessionChange struct {
	Kind     ChangeKind
	Identity *domain.Identity
}

// ShareResult is the outcome of sharing a todo.
type ShareResult struct {
	Status       domain.ShareStatus   `json:"status"`
	Task         *domain.Task         `json:"task"`
	Notification *domain.Notification `json:"notification,omitempty"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type taskRequest struct {
	Title   string       `json:"title"`
	DueDate *domain.Date `json:"due_date"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}
