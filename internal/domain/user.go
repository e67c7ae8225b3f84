package domain

import "time"

// AuthProvider identifies how an account signs in.
type AuthProvider string

const (
	AuthProviderPassword AuthProvider = "password"
	AuthProviderGoogle   AuthProvider = "google"
	AuthProviderGitHub   AuthProvider = "github"
)

// User is an account known to the auth provider. PasswordHash is empty for
// OAuth accounts and never leaves the backend.
type User struct {
	ID           string       `json:"id" db:"id"`
	Provider     AuthProvider `json:"provider" db:"provider"`
	ProviderID   *string      `json:"-" db:"provider_id"`
	Email        string       `json:"email" db:"email"`
	PasswordHash *string      `json:"-" db:"password_hash"`
	SessionEpoch int          `json:"-" db:"session_epoch"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// Identity returns the public identity of the account.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email}
}

// Identity is an authenticated user as other components see it.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the public directory entry used to resolve share targets by email.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
