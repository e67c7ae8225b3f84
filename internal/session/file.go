package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/sumire/todoshare/internal/client"
)

const (
	// Dir is the per-user directory under the home directory.
	Dir = ".todoshare"

	// FileName is the session file inside Dir.
	FileName = "session.toml"
)

// File keeps the provider's credentials in a TOML file so separate CLI
// invocations share one session.
type File struct {
	path string
}

// NewFile stores the session at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// DefaultFile stores the session in ~/.todoshare/session.toml.
func DefaultFile() (*File, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewFile(filepath.Join(home, Dir, FileName)), nil
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the stored credentials. A missing file means no session.
func (f *File) Load() (*client.Credentials, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var creds client.Credentials
	if _, err := toml.Decode(string(data), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if creds.Tokens.AccessToken == "" {
		return nil, nil
	}
	return &creds, nil
}

// Save writes the credentials, readable only by the current user.
func (f *File) Save(creds client.Credentials) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(creds); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the file.
func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

var _ client.TokenStore = (*File)(nil)
