package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/todoshare/internal/client"
	"github.com/sumire/todoshare/internal/domain"
)

type fakeProvider struct {
	mu        sync.Mutex
	current   *domain.Identity
	listeners []func(client.SessionChange)
	signUpErr error
	signInErr error
}

func (p *fakeProvider) emit(change client.SessionChange) {
	p.mu.Lock()
	p.current = change.Identity
	listeners := append([]func(client.SessionChange){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(change)
	}
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, _ string) (*domain.Identity, error) {
	if p.signUpErr != nil {
		return nil, p.signUpErr
	}
	id := &domain.Identity{ID: "u-" + email, Email: email}
	p.emit(client.SessionChange{Kind: client.SignedIn, Identity: id})
	return id, nil
}

func (p *fakeProvider) Authenticate(_ context.Context, email, _ string) (*domain.Identity, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	id := &domain.Identity{ID: "u-" + email, Email: email}
	p.emit(client.SessionChange{Kind: client.SignedIn, Identity: id})
	return id, nil
}

func (p *fakeProvider) EndSession(context.Context) error {
	p.emit(client.SessionChange{Kind: client.SignedOut})
	return nil
}

func (p *fakeProvider) CurrentSession() *domain.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakeProvider) OnSessionChange(fn func(client.SessionChange)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
	idx := len(p.listeners) - 1
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.listeners[idx] = func(client.SessionChange) {}
	}
}

type fakeProfiles struct {
	err     error
	created []domain.Profile
}

func (f *fakeProfiles) CreateProfile(_ context.Context, p domain.Profile) error {
	f.created = append(f.created, p)
	return f.err
}

func TestStore_SignUp(t *testing.T) {
	tests := []struct {
		name       string
		profileErr error
		wantErr    error
	}{
		{name: "creates profile"},
		{name: "duplicate profile is swallowed", profileErr: domain.ErrConflict},
		{name: "other profile failure propagates", profileErr: errors.New("network down"), wantErr: errors.New("network down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := &fakeProfiles{err: tt.profileErr}
			store := NewStore(&fakeProvider{}, profiles)
			defer store.Close()

			id, err := store.SignUp(context.Background(), "a@example.com", "secret")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
				return
			}
			require.NoError(t, err)
			require.Len(t, profiles.created, 1)
			assert.Equal(t, domain.Profile{ID: id.ID, Email: "a@example.com"}, profiles.created[0])
		})
	}
}

func TestStore_SignUpAccountFailure(t *testing.T) {
	profiles := &fakeProfiles{}
	store := NewStore(&fakeProvider{signUpErr: domain.ErrConflict}, profiles)
	defer store.Close()

	_, err := store.SignUp(context.Background(), "a@example.com", "secret")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Empty(t, profiles.created)
	assert.Nil(t, store.Current())
}

func TestStore_SignInErrorIsVerbatim(t *testing.T) {
	providerErr := &client.APIError{Code: "invalid_credentials", Message: "Invalid email or password"}
	store := NewStore(&fakeProvider{signInErr: providerErr}, &fakeProfiles{})
	defer store.Close()

	_, err := store.SignIn(context.Background(), "a@example.com", "nope")
	assert.Same(t, providerErr, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestStore_TracksProviderTransitions(t *testing.T) {
	provider := &fakeProvider{}
	store := NewStore(provider, &fakeProfiles{})
	defer store.Close()

	var seen []Change
	unsubscribe := store.Subscribe(func(c Change) { seen = append(seen, c) })

	ctx := context.Background()
	_, err := store.SignIn(ctx, "a@example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, store.Current())
	assert.Equal(t, "a@example.com", store.Current().Email)

	// A transition the provider drives on its own, such as a failed refresh.
	provider.emit(client.SessionChange{Kind: client.SignedOut})
	assert.Nil(t, store.Current())

	unsubscribe()
	_, err = store.SignIn(ctx, "b@example.com", "secret")
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, SignedIn, seen[0].Kind)
	assert.Equal(t, SignedOut, seen[1].Kind)
}

func TestStore_StartsFromProviderSession(t *testing.T) {
	provider := &fakeProvider{current: &domain.Identity{ID: "u1", Email: "a@example.com"}}
	store := NewStore(provider, &fakeProfiles{})
	defer store.Close()

	require.NotNil(t, store.Current())
	assert.Equal(t, "u1", store.Current().ID)

	require.NoError(t, store.SignOut(context.Background()))
	assert.Nil(t, store.Current())
}

func TestFile(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), Dir, FileName))

	creds, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, creds, "missing file means no session")

	want := client.Credentials{
		User: domain.Identity{ID: "u1", Email: "a@example.com"},
		Tokens: client.Tokens{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, f.Save(want))

	got, err := f.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.User, got.User)
	assert.Equal(t, want.Tokens.AccessToken, got.Tokens.AccessToken)
	assert.True(t, want.Tokens.ExpiresAt.Equal(got.Tokens.ExpiresAt))

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear(), "clearing twice is fine")
	got, err = f.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}
