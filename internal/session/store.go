// Package session holds the client's notion of who is signed in and tells
// interested components when that changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sumire/todoshare/internal/client"
	"github.com/sumire/todoshare/internal/domain"
)

// Change is a session transition. SignedIn means "enter the authenticated
// area"; SignedOut means "return to the sign-in surface".
type Change = client.SessionChange

// Change kinds.
const (
	SignedIn  = client.SignedIn
	SignedOut = client.SignedOut
	Refreshed = client.Refreshed
)

// Provider is the auth provider the store delegates to. It reports every
// transition, including ones it initiates itself, through OnSessionChange.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (*domain.Identity, error)
	Authenticate(ctx context.Context, email, password string) (*domain.Identity, error)
	EndSession(ctx context.Context) error
	CurrentSession() *domain.Identity
	OnSessionChange(fn func(client.SessionChange)) (unsubscribe func())
}

// ProfileCreator registers the public profile of a new identity.
type ProfileCreator interface {
	CreateProfile(ctx context.Context, profile domain.Profile) error
}

// Store tracks the current identity and fans session changes out to its
// observers.
type Store struct {
	provider Provider
	profiles ProfileCreator
	detach   func()

	mu        sync.Mutex
	current   *domain.Identity
	observers map[int]func(Change)
	nextID    int
}

// NewStore binds a store to the provider. Call Close to detach it.
func NewStore(provider Provider, profiles ProfileCreator) *Store {
	s := &Store{
		provider:  provider,
		profiles:  profiles,
		current:   provider.CurrentSession(),
		observers: map[int]func(Change){},
	}
	s.detach = provider.OnSessionChange(s.apply)
	return s
}

// Close stops following the provider.
func (s *Store) Close() {
	s.detach()
}

// SignUp creates the account and then its profile. A profile that already
// exists is not an error.
func (s *Store) SignUp(ctx context.Context, email, password string) (*domain.Identity, error) {
	id, err := s.provider.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}

	err = s.profiles.CreateProfile(ctx, domain.Profile{ID: id.ID, Email: id.Email})
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return id, nil
}

// SignIn establishes a session.
func (s *Store) SignIn(ctx context.Context, email, password string) (*domain.Identity, error) {
	return s.provider.Authenticate(ctx, email, password)
}

// SignOut ends the session.
func (s *Store) SignOut(ctx context.Context) error {
	return s.provider.EndSession(ctx)
}

// Current returns the signed-in identity, or nil.
func (s *Store) Current() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	id := *s.current
	return &id
}

// Subscribe registers fn for every session change and returns a function
// that removes it. fn runs on the goroutine that caused the change and must
// not block.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) apply(change Change) {
	s.mu.Lock()
	s.current = nil
	if change.Identity != nil {
		id := *change.Identity
		s.current = &id
	}
	observers := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(change)
	}
}
