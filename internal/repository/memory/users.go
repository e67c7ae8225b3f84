package memory

import (
	"context"
	"fmt"

	"github.com/sumire/todoshare/internal/domain"
)

// Users is the in-memory account collection.
type Users struct {
	s *Store
}

// FindByID returns the account or domain.ErrNotFound.
func (u *Users) FindByID(ctx context.Context, id string) (*domain.User, error) {
	defer u.s.lock(ctx)()
	rec, ok := u.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	user := rec.user
	return &user, nil
}

// FindByEmail matches the email case-insensitively.
func (u *Users) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer u.s.lock(ctx)()
	if rec := u.byEmail(email); rec != nil {
		user := rec.user
		return &user, nil
	}
	return nil, domain.ErrNotFound
}

func (u *Users) byEmail(email string) *userRecord {
	for _, rec := range u.s.users {
		if sameEmail(rec.user.Email, email) {
			return rec
		}
	}
	return nil
}

// Create inserts a password account. A taken email yields domain.ErrConflict.
func (u *Users) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	defer u.s.lock(ctx)()
	if u.byEmail(user.Email) != nil {
		return nil, fmt.Errorf("%w: users_email_key", domain.ErrConflict)
	}

	seq, now := u.s.next()
	user.ID = newID()
	if user.Provider == "" {
		user.Provider = domain.AuthProviderPassword
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.users[user.ID] = &userRecord{seq: seq, user: user}
	return &user, nil
}

// UpsertOAuth creates an OAuth account or refreshes the email of an existing one.
func (u *Users) UpsertOAuth(ctx context.Context, user domain.User) (*domain.User, error) {
	defer u.s.lock(ctx)()
	for _, rec := range u.s.users {
		if rec.user.Provider == user.Provider && rec.user.ProviderID != nil && user.ProviderID != nil &&
			*rec.user.ProviderID == *user.ProviderID {
			if other := u.byEmail(user.Email); other != nil && other != rec {
				return nil, fmt.Errorf("%w: users_email_key", domain.ErrConflict)
			}
			rec.user.Email = user.Email
			rec.user.UpdatedAt = u.s.now().UTC()
			result := rec.user
			return &result, nil
		}
	}

	if u.byEmail(user.Email) != nil {
		return nil, fmt.Errorf("%w: users_email_key", domain.ErrConflict)
	}
	seq, now := u.s.next()
	user.ID = newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	u.s.users[user.ID] = &userRecord{seq: seq, user: user}
	return &user, nil
}

// BumpSessionEpoch invalidates every token issued so far and returns the new epoch.
func (u *Users) BumpSessionEpoch(ctx context.Context, id string) (int, error) {
	defer u.s.lock(ctx)()
	rec, ok := u.s.users[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	rec.user.SessionEpoch++
	rec.user.UpdatedAt = u.s.now().UTC()
	return rec.user.SessionEpoch, nil
}
