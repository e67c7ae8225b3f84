package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/todoshare/internal/domain"
)

const userColumns = `id, provider, provider_id, email, password_hash, session_epoch, created_at, updated_at`

// UserRepository handles account data access for the auth provider.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID retrieves an account by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := conn(ctx, r.db).GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, translate(err, "find user by id %s", id)
	}
	return &user, nil
}

// FindByEmail retrieves an account by case-insensitive email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := conn(ctx, r.db).GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return nil, translate(err, "find user by email")
	}
	return &user, nil
}

// Create inserts a password account. A taken email yields domain.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	var result domain.User
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`INSERT INTO users (provider, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		user.Provider, user.Email, user.PasswordHash,
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "create user")
	}
	return &result, nil
}

// UpsertOAuth creates an OAuth account or refreshes the email of an existing
// one, keyed on provider + provider_id.
func (r *UserRepository) UpsertOAuth(ctx context.Context, user domain.User) (*domain.User, error) {
	var result domain.User
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`INSERT INTO users (provider, provider_id, email)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (provider, provider_id) WHERE provider_id IS NOT NULL
		 DO UPDATE SET email = EXCLUDED.email,
		               updated_at = NOW()
		 RETURNING `+userColumns,
		user.Provider, user.ProviderID, user.Email,
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "upsert %s user", user.Provider)
	}
	return &result, nil
}

// BumpSessionEpoch invalidates every token issued so far and returns the new epoch.
func (r *UserRepository) BumpSessionEpoch(ctx context.Context, id string) (int, error) {
	var epoch int
	err := conn(ctx, r.db).GetContext(ctx, &epoch,
		`UPDATE users SET session_epoch = session_epoch + 1, updated_at = NOW()
		 WHERE id = $1
		 RETURNING session_epoch`, id)
	if err != nil {
		return 0, translate(err, "bump session epoch for %s", id)
	}
	return epoch, nil
}
