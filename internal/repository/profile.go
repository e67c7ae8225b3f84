package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/todoshare/internal/domain"
)

// ProfileRepository handles the public user directory.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a profile. An existing id or email yields domain.ErrConflict.
func (r *ProfileRepository) Create(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	var result domain.Profile
	err := conn(ctx, r.db).QueryRowxContext(ctx,
		`INSERT INTO profiles (id, email) VALUES ($1, $2)
		 RETURNING id, email, created_at`,
		profile.ID, profile.Email,
	).StructScan(&result)
	if err != nil {
		return nil, translate(err, "create profile %s", profile.ID)
	}
	return &result, nil
}

// Ensure inserts a profile unless one already exists for the id.
func (r *ProfileRepository) Ensure(ctx context.Context, profile domain.Profile) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO profiles (id, email) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		profile.ID, profile.Email)
	if err != nil {
		return translate(err, "ensure profile %s", profile.ID)
	}
	return nil
}

// FindByEmail resolves a profile by case-insensitive exact email. When more
// than one row matches, the oldest wins.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	var profiles []domain.Profile
	err := conn(ctx, r.db).SelectContext(ctx, &profiles,
		`SELECT id, email, created_at FROM profiles
		 WHERE lower(email) = lower($1)
		 ORDER BY created_at
		 LIMIT 1`, email)
	if err != nil {
		return nil, translate(err, "find profile by email")
	}
	if len(profiles) == 0 {
		return nil, domain.ErrNotFound
	}
	return &profiles[0], nil
}
