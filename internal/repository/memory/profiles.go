package memory

import (
	"context"
	"fmt"

	"github.com/sumire/todoshare/internal/domain"
)

// Profiles is the in-memory profile directory.
type Profiles struct {
	s *Store
}

// Create inserts a profile. A taken id or email yields domain.ErrConflict.
func (p *Profiles) Create(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	defer p.s.lock(ctx)()
	if err := p.conflict(profile); err != nil {
		return nil, err
	}
	return p.insert(profile), nil
}

// Ensure inserts the profile unless one already exists for its id.
func (p *Profiles) Ensure(ctx context.Context, profile domain.Profile) error {
	defer p.s.lock(ctx)()
	if _, ok := p.s.profiles[profile.ID]; ok {
		return nil
	}
	if err := p.conflict(profile); err != nil {
		return err
	}
	p.insert(profile)
	return nil
}

func (p *Profiles) conflict(profile domain.Profile) error {
	if _, ok := p.s.profiles[profile.ID]; ok {
		return fmt.Errorf("%w: profiles_pkey", domain.ErrConflict)
	}
	for _, rec := range p.s.profiles {
		if sameEmail(rec.profile.Email, profile.Email) {
			return fmt.Errorf("%w: profiles_email_key", domain.ErrConflict)
		}
	}
	return nil
}

func (p *Profiles) insert(profile domain.Profile) *domain.Profile {
	seq, now := p.s.next()
	profile.CreatedAt = now
	p.s.profiles[profile.ID] = &profileRecord{seq: seq, profile: profile}
	return &profile
}

// FindByEmail matches the email case-insensitively.
func (p *Profiles) FindByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	defer p.s.lock(ctx)()
	var found *profileRecord
	for _, rec := range p.s.profiles {
		if sameEmail(rec.profile.Email, email) && (found == nil || rec.seq < found.seq) {
			found = rec
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	profile := found.profile
	return &profile, nil
}
