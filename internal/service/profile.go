package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sumire/todoshare/internal/domain"
)

// ProfileService manages the public directory that maps emails to identities.
type ProfileService struct {
	profiles ProfileStore
}

// NewProfileService creates a new ProfileService.
func NewProfileService(profiles ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Create registers the caller's profile. A caller can only register itself,
// under the email of its account. An existing profile yields
// domain.ErrConflict.
func (s *ProfileService) Create(ctx context.Context, caller domain.Identity, profile domain.Profile) (*domain.Profile, error) {
	if profile.ID != caller.ID {
		return nil, fmt.Errorf("%w: profile id must match the signed-in user", domain.ErrForbidden)
	}
	if !strings.EqualFold(strings.TrimSpace(profile.Email), caller.Email) {
		return nil, &domain.ValidationError{Field: "email", Message: "email must match the signed-in account"}
	}

	created, err := s.profiles.Create(ctx, domain.Profile{ID: caller.ID, Email: caller.Email})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return created, nil
}

// FindByEmail resolves an email to a profile, ignoring case.
func (s *ProfileService) FindByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	profile, err := s.profiles.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return profile, nil
}
