package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/todoshare/internal/domain"
)

func TestProfileService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sess, err := env.auth.SignUp(ctx, "Mixed@Example.com", "password123")
	require.NoError(t, err)
	me := sess.User

	t.Run("someone else's id", func(t *testing.T) {
		_, err := env.profiles.Create(ctx, me, domain.Profile{ID: "other", Email: me.Email})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("different email", func(t *testing.T) {
		_, err := env.profiles.Create(ctx, me, domain.Profile{ID: me.ID, Email: "x@example.com"})
		var ve *domain.ValidationError
		assert.ErrorAs(t, err, &ve)
	})

	t.Run("created", func(t *testing.T) {
		p, err := env.profiles.Create(ctx, me, domain.Profile{ID: me.ID, Email: "mixed@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Mixed@Example.com", p.Email)
	})

	t.Run("duplicate is a conflict", func(t *testing.T) {
		_, err := env.profiles.Create(ctx, me, domain.Profile{ID: me.ID, Email: me.Email})
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("found ignoring case", func(t *testing.T) {
		p, err := env.profiles.FindByEmail(ctx, " MIXED@example.COM ")
		require.NoError(t, err)
		assert.Equal(t, me.ID, p.ID)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := env.profiles.FindByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
