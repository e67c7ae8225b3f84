package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
)

func seedInbox(t *testing.T, env *testEnv, recipient domain.Identity, n int) {
	t.Helper()
	for range n {
		_, err := env.store.Notifications().Create(context.Background(), recipient.ID,
			domain.NotificationShare, domain.ShareContent("a@example.com", "Buy milk"))
		require.NoError(t, err)
	}
}

func TestNotificationService_MarkAllReadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.register(t, "b@example.com")
	seedInbox(t, env, b, 3)

	events := env.subscribe(t, changefeed.TableNotifications)

	changed, err := env.notifications.MarkAllRead(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, changed, 3)
	for range 3 {
		assert.Equal(t, changefeed.EventUpdate, next(t, events).Type)
	}
	once, err := env.notifications.List(ctx, b.ID)
	require.NoError(t, err)

	changed, err = env.notifications.MarkAllRead(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, changed)
	noEvent(t, events)
	twice, err := env.notifications.List(ctx, b.ID)
	require.NoError(t, err)

	assert.Equal(t, once, twice)

	unread, err := env.notifications.CountUnread(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
	assert.Zero(t, domain.CountUnread(twice))
}

func TestNotificationService_ReadNeverReverts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.register(t, "b@example.com")
	seedInbox(t, env, b, 2)

	inbox, err := env.notifications.List(ctx, b.ID)
	require.NoError(t, err)
	target := inbox[0].ID

	for range 2 {
		n, err := env.notifications.MarkRead(ctx, b.ID, target)
		require.NoError(t, err)
		assert.True(t, n.Read)
	}
	_, err = env.notifications.MarkAllRead(ctx, b.ID)
	require.NoError(t, err)

	inbox, err = env.notifications.List(ctx, b.ID)
	require.NoError(t, err)
	for _, n := range inbox {
		assert.True(t, n.Read)
	}
}

func TestNotificationService_MarkReadOfSomeoneElse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b := env.register(t, "b@example.com")
	c := env.register(t, "c@example.com")
	seedInbox(t, env, b, 1)

	inbox, err := env.notifications.List(ctx, b.ID)
	require.NoError(t, err)

	_, err = env.notifications.MarkRead(ctx, c.ID, inbox[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	unread, err := env.notifications.CountUnread(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}
