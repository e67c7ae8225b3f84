package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/repository/memory"
)

type testEnv struct {
	store         *memory.Store
	bus           *changefeed.MemoryBus
	tasks         *TaskService
	notifications *NotificationService
	profiles      *ProfileService
	sharing       *SharingService
	auth          *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

// newTestEnvWith builds services over a fresh memory store. notifications
// overrides the notification store used by the sharing workflow.
func newTestEnvWith(t *testing.T, notifications NotificationStore) *testEnv {
	t.Helper()
	store := memory.New()
	bus := changefeed.NewMemoryBus(zap.NewNop())
	t.Cleanup(func() { _ = bus.Close() })

	if notifications == nil {
		notifications = store.Notifications()
	}
	logger := zap.NewNop()
	return &testEnv{
		store:         store,
		bus:           bus,
		tasks:         NewTaskService(store.Tasks(), bus, logger),
		notifications: NewNotificationService(store.Notifications(), bus, logger),
		profiles:      NewProfileService(store.Profiles()),
		sharing:       NewSharingService(store, store.Tasks(), store.Profiles(), notifications, bus, logger),
		auth: NewAuthService(store.Users(), store.Profiles(), bus, logger, AuthConfig{
			JWTSecret:       "test-secret",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		}),
	}
}

// register creates an account and its profile, the way a client signs up.
func (e *testEnv) register(t *testing.T, email string) domain.Identity {
	t.Helper()
	sess, err := e.auth.SignUp(context.Background(), email, "password123")
	require.NoError(t, err)
	_, err = e.profiles.Create(context.Background(), sess.User, domain.Profile{ID: sess.User.ID, Email: email})
	require.NoError(t, err)
	return sess.User
}

func (e *testEnv) subscribe(t *testing.T, tables ...changefeed.Table) <-chan changefeed.Event {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := e.bus.Subscribe(ctx, tables...)
	require.NoError(t, err)
	return ch
}

func next(t *testing.T, ch <-chan changefeed.Event) changefeed.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return changefeed.Event{}
	}
}

func noEvent(t *testing.T, ch <-chan changefeed.Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s/%s", ev.Table, ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

type failingNotifications struct {
	NotificationStore
}

func (failingNotifications) Create(context.Context, string, domain.NotificationType, string) (*domain.Notification, error) {
	return nil, errors.New("connection reset")
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, changefeed.Event) error {
	return errors.New("redis unavailable")
}
