// Package memory keeps every collection in process. It backs single-node
// development runs and the service tests, and honours the same contracts as
// the Postgres repositories: case-insensitive email lookups, newest-first
// ordering and an atomic shared-with append.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumire/todoshare/internal/domain"
)

// Store holds users, profiles, tasks and notifications.
type Store struct {
	mu  sync.Mutex
	seq int64
	now func() time.Time

	users         map[string]*userRecord
	profiles      map[string]*profileRecord
	tasks         map[string]*taskRecord
	notifications map[string]*notificationRecord
}

type userRecord struct {
	seq  int64
	user domain.User
}

type profileRecord struct {
	seq     int64
	profile domain.Profile
}

type taskRecord struct {
	seq  int64
	task domain.Task
}

type notificationRecord struct {
	seq          int64
	notification domain.Notification
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		now:           time.Now,
		users:         map[string]*userRecord{},
		profiles:      map[string]*profileRecord{},
		tasks:         map[string]*taskRecord{},
		notifications: map[string]*notificationRecord{},
	}
}

type txKey struct{}

// lock takes the store mutex unless ctx already runs inside one of this
// store's transactions, which holds it for the whole callback.
func (s *Store) lock(ctx context.Context) func() {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) next() (int64, time.Time) {
	s.seq++
	return s.seq, s.now().UTC()
}

// WithinTx runs fn with exclusive access to the store. If fn fails, every
// change it made is undone.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	seq           int64
	users         map[string]*userRecord
	profiles      map[string]*profileRecord
	tasks         map[string]*taskRecord
	notifications map[string]*notificationRecord
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		seq:           s.seq,
		users:         make(map[string]*userRecord, len(s.users)),
		profiles:      make(map[string]*profileRecord, len(s.profiles)),
		tasks:         make(map[string]*taskRecord, len(s.tasks)),
		notifications: make(map[string]*notificationRecord, len(s.notifications)),
	}
	for k, v := range s.users {
		c := *v
		snap.users[k] = &c
	}
	for k, v := range s.profiles {
		c := *v
		snap.profiles[k] = &c
	}
	for k, v := range s.tasks {
		c := *v
		c.task = cloneTask(v.task)
		snap.tasks[k] = &c
	}
	for k, v := range s.notifications {
		c := *v
		snap.notifications[k] = &c
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.seq = snap.seq
	s.users = snap.users
	s.profiles = snap.profiles
	s.tasks = snap.tasks
	s.notifications = snap.notifications
}

// Users returns the account collection.
func (s *Store) Users() *Users { return &Users{s: s} }

// Profiles returns the profile directory.
func (s *Store) Profiles() *Profiles { return &Profiles{s: s} }

// Tasks returns the todo collection.
func (s *Store) Tasks() *Tasks { return &Tasks{s: s} }

// Notifications returns the notification collection.
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }

func cloneTask(t domain.Task) domain.Task {
	t.SharedWith = slices.Clone(t.SharedWith)
	if t.SharedWith == nil {
		t.SharedWith = domain.IDList{}
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func newID() string {
	return uuid.NewString()
}
