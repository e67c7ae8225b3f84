// Package feed keeps a client's view of its todos and notifications current
// by following the server's change stream for as long as a session lasts.
package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/domain"
	"github.com/sumire/todoshare/internal/session"
)

// Source is the remote side the listener reads from.
type Source interface {
	Subscribe(ctx context.Context, tables ...changefeed.Table) (<-chan changefeed.Event, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	ListNotifications(ctx context.Context) ([]domain.Notification, error)
	SessionEnded(ctx context.Context, expired bool)
}

// Sessions reports who is signed in and when that changes.
type Sessions interface {
	Current() *domain.Identity
	Subscribe(fn func(session.Change)) (unsubscribe func())
}

// UpdateKind classifies an Update.
type UpdateKind string

const (
	// TasksChanged carries a freshly fetched task list.
	TasksChanged UpdateKind = "tasks"
	// NotificationsChanged carries a freshly fetched notification list.
	NotificationsChanged UpdateKind = "notifications"
	// SharedWithYou is a transient signal: a task event listed the current
	// identity as a recipient.
	SharedWithYou UpdateKind = "shared_with_you"
	// Disconnected reports that the stream ended without a session change.
	Disconnected UpdateKind = "disconnected"
	// Failed carries an error from subscribing or refetching.
	Failed UpdateKind = "failed"
)

// Update is one result of the listener's work.
type Update struct {
	Kind          UpdateKind
	Tasks         []domain.Task
	Notifications []domain.Notification
	Task          *domain.Task
	Err           error
}

var tables = []changefeed.Table{changefeed.TableTodos, changefeed.TableNotifications}

// Listener follows the change stream of the signed-in identity. Session
// changes and stream events are handled one at a time on the goroutine
// running Run; each matching event triggers a full refetch.
type Listener struct {
	source   Source
	sessions Sessions
	logger   *zap.Logger
	updates  chan Update

	mu      sync.Mutex
	pending []session.Change
	wake    chan struct{}

	// Owned by the Run goroutine.
	me     *domain.Identity
	events <-chan changefeed.Event
	cancel context.CancelFunc
}

// New creates a Listener.
func New(source Source, sessions Sessions, logger *zap.Logger) *Listener {
	return &Listener{
		source:   source,
		sessions: sessions,
		logger:   logger,
		updates:  make(chan Update, 16),
		wake:     make(chan struct{}, 1),
	}
}

// Updates delivers refetched lists and signals. It is closed when Run
// returns.
func (l *Listener) Updates() <-chan Update {
	return l.updates
}

// Run follows the session until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.updates)

	detach := l.sessions.Subscribe(l.enqueue)
	defer detach()
	defer l.unbind()

	if id := l.sessions.Current(); id != nil {
		l.bind(ctx, *id)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
			for _, change := range l.drain() {
				l.onSessionChange(ctx, change)
			}
		case event, ok := <-l.events:
			if !ok {
				l.logger.Debug("change stream closed")
				l.unbind()
				l.emit(ctx, Update{Kind: Disconnected})
				continue
			}
			l.handle(ctx, event)
		}
	}
}

// enqueue never blocks: session changes can be raised from inside the
// listener's own refetch calls.
func (l *Listener) enqueue(change session.Change) {
	l.mu.Lock()
	l.pending = append(l.pending, change)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Listener) drain() []session.Change {
	l.mu.Lock()
	defer l.mu.Unlock()
	changes := l.pending
	l.pending = nil
	return changes
}

func (l *Listener) onSessionChange(ctx context.Context, change session.Change) {
	switch change.Kind {
	case session.SignedIn, session.Refreshed:
		if change.Identity != nil {
			l.bind(ctx, *change.Identity)
		}
	case session.SignedOut:
		l.unbind()
	}
}

// bind (re)subscribes for id and publishes the current lists.
func (l *Listener) bind(ctx context.Context, id domain.Identity) {
	l.unbind()

	subCtx, cancel := context.WithCancel(ctx)
	events, err := l.source.Subscribe(subCtx, tables...)
	if err != nil {
		cancel()
		l.logger.Warn("subscribe to changes", zap.String("user_id", id.ID), zap.Error(err))
		l.emit(ctx, Update{Kind: Failed, Err: err})
		return
	}

	l.me = &id
	l.events = events
	l.cancel = cancel
	l.logger.Debug("listening for changes", zap.String("user_id", id.ID))

	l.refetchTasks(ctx)
	l.refetchNotifications(ctx)
}

// unbind tears the subscription down. Events that arrive afterwards are
// never seen.
func (l *Listener) unbind() {
	if l.cancel != nil {
		l.cancel()
	}
	l.me = nil
	l.events = nil
	l.cancel = nil
}

func (l *Listener) handle(ctx context.Context, event changefeed.Event) {
	me := l.me.ID

	switch event.Table {
	case changefeed.TableTodos:
		task, err := event.Task()
		if err != nil {
			l.logger.Warn("decode task event", zap.Error(err))
			return
		}
		// A delete carries the removed row; it announces nothing.
		if event.Type != changefeed.EventDelete && task.SharedWith.Contains(me) {
			l.emit(ctx, Update{Kind: SharedWithYou, Task: task})
		}
		if task.VisibleTo(me) {
			l.refetchTasks(ctx)
		}

	case changefeed.TableNotifications:
		n, err := event.Notification()
		if err != nil {
			l.logger.Warn("decode notification event", zap.Error(err))
			return
		}
		if n.UserID == me {
			l.refetchNotifications(ctx)
		}

	case changefeed.TableSessions:
		if !event.VisibleTo(me) {
			return
		}
		l.unbind()
		l.source.SessionEnded(ctx, event.Type == changefeed.EventExpired)
	}
}

func (l *Listener) refetchTasks(ctx context.Context) {
	tasks, err := l.source.ListTasks(ctx)
	if err != nil {
		l.emit(ctx, Update{Kind: Failed, Err: err})
		return
	}
	l.emit(ctx, Update{Kind: TasksChanged, Tasks: tasks})
}

func (l *Listener) refetchNotifications(ctx context.Context) {
	list, err := l.source.ListNotifications(ctx)
	if err != nil {
		l.emit(ctx, Update{Kind: Failed, Err: err})
		return
	}
	l.emit(ctx, Update{Kind: NotificationsChanged, Notifications: list})
}

func (l *Listener) emit(ctx context.Context, u Update) {
	select {
	case l.updates <- u:
	case <-ctx.Done():
	}
}
