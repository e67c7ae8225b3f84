package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/sumire/todoshare/internal/domain"
)

// Table names a collection whose changes are broadcast.
type Table string

const (
	TableTodos         Table = "todos"
	TableNotifications Table = "notifications"
	TableSessions      Table = "sessions"
)

// ParseTable validates a table name received from a client.
func ParseTable(s string) (Table, error) {
	switch t := Table(s); t {
	case TableTodos, TableNotifications, TableSessions:
		return t, nil
	}
	return "", &domain.ValidationError{Field: "tables", Message: fmt.Sprintf("unknown table %q", s)}
}

// EventType is the kind of change.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"

	EventSignedOut EventType = "signed_out"
	EventExpired   EventType = "expired"
)

// Event carries one row as it is after the change. Deletes carry the removed
// row. Audience lists the identities allowed to see it.
type Event struct {
	Table    Table           `json:"table"`
	Type     EventType       `json:"type"`
	Record   json.RawMessage `json:"record,omitempty"`
	Audience []string        `json:"audience"`
	At       time.Time       `json:"at"`
}

// VisibleTo reports whether the identity may receive the event.
func (e Event) VisibleTo(identityID string) bool {
	return slices.Contains(e.Audience, identityID)
}

// Task decodes the record of a todos event.
func (e Event) Task() (*domain.Task, error) {
	if e.Table != TableTodos {
		return nil, fmt.Errorf("event on %s does not carry a task", e.Table)
	}
	var task domain.Task
	if err := json.Unmarshal(e.Record, &task); err != nil {
		return nil, fmt.Errorf("decode task record: %w", err)
	}
	return &task, nil
}

// Notification decodes the record of a notifications event.
func (e Event) Notification() (*domain.Notification, error) {
	if e.Table != TableNotifications {
		return nil, fmt.Errorf("event on %s does not carry a notification", e.Table)
	}
	var n domain.Notification
	if err := json.Unmarshal(e.Record, &n); err != nil {
		return nil, fmt.Errorf("decode notification record: %w", err)
	}
	return &n, nil
}

// TaskEvent builds an event addressed to the owner and every recipient.
func TaskEvent(typ EventType, task domain.Task) (Event, error) {
	record, err := json.Marshal(task)
	if err != nil {
		return Event{}, fmt.Errorf("encode task %s: %w", task.ID, err)
	}
	audience := append([]string{task.UserID}, task.SharedWith...)
	return Event{Table: TableTodos, Type: typ, Record: record, Audience: audience, At: time.Now().UTC()}, nil
}

// NotificationEvent builds an event addressed to the recipient.
func NotificationEvent(typ EventType, n domain.Notification) (Event, error) {
	record, err := json.Marshal(n)
	if err != nil {
		return Event{}, fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	return Event{Table: TableNotifications, Type: typ, Record: record, Audience: []string{n.UserID}, At: time.Now().UTC()}, nil
}

// SessionEvent builds a session transition for one identity.
func SessionEvent(typ EventType, identityID string) Event {
	return Event{Table: TableSessions, Type: typ, Audience: []string{identityID}, At: time.Now().UTC()}
}

// Publisher broadcasts events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber delivers events for the given tables until ctx is done, then
// closes the channel. Events published while nobody is subscribed are lost.
type Subscriber interface {
	Subscribe(ctx context.Context, tables ...Table) (<-chan Event, error)
}

// Bus is both ends of the change feed.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
