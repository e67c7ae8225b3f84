package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Task is a to-do item owned by one identity and optionally visible to others.
type Task struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Title      string    `json:"title" db:"title"`
	Completed  bool      `json:"completed" db:"completed"`
	DueDate    *Date     `json:"due_date" db:"due_date"`
	SharedWith IDList    `json:"shared_with" db:"shared_with"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// VisibleTo reports whether the identity owns the task or is a recipient of it.
func (t Task) VisibleTo(identityID string) bool {
	return t.UserID == identityID || t.SharedWith.Contains(identityID)
}

// ShareStatus is the outcome of a share attempt that did not fail.
type ShareStatus string

const (
	ShareStatusShared        ShareStatus = "shared"
	ShareStatusAlreadyShared ShareStatus = "already_shared"
)

// IDList is an ordered set of identity ids stored as a Postgres uuid[].
type IDList []string

// Contains reports whether id is in the list.
func (l IDList) Contains(id string) bool {
	return slices.Contains(l, id)
}

// With returns a copy of the list with id appended, unless it is already present.
func (l IDList) With(id string) IDList {
	if l.Contains(id) {
		return slices.Clone(l)
	}
	return append(slices.Clone(l), id)
}

// Scan implements sql.Scanner for array columns read through pgx's stdlib driver.
func (l *IDList) Scan(src any) error {
	if src == nil {
		*l = IDList{}
		return nil
	}
	var ids []string
	if err := pgtype.NewMap().SQLScanner(&ids).Scan(src); err != nil {
		return fmt.Errorf("scan id list: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	*l = ids
	return nil
}

// MarshalJSON encodes an empty list as [] rather than null.
func (l IDList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

const dateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day component.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "due_date", Message: "must be formatted as YYYY-MM-DD"}
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode date: %w", err)
	}
	// Accept full timestamps too; date pickers commonly send them.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = NewDate(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}
