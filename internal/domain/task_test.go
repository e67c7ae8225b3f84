package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_VisibleTo(t *testing.T) {
	task := Task{UserID: "owner", SharedWith: IDList{"b", "c"}}

	assert.True(t, task.VisibleTo("owner"))
	assert.True(t, task.VisibleTo("b"))
	assert.True(t, task.VisibleTo("c"))
	assert.False(t, task.VisibleTo("d"))
}

func TestIDList_With(t *testing.T) {
	base := IDList{"a"}

	added := base.With("b")
	assert.Equal(t, IDList{"a", "b"}, added)
	assert.Equal(t, IDList{"a"}, base, "original must not be mutated")

	again := added.With("b")
	assert.Equal(t, IDList{"a", "b"}, again)
}

func TestIDList_MarshalJSON(t *testing.T) {
	var empty IDList
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	data, err = json.Marshal(IDList{"x", "y"})
	require.NoError(t, err)
	assert.JSONEq(t, `["x","y"]`, string(data))
}

func TestIDList_ScanNil(t *testing.T) {
	var l IDList
	require.NoError(t, l.Scan(nil))
	assert.NotNil(t, l)
	assert.Empty(t, l)
}

func TestDate_JSON(t *testing.T) {
	t.Run("round trips as a calendar day", func(t *testing.T) {
		d, err := ParseDate("2026-03-14")
		require.NoError(t, err)

		data, err := json.Marshal(d)
		require.NoError(t, err)
		assert.Equal(t, `"2026-03-14"`, string(data))

		var back Date
		require.NoError(t, json.Unmarshal(data, &back))
		assert.True(t, d.Equal(back.Time))
	})

	t.Run("drops the time of day from timestamps", func(t *testing.T) {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(`"2026-03-14T18:30:00Z"`), &d))
		assert.Equal(t, "2026-03-14", d.String())
		assert.Equal(t, 0, d.Hour())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		var d Date
		err := json.Unmarshal([]byte(`"next tuesday"`), &d)
		var vErr *ValidationError
		assert.True(t, errors.As(err, &vErr))
	})
}

func TestDate_Scan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)))
	assert.Equal(t, "2026-01-02", d.String())

	assert.Error(t, d.Scan(42))
}

func TestCountUnread(t *testing.T) {
	list := []Notification{{Read: true}, {Read: false}, {Read: false}}
	assert.Equal(t, 2, CountUnread(list))
	assert.Equal(t, 0, CountUnread(nil))
}

func TestShareContent(t *testing.T) {
	assert.Equal(t, "a@example.com shared a todo with you: Buy milk", ShareContent("a@example.com", "Buy milk"))
}

func TestErrShareTargetNotFound_IsNotFound(t *testing.T) {
	assert.ErrorIs(t, ErrShareTargetNotFound, ErrNotFound)
}
