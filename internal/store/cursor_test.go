package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorAdvancesOnNewerMessages(t *testing.T) {
	tracker := NewCursorTracker()
	room := uuid.New()

	_, ok := tracker.Cursor(room)
	assert.False(t, ok)

	t1 := ts(t, "2026-01-01T10:00:00Z")
	t2 := ts(t, "2026-01-01T10:00:05Z")

	tracker.Observe(room, persisted("c1", "1", t1))
	cur, ok := tracker.Cursor(room)
	require.True(t, ok)
	assert.Equal(t, "1", cur.ServerID)

	tracker.Observe(room, persisted("c2", "2", t2))
	cur, _ = tracker.Cursor(room)
	assert.Equal(t, "2", cur.ServerID)
	assert.True(t, cur.Timestamp.Equal(*t2))
}

func TestCursorNeverRegresses(t *testing.T) {
	tracker := NewCursorTracker()
	room := uuid.New()

	t1 := ts(t, "2026-01-01T10:00:00Z")
	t2 := ts(t, "2026-01-01T10:00:05Z")

	tracker.Observe(room, persisted("c2", "2", t2))
	tracker.Observe(room, persisted("c1", "1", t1))

	cur, _ := tracker.Cursor(room)
	assert.Equal(t, "2", cur.ServerID)

	// Same timestamp, lower id does not move it either.
	tracker.Observe(room, persisted("c0", "0", t2))
	cur, _ = tracker.Cursor(room)
	assert.Equal(t, "2", cur.ServerID)
}

func TestCursorIgnoresFallbackAndUnpersisted(t *testing.T) {
	tracker := NewCursorTracker()
	room := uuid.New()

	t9 := ts(t, "2026-01-01T11:00:00Z")
	fallback := persisted("c1", "9", t9)
	fallback.IsTimestampFallback = true
	tracker.Observe(room, fallback)

	_, ok := tracker.Cursor(room)
	assert.False(t, ok, "fallback timestamps must never become a resume point")

	tracker.Observe(room, inflight("c2", *t9))
	_, ok = tracker.Cursor(room)
	assert.False(t, ok)

	// Persisted but without a timestamp is ignored too.
	half := persisted("c3", "3", t9)
	half.ServerTimestamp = nil
	tracker.Observe(room, half)
	_, ok = tracker.Cursor(room)
	assert.False(t, ok)
}

func TestCursorTracksRoomsIndependently(t *testing.T) {
	tracker := NewCursorTracker()
	roomA := uuid.New()
	roomB := uuid.New()

	t1 := ts(t, "2026-01-01T10:00:00Z")
	tracker.Observe(roomA, persisted("c1", "1", t1))

	_, ok := tracker.Cursor(roomB)
	assert.False(t, ok)
}
