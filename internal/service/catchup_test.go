package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pool_chat/internal/domain"
	"pool_chat/internal/store"
	"pool_chat/pkg/logger"
)

type staticLocks map[uuid.UUID]bool

func (l staticLocks) IsLocked(roomID uuid.UUID) bool { return l[roomID] }

func seedRoom(st *store.Store, roomID uuid.UUID, serverID string, ts time.Time) {
	st.Merge(roomID, []*domain.Message{serverMessage(roomID, serverID, ts)}, store.SourceServer, store.OpMerge)
}

func TestCatchUpMergesRowsAfterCursor(t *testing.T) {
	log := logger.Nop()
	st := store.New(0, log)
	messages := newFakeMessageRepo()
	roomID := uuid.New()

	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	seedRoom(st, roomID, "m1", ts)
	messages.queryRows[roomID] = []*domain.Message{
		serverMessage(roomID, "m2", ts.Add(time.Minute)),
		serverMessage(roomID, "m3", ts.Add(2*time.Minute)),
	}

	sched := NewCatchUpScheduler(st, messages, 0, 100, log)
	require.True(t, sched.Trigger(context.Background(), "reconnect"))

	snap := st.Snapshot(roomID)
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, "m1", snap.Messages[0].ServerID)
	assert.Equal(t, "m3", snap.Messages[2].ServerID)

	cur, ok := st.Cursor(roomID)
	require.True(t, ok)
	assert.Equal(t, "m3", cur.ServerID)
}

func TestCatchUpDebouncesBursts(t *testing.T) {
	log := logger.Nop()
	st := store.New(0, log)
	messages := newFakeMessageRepo()
	roomID := uuid.New()
	seedRoom(st, roomID, "m1", time.Now().UTC().Add(-time.Hour))

	sched := NewCatchUpScheduler(st, messages, 500*time.Millisecond, 100, log)

	// Reconnect, focus and visibility often land together; one sweep.
	assert.True(t, sched.Trigger(context.Background(), "reconnect"))
	assert.False(t, sched.Trigger(context.Background(), "focus"))
	assert.False(t, sched.Trigger(context.Background(), "visibility"))
	assert.Equal(t, 1, messages.calls(roomID))
}

func TestCatchUpRunsAreMutuallyExclusive(t *testing.T) {
	log := logger.Nop()
	st := store.New(0, log)
	messages := newFakeMessageRepo()
	messages.queryStarted = make(chan struct{}, 1)
	messages.queryGate = make(chan struct{})
	roomID := uuid.New()
	seedRoom(st, roomID, "m1", time.Now().UTC().Add(-time.Hour))

	sched := NewCatchUpScheduler(st, messages, 0, 100, log)

	done := make(chan bool, 1)
	go func() {
		done <- sched.Trigger(context.Background(), "reconnect")
	}()

	<-messages.queryStarted
	assert.False(t, sched.Trigger(context.Background(), "focus"))

	close(messages.queryGate)
	assert.True(t, <-done)
}

func TestCatchUpSkipsLockedAndCursorlessRooms(t *testing.T) {
	log := logger.Nop()
	st := store.New(0, log)
	messages := newFakeMessageRepo()

	swept := uuid.New()
	locked := uuid.New()
	cursorless := uuid.New()

	old := time.Now().UTC().Add(-time.Hour)
	seedRoom(st, swept, "a1", old)
	seedRoom(st, locked, "b1", old)
	// Only an in-flight message: no persisted position to resume from.
	st.Merge(cursorless, []*domain.Message{{
		ClientID:        "c-pending",
		RoomID:          cursorless,
		SenderID:        "wallet:0xabc",
		Content:         "pending",
		ClientTimestamp: old,
		Status:          domain.StatusSending,
	}}, store.SourceServer, store.OpAdd)

	sched := NewCatchUpScheduler(st, messages, 0, 100, log)
	sched.SetLocks(staticLocks{locked: true})

	require.True(t, sched.Trigger(context.Background(), "reconnect"))
	assert.Equal(t, 1, messages.calls(swept))
	assert.Zero(t, messages.calls(locked))
	assert.Zero(t, messages.calls(cursorless))
}

func TestCatchUpSurvivesPerRoomFailures(t *testing.T) {
	log := logger.Nop()
	st := store.New(0, log)
	messages := newFakeMessageRepo()

	broken := uuid.New()
	healthy := uuid.New()

	ts := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	seedRoom(st, broken, "a1", ts)
	seedRoom(st, healthy, "b1", ts)
	messages.queryErr[broken] = assert.AnError
	messages.queryRows[healthy] = []*domain.Message{serverMessage(healthy, "b2", ts.Add(time.Minute))}

	sched := NewCatchUpScheduler(st, messages, 0, 100, log)
	require.True(t, sched.Trigger(context.Background(), "reconnect"))

	assert.Len(t, st.Snapshot(broken).Messages, 1)
	assert.Len(t, st.Snapshot(healthy).Messages, 2)
}
