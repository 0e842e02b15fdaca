package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pool_chat/internal/domain"
	"pool_chat/pkg/logger"
)

func newTestStore() *Store {
	return New(64, logger.Nop())
}

func assertCanonicalOrder(t *testing.T, timeline []*domain.Message) {
	t.Helper()
	for i := 0; i+1 < len(timeline); i++ {
		assert.LessOrEqual(t, Compare(timeline[i], timeline[i+1]), 0,
			"adjacent pair %d/%d out of canonical order", i, i+1)
	}
}

func TestMergeRealtimeEchoConfirmsOptimisticSend(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	// Scenario A: optimistic entry first, then the realtime echo of our own
	// send with the same client id. One entry, confirmed.
	optimistic := inflight("c1", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	st.Merge(room, []*domain.Message{optimistic}, SourceServer, OpAdd)

	echo := persisted("c1", "42", ts(t, "2026-01-01T10:00:01Z"))
	timeline := st.Merge(room, []*domain.Message{echo}, SourceRealtime, OpMerge)

	require.Len(t, timeline, 1)
	assert.Equal(t, "42", timeline[0].ServerID)
	assert.Equal(t, "c1", timeline[0].ClientID)
	assert.Equal(t, domain.StatusSent, timeline[0].Status)
}

func TestMergeShuffledServerFetchYieldsCanonicalOrder(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	// Scenario B: batch arrives newest-first, timeline comes out oldest-first.
	id1 := persisted("c1", "1", ts(t, "2026-01-01T10:00:00Z"))
	id2 := persisted("c2", "2", ts(t, "2026-01-01T10:00:05Z"))

	timeline := st.Merge(room, []*domain.Message{id2, id1}, SourceServer, OpMerge)

	require.Len(t, timeline, 2)
	assert.Equal(t, "1", timeline[0].ServerID)
	assert.Equal(t, "2", timeline[1].ServerID)
	assertCanonicalOrder(t, timeline)
}

func TestMergeDoesNotResurrectDeletedMessage(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	msg := persisted("c5", "5", ts(t, "2026-01-01T10:00:00Z"))
	st.Merge(room, []*domain.Message{msg}, SourceServer, OpMerge)

	require.True(t, st.Delete(room, "5"))
	assert.True(t, st.IsDeleted("5"))

	// Scenario C: a stale catch-up fetch returns the deleted row.
	timeline := st.Merge(room, []*domain.Message{msg}, SourceServer, OpMerge)
	assert.Empty(t, timeline)

	// A genuinely new realtime insert for a different id is unaffected.
	fresh := persisted("c6", "6", ts(t, "2026-01-01T10:00:10Z"))
	timeline = st.Merge(room, []*domain.Message{fresh}, SourceRealtime, OpMerge)
	require.Len(t, timeline, 1)
	assert.Equal(t, "6", timeline[0].ServerID)
}

func TestDeleteOutrunningInsertStaysAuthoritative(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	// The delete event arrives before any copy of the message has been
	// merged; the later historical fetch must not bring it back.
	st.Delete(room, "7")

	msg := persisted("c7", "7", ts(t, "2026-01-01T10:00:00Z"))
	timeline := st.Merge(room, []*domain.Message{msg}, SourceServer, OpMerge)
	assert.Empty(t, timeline)
}

func TestMergeIsIdempotent(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	batch := []*domain.Message{
		persisted("c1", "1", ts(t, "2026-01-01T10:00:00Z")),
		persisted("c2", "2", ts(t, "2026-01-01T10:00:05Z")),
	}

	first := st.Merge(room, batch, SourceServer, OpMerge)
	versionAfterFirst := st.Snapshot(room).Version

	// Scenario D: identical content again, same timeline back, no new version.
	second := st.Merge(room, batch, SourceServer, OpMerge)

	require.Len(t, second, 2)
	assert.Same(t, first[0], second[0])
	assert.Same(t, first[1], second[1])
	assert.Equal(t, versionAfterFirst, st.Snapshot(room).Version)
}

func TestMergeDeduplicatesWithinBatchAndAcrossSources(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	msg := persisted("c1", "9", ts(t, "2026-01-01T10:00:00Z"))

	// Same server id twice in one batch.
	timeline := st.Merge(room, []*domain.Message{msg, msg.Clone()}, SourceServer, OpMerge)
	require.Len(t, timeline, 1)

	// The racing realtime delivery of the same row converges to one entry.
	timeline = st.Merge(room, []*domain.Message{msg.Clone()}, SourceRealtime, OpMerge)
	require.Len(t, timeline, 1)
	assert.Equal(t, "9", timeline[0].ServerID)
}

func TestMergeArrivalOrderIndependence(t *testing.T) {
	room := uuid.New()

	a := persisted("ca", "a1", ts(t, "2026-01-01T10:00:00Z"))
	b := persisted("cb", "b1", ts(t, "2026-01-01T10:00:02Z"))
	c := persisted("cc", "c1", ts(t, "2026-01-01T10:00:04Z"))

	first := newTestStore()
	first.Merge(room, []*domain.Message{a, b}, SourceServer, OpMerge)
	first.Merge(room, []*domain.Message{c}, SourceRealtime, OpMerge)

	second := newTestStore()
	second.Merge(room, []*domain.Message{c}, SourceRealtime, OpMerge)
	second.Merge(room, []*domain.Message{b, a}, SourceServer, OpMerge)

	left := first.Snapshot(room).Messages
	right := second.Snapshot(room).Messages
	require.Len(t, left, 3)
	require.Len(t, right, 3)
	for i := range left {
		assert.Equal(t, left[i].ServerID, right[i].ServerID)
	}
}

func TestMergeReplacesOnContentChangeOnly(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	msg := persisted("c1", "1", ts(t, "2026-01-01T10:00:00Z"))
	st.Merge(room, []*domain.Message{msg}, SourceServer, OpMerge)
	v1 := st.Snapshot(room).Version

	// A reaction update to an already-known server id rides the same merge
	// path and produces a new version.
	updated := msg.Clone()
	updated.Reactions = map[string][]string{"🚀": {"wallet:0xabc"}}
	timeline := st.Merge(room, []*domain.Message{updated}, SourceRealtime, OpMerge)

	require.Len(t, timeline, 1)
	assert.Equal(t, []string{"wallet:0xabc"}, timeline[0].Reactions["🚀"])
	assert.Greater(t, st.Snapshot(room).Version, v1)
}

func TestMergeCommitsNewSnapshotWithoutMutatingOld(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	msg := persisted("c1", "1", ts(t, "2026-01-01T10:00:00Z"))
	before := st.Merge(room, []*domain.Message{msg}, SourceServer, OpMerge)

	updated := msg.Clone()
	updated.Content = "edited"
	after := st.Merge(room, []*domain.Message{updated}, SourceServer, OpUpdate)

	assert.Equal(t, "m-1", before[0].Content, "previous snapshot must stay intact")
	assert.Equal(t, "edited", after[0].Content)
	assert.NotSame(t, before[0], after[0])
}

func TestMergeAdvancesCursorFromRealTimestampsOnly(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	fallback := persisted("c1", "1", ts(t, "2026-01-01T10:00:00Z"))
	fallback.IsTimestampFallback = true
	st.Merge(room, []*domain.Message{fallback}, SourceServer, OpMerge)

	_, ok := st.Cursor(room)
	assert.False(t, ok)

	real := persisted("c2", "2", ts(t, "2026-01-01T10:00:05Z"))
	st.Merge(room, []*domain.Message{real}, SourceServer, OpMerge)

	cur, ok := st.Cursor(room)
	require.True(t, ok)
	assert.Equal(t, "2", cur.ServerID)
}

func TestDeleteIsIdempotentAndMatchesClientID(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	failed := inflight("c-failed", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC))
	failed.Status = domain.StatusFailed
	st.Merge(room, []*domain.Message{failed}, SourceServer, OpAdd)

	assert.True(t, st.Delete(room, "c-failed"))
	assert.Empty(t, st.Snapshot(room).Messages)

	// Second delete of the same id is a no-op, not an error.
	assert.False(t, st.Delete(room, "c-failed"))
	assert.False(t, st.Delete(room, ""))
}

func TestClearResetsRoomAndMonotonicityBaseline(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	for i, id := range []string{"1", "2", "3"} {
		at := time.Date(2026, 1, 1, 10, 0, i, 0, time.UTC)
		st.Merge(room, []*domain.Message{persisted("c"+id, id, &at)}, SourceServer, OpMerge)
	}

	st.Clear(room)
	assert.Empty(t, st.Snapshot(room).Messages)

	// After the reset a single-entry merge must pass the guard again.
	timeline := st.Merge(room, []*domain.Message{persisted("c9", "9", ts(t, "2026-01-01T11:00:00Z"))}, SourceServer, OpMerge)
	require.Len(t, timeline, 1)
}

func TestMergeLengthIsMonotonicAcrossMixedSources(t *testing.T) {
	st := newTestStore()
	room := uuid.New()

	lastLen := 0
	batches := [][]*domain.Message{
		{persisted("c1", "1", ts(t, "2026-01-01T10:00:00Z"))},
		{inflight("c-opt", time.Date(2026, 1, 1, 10, 0, 1, 0, time.UTC))},
		{persisted("c1", "1", ts(t, "2026-01-01T10:00:00Z"))}, // duplicate
		{persisted("c3", "3", ts(t, "2026-01-01T10:00:03Z")), persisted("c2", "2", ts(t, "2026-01-01T10:00:02Z"))},
		{persisted("c-opt", "4", ts(t, "2026-01-01T10:00:04Z"))}, // confirmation
	}
	sources := []Source{SourceServer, SourceServer, SourceRealtime, SourceServer, SourceRealtime}

	for i, batch := range batches {
		timeline := st.Merge(room, batch, sources[i], OpMerge)
		assert.GreaterOrEqual(t, len(timeline), lastLen)
		assertCanonicalOrder(t, timeline)
		lastLen = len(timeline)
	}

	// No duplicate ids anywhere.
	seenServer := map[string]bool{}
	seenClient := map[string]bool{}
	for _, m := range st.Snapshot(room).Messages {
		if m.ServerID != "" {
			assert.False(t, seenServer[m.ServerID], "duplicate server id %s", m.ServerID)
			seenServer[m.ServerID] = true
		}
		assert.False(t, seenClient[m.ClientID], "duplicate client id %s", m.ClientID)
		seenClient[m.ClientID] = true
	}
}
