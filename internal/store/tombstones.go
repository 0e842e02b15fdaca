package store

import (
	"pool_chat/pkg/logger"
	"pool_chat/pkg/metrics"
)

// DefaultTombstoneCap bounds the deleted-id set. Oldest tombstones are
// evicted first once the cap is reached, accepting a small resurrection risk
// for very old deletes after heavy session activity.
const DefaultTombstoneCap = 4096

// TombstoneSet remembers the server ids of explicitly deleted messages for
// the lifetime of the process, so late-arriving copies from historical
// fetches cannot resurrect them. Marking an already-tombstoned id is a no-op.
// Not safe for concurrent use; the owning Store serializes access.
type TombstoneSet struct {
	ids   map[string]struct{}
	order []string
	cap   int
	log   logger.Logger
}

func NewTombstoneSet(cap int, log logger.Logger) *TombstoneSet {
	if cap <= 0 {
		cap = DefaultTombstoneCap
	}
	return &TombstoneSet{
		ids: make(map[string]struct{}),
		cap: cap,
		log: log,
	}
}

func (t *TombstoneSet) MarkDeleted(serverID string) {
	if serverID == "" {
		return
	}
	if _, ok := t.ids[serverID]; ok {
		return
	}
	t.ids[serverID] = struct{}{}
	t.order = append(t.order, serverID)
	if len(t.order) > t.cap {
		evicted := t.order[0]
		t.order = t.order[1:]
		delete(t.ids, evicted)
		metrics.TombstoneEvictionsTotal.Inc()
		t.log.Warn("Tombstone evicted at cap, old delete may resurrect on stale fetch",
			"server_id", evicted, "cap", t.cap)
	}
}

func (t *TombstoneSet) IsDeleted(serverID string) bool {
	if serverID == "" {
		return false
	}
	_, ok := t.ids[serverID]
	return ok
}

func (t *TombstoneSet) Len() int {
	return len(t.ids)
}
