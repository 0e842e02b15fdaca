package store

import (
	"sort"
	"strings"

	"pool_chat/internal/domain"
)

// Compare is the canonical total order over timeline entries: persisted
// messages first, ordered by server timestamp then server id; in-flight
// messages keep their relative insertion order (the comparator returns 0 and
// the sort is stable). The id tiebreak makes the order deterministic even for
// identical timestamps, so the rendered order never depends on arrival order.
func Compare(a, b *domain.Message) int {
	aPersisted := a.ServerTimestamp != nil
	bPersisted := b.ServerTimestamp != nil

	switch {
	case aPersisted && bPersisted:
		if !a.ServerTimestamp.Equal(*b.ServerTimestamp) {
			if a.ServerTimestamp.Before(*b.ServerTimestamp) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ServerID, b.ServerID)
	case aPersisted:
		return -1
	case bPersisted:
		return 1
	default:
		return 0
	}
}

// SortTimeline sorts entries in place under Compare. Stable, so unpersisted
// entries stay in insertion order at the tail.
func SortTimeline(msgs []*domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return Compare(msgs[i], msgs[j]) < 0
	})
}
