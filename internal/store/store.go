package store

import (
	"sync"

	"github.com/google/uuid"

	"pool_chat/internal/domain"
	"pool_chat/pkg/logger"
	"pool_chat/pkg/metrics"
)

// Source names the origin of an incoming merge batch. Server covers
// historical fetches, catch-up queries and the local send pipeline's own
// round-trips; Realtime covers push deliveries. Tombstones are consulted for
// Server batches only: a realtime delete is its own event, not a filter on
// inserts, and its handling path is authoritative when the two race.
type Source int

const (
	SourceServer Source = iota
	SourceRealtime
)

func (s Source) String() string {
	if s == SourceRealtime {
		return "realtime"
	}
	return "server"
}

// Timeline is one room's committed message sequence. The slice is immutable
// once committed: every transition stores a fresh slice and bumps Version,
// so observers detect change by comparing versions instead of deep equality.
type Timeline struct {
	Messages []*domain.Message
	Version  uint64
}

// Store is the reconciliation engine: it owns every room timeline and is the
// single entry point for optimistic adds, send confirmations, historical
// fetches, realtime pushes, deletes and clears. All paths converge on Merge,
// which is order-independent and idempotent, so interleaved deliveries from
// independent sources settle on the same authoritative sequence.
type Store struct {
	mu         sync.Mutex
	timelines  map[uuid.UUID]Timeline
	guard      *MonotonicityGuard
	tombstones *TombstoneSet
	cursors    *CursorTracker
	log        logger.Logger
}

func New(tombstoneCap int, log logger.Logger) *Store {
	return &Store{
		timelines:  make(map[uuid.UUID]Timeline),
		guard:      NewMonotonicityGuard(log),
		tombstones: NewTombstoneSet(tombstoneCap, log),
		cursors:    NewCursorTracker(),
		log:        log,
	}
}

// Merge reconciles an incoming batch into the room's timeline and returns
// the committed sequence. Incoming entries are deduplicated, filtered
// against tombstones (Server source only), matched onto existing entries by
// client id first (the server confirmation of an optimistic send) then by
// server id (an update or a racing duplicate delivery), sorted canonically
// and committed behind the monotonicity guard. If nothing changed the
// previous slice is returned unmodified so observers see no new version.
func (s *Store) Merge(roomID uuid.UUID, incoming []*domain.Message, src Source, op OpTag) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.timelines[roomID]
	existing := current.Messages

	next := append([]*domain.Message(nil), existing...)
	byServer := make(map[string]int, len(next))
	byClient := make(map[string]int, len(next))
	for i, m := range next {
		if m.ServerID != "" {
			byServer[m.ServerID] = i
		}
		if m.ClientID != "" {
			byClient[m.ClientID] = i
		}
	}

	// Dedup the batch against itself by server id; the last occurrence wins.
	seen := make(map[string]int)
	batch := make([]*domain.Message, 0, len(incoming))
	for _, m := range incoming {
		if m == nil {
			continue
		}
		if m.ServerID != "" {
			if j, ok := seen[m.ServerID]; ok {
				batch[j] = m
				continue
			}
			seen[m.ServerID] = len(batch)
		}
		batch = append(batch, m)
	}

	changed := false
	for _, m := range batch {
		if src != SourceRealtime && m.ServerID != "" && s.tombstones.IsDeleted(m.ServerID) {
			metrics.TombstoneDropsTotal.Inc()
			continue
		}

		s.cursors.Observe(roomID, m)

		idx := -1
		if m.ClientID != "" {
			if j, ok := byClient[m.ClientID]; ok {
				idx = j
			}
		}
		if idx < 0 && m.ServerID != "" {
			if j, ok := byServer[m.ServerID]; ok {
				idx = j
			}
		}

		if idx >= 0 {
			if messagesEqual(next[idx], m) {
				continue
			}
			entry := m.Clone()
			next[idx] = entry
			changed = true
			if entry.ServerID != "" {
				byServer[entry.ServerID] = idx
			}
			if entry.ClientID != "" {
				byClient[entry.ClientID] = idx
			}
			continue
		}

		entry := m.Clone()
		next = append(next, entry)
		changed = true
		if entry.ServerID != "" {
			byServer[entry.ServerID] = len(next) - 1
		}
		if entry.ClientID != "" {
			byClient[entry.ClientID] = len(next) - 1
		}
	}

	if !changed {
		metrics.MergesTotal.WithLabelValues(src.String(), "noop").Inc()
		return existing
	}

	SortTimeline(next)

	if !s.guard.Check(roomID, next, op) {
		metrics.MergesTotal.WithLabelValues(src.String(), "denied").Inc()
		return existing
	}

	s.timelines[roomID] = Timeline{Messages: next, Version: current.Version + 1}
	metrics.MergesTotal.WithLabelValues(src.String(), "committed").Inc()
	return next
}

// Delete removes a message (matched by server id or client id), records its
// tombstone and commits the shrunk timeline under the delete tag. The
// tombstone is recorded even when the entry is not in the timeline yet: a
// realtime delete can outrun the insert it refers to, and the delete must
// stay authoritative against the later stale fetch. Idempotent.
func (s *Store) Delete(roomID uuid.UUID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return false
	}

	current := s.timelines[roomID]
	idx := -1
	for i, m := range current.Messages {
		if (m.ServerID != "" && m.ServerID == id) || m.ClientID == id {
			idx = i
			break
		}
	}

	if idx < 0 {
		if s.tombstones.IsDeleted(id) {
			return false
		}
		s.tombstones.MarkDeleted(id)
		return false
	}

	entry := current.Messages[idx]
	if entry.ServerID != "" {
		s.tombstones.MarkDeleted(entry.ServerID)
	}

	next := make([]*domain.Message, 0, len(current.Messages)-1)
	next = append(next, current.Messages[:idx]...)
	next = append(next, current.Messages[idx+1:]...)

	if !s.guard.Check(roomID, next, OpDelete) {
		return false
	}

	s.timelines[roomID] = Timeline{Messages: next, Version: current.Version + 1}
	return true
}

// Clear empties the room's timeline and resets its monotonicity baseline.
// Administrative reset, bypasses no invariants worth keeping.
func (s *Store) Clear(roomID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.timelines[roomID]
	next := []*domain.Message{}
	s.guard.Check(roomID, next, OpClear)
	s.timelines[roomID] = Timeline{Messages: next, Version: current.Version + 1}
}

// Snapshot returns the room's committed timeline. The slice must be treated
// as read-only by callers; it is never mutated after commit.
func (s *Store) Snapshot(roomID uuid.UUID) Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timelines[roomID]
}

// Rooms returns the ids of all rooms with a timeline, as a point-in-time
// copy safe to iterate while merges continue.
func (s *Store) Rooms() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]uuid.UUID, 0, len(s.timelines))
	for id := range s.timelines {
		rooms = append(rooms, id)
	}
	return rooms
}

// Cursor returns the room's catch-up position, if any message with a real
// server timestamp has been observed.
func (s *Store) Cursor(roomID uuid.UUID) (domain.Cursor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors.Cursor(roomID)
}

// IsDeleted reports whether a server id is tombstoned.
func (s *Store) IsDeleted(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tombstones.IsDeleted(serverID)
}

// messagesEqual is the structural identity used for idempotence: a batch
// that changes nothing observable must not produce a new version.
func messagesEqual(a, b *domain.Message) bool {
	if a.ServerID != b.ServerID ||
		a.ClientID != b.ClientID ||
		a.Status != b.Status ||
		a.Content != b.Content ||
		a.SenderID != b.SenderID ||
		a.IsTimestampFallback != b.IsTimestampFallback {
		return false
	}
	if (a.ServerTimestamp == nil) != (b.ServerTimestamp == nil) {
		return false
	}
	if a.ServerTimestamp != nil && !a.ServerTimestamp.Equal(*b.ServerTimestamp) {
		return false
	}
	if len(a.AttachmentURLs) != len(b.AttachmentURLs) {
		return false
	}
	for i := range a.AttachmentURLs {
		if a.AttachmentURLs[i] != b.AttachmentURLs[i] {
			return false
		}
	}
	if len(a.Reactions) != len(b.Reactions) {
		return false
	}
	for emoji, senders := range a.Reactions {
		others, ok := b.Reactions[emoji]
		if !ok || len(others) != len(senders) {
			return false
		}
		for i := range senders {
			if senders[i] != others[i] {
				return false
			}
		}
	}
	return true
}
