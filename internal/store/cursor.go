package store

import (
	"github.com/google/uuid"

	"pool_chat/internal/domain"
)

// CursorTracker keeps, per room, the newest genuinely server-timestamped
// position observed so far. Catch-up resumes from this cursor. Messages with
// a synthesized (fallback) timestamp never advance it: resuming from a
// fallback position would either loop forever on the same entry or skip real
// messages once the server assigns the true timestamp.
// Not safe for concurrent use; the owning Store serializes access.
type CursorTracker struct {
	cursors map[uuid.UUID]domain.Cursor
}

func NewCursorTracker() *CursorTracker {
	return &CursorTracker{cursors: make(map[uuid.UUID]domain.Cursor)}
}

// Observe advances the room's cursor iff the message carries a real server
// id and timestamp and is newer than the current cursor. Never regresses.
func (c *CursorTracker) Observe(roomID uuid.UUID, msg *domain.Message) {
	if msg.ServerID == "" || msg.ServerTimestamp == nil || msg.IsTimestampFallback {
		return
	}
	candidate := domain.Cursor{Timestamp: *msg.ServerTimestamp, ServerID: msg.ServerID}
	current, ok := c.cursors[roomID]
	if !ok || current.Before(candidate) {
		c.cursors[roomID] = candidate
	}
}

func (c *CursorTracker) Cursor(roomID uuid.UUID) (domain.Cursor, bool) {
	cur, ok := c.cursors[roomID]
	return cur, ok
}
