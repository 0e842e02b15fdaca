package store

import (
	"github.com/google/uuid"

	"pool_chat/internal/domain"
	"pool_chat/pkg/logger"
	"pool_chat/pkg/metrics"
)

// OpTag classifies a state transition for the monotonicity guard. Only
// explicit delete and clear operations may shrink a room's timeline.
type OpTag int

const (
	OpAdd OpTag = iota
	OpUpdate
	OpMerge
	OpDelete
	OpClear
)

func (t OpTag) String() string {
	switch t {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpMerge:
		return "merge"
	case OpDelete:
		return "delete"
	case OpClear:
		return "clear"
	default:
		return "unknown"
	}
}

func (t OpTag) allowsShrink() bool {
	return t == OpDelete || t == OpClear
}

// MonotonicityGuard tracks the last committed timeline length per room and
// denies any transition that would lose messages without being tagged as a
// delete or clear. Shrinkage outside those tags is always a merge bug, so the
// denial is loud rather than silently corrected. Not safe for concurrent use;
// the owning Store serializes access.
type MonotonicityGuard struct {
	lastLen map[uuid.UUID]int
	log     logger.Logger
}

func NewMonotonicityGuard(log logger.Logger) *MonotonicityGuard {
	return &MonotonicityGuard{
		lastLen: make(map[uuid.UUID]int),
		log:     log,
	}
}

// Check returns whether the candidate timeline may be committed. On allow it
// records the candidate length; on deny the recorded length is untouched so
// the next legitimate commit is judged against the same baseline.
func (g *MonotonicityGuard) Check(roomID uuid.UUID, candidate []*domain.Message, op OpTag) bool {
	last := g.lastLen[roomID]
	if len(candidate) < last && !op.allowsShrink() {
		g.log.Error("Monotonicity guard denied timeline shrink",
			"room_id", roomID,
			"last_len", last,
			"candidate_len", len(candidate),
			"op", op.String(),
		)
		metrics.GuardDenialsTotal.Inc()
		return false
	}
	g.lastLen[roomID] = len(candidate)
	return true
}

// LastLen returns the recorded length for a room.
func (g *MonotonicityGuard) LastLen(roomID uuid.UUID) int {
	return g.lastLen[roomID]
}
