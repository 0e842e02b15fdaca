package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"pool_chat/internal/domain"
	"pool_chat/pkg/logger"
)

func timelineOfLen(n int) []*domain.Message {
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	msgs := make([]*domain.Message, n)
	for i := range msgs {
		ts := at.Add(time.Duration(i) * time.Second)
		msgs[i] = &domain.Message{
			ServerID:        uuid.New().String(),
			ClientID:        uuid.New().String(),
			ServerTimestamp: &ts,
			ClientTimestamp: ts,
			Status:          domain.StatusSent,
		}
	}
	return msgs
}

func TestGuardAllowsGrowthAndEquality(t *testing.T) {
	g := NewMonotonicityGuard(logger.Nop())
	room := uuid.New()

	assert.True(t, g.Check(room, timelineOfLen(2), OpMerge))
	assert.True(t, g.Check(room, timelineOfLen(2), OpMerge))
	assert.True(t, g.Check(room, timelineOfLen(5), OpMerge))
	assert.Equal(t, 5, g.LastLen(room))
}

func TestGuardDeniesShrinkOnMerge(t *testing.T) {
	g := NewMonotonicityGuard(logger.Nop())
	room := uuid.New()

	assert.True(t, g.Check(room, timelineOfLen(4), OpMerge))

	// Scenario F: a merge candidate with fewer entries is rejected and the
	// baseline stays at the previous length.
	assert.False(t, g.Check(room, timelineOfLen(2), OpMerge))
	assert.Equal(t, 4, g.LastLen(room))

	assert.False(t, g.Check(room, timelineOfLen(3), OpAdd))
	assert.False(t, g.Check(room, timelineOfLen(3), OpUpdate))
	assert.Equal(t, 4, g.LastLen(room))
}

func TestGuardAllowsShrinkForDeleteAndClear(t *testing.T) {
	g := NewMonotonicityGuard(logger.Nop())
	room := uuid.New()

	assert.True(t, g.Check(room, timelineOfLen(4), OpMerge))
	assert.True(t, g.Check(room, timelineOfLen(3), OpDelete))
	assert.Equal(t, 3, g.LastLen(room))

	assert.True(t, g.Check(room, nil, OpClear))
	assert.Equal(t, 0, g.LastLen(room))

	// After a clear the baseline is reset, so a small merge is fine again.
	assert.True(t, g.Check(room, timelineOfLen(1), OpMerge))
}

func TestGuardTracksRoomsIndependently(t *testing.T) {
	g := NewMonotonicityGuard(logger.Nop())
	roomA := uuid.New()
	roomB := uuid.New()

	assert.True(t, g.Check(roomA, timelineOfLen(5), OpMerge))
	assert.True(t, g.Check(roomB, timelineOfLen(1), OpMerge))
	assert.False(t, g.Check(roomA, timelineOfLen(1), OpMerge))
	assert.True(t, g.Check(roomB, timelineOfLen(2), OpMerge))
}
