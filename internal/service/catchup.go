package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pool_chat/internal/repository"
	"pool_chat/internal/store"
	"pool_chat/pkg/logger"
	"pool_chat/pkg/metrics"
)

// RoomLocks reports rooms that must not be swept. A room with a live
// realtime consumer attached is already converging; sweeping it as well
// just burns backend reads.
type RoomLocks interface {
	IsLocked(roomID uuid.UUID) bool
}

// CatchUpScheduler closes realtime gaps: on demand it sweeps every known
// room, fetching rows strictly after the room's cursor and merging them in.
// Runs are mutually exclusive and debounced, so a burst of triggers
// (reconnect plus focus plus visibility, typically) costs one sweep.
type CatchUpScheduler struct {
	store    *store.Store
	messages repository.MessageRepository
	debounce time.Duration
	limit    int
	log      logger.Logger

	mu        sync.Mutex
	running   bool
	lastRunAt time.Time
	locks     RoomLocks
}

func NewCatchUpScheduler(st *store.Store, messages repository.MessageRepository, debounce time.Duration, limit int, log logger.Logger) *CatchUpScheduler {
	return &CatchUpScheduler{
		store:    st,
		messages: messages,
		debounce: debounce,
		limit:    limit,
		log:      log,
	}
}

// SetLocks wires the lock source. Optional; without it no room is locked.
func (c *CatchUpScheduler) SetLocks(locks RoomLocks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks = locks
}

// Trigger requests a sweep and reports whether one actually ran. A trigger
// that lands while a sweep is in progress, or within the debounce window of
// the previous one, is dropped.
func (c *CatchUpScheduler) Trigger(ctx context.Context, reason string) bool {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		metrics.CatchUpSkipsTotal.WithLabelValues("running").Inc()
		c.log.Debug("Catch-up skipped, sweep in progress", "reason", reason)
		return false
	}
	if time.Since(c.lastRunAt) < c.debounce {
		c.mu.Unlock()
		metrics.CatchUpSkipsTotal.WithLabelValues("debounced").Inc()
		c.log.Debug("Catch-up skipped, within debounce window", "reason", reason)
		return false
	}
	c.running = true
	c.lastRunAt = time.Now()
	locks := c.locks
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	c.sweep(ctx, reason, locks)
	return true
}

func (c *CatchUpScheduler) sweep(ctx context.Context, reason string, locks RoomLocks) {
	rooms := c.store.Rooms()
	c.log.Info("Catch-up sweep started", "reason", reason, "rooms", len(rooms))

	for _, roomID := range rooms {
		if locks != nil && locks.IsLocked(roomID) {
			continue
		}
		cur, ok := c.store.Cursor(roomID)
		if !ok {
			// No persisted row observed yet; the first fetch for this room
			// establishes the cursor, nothing to top up.
			continue
		}

		rows, err := c.messages.Query(ctx, roomID, &cur, true, c.limit)
		if err != nil {
			// Per-room failure must not starve the remaining rooms.
			metrics.CatchUpRoomErrorsTotal.Inc()
			c.log.Error("Catch-up failed for room", "error", err, "room_id", roomID)
			continue
		}
		if len(rows) == 0 {
			continue
		}
		c.store.Merge(roomID, rows, store.SourceServer, store.OpMerge)
	}

	metrics.CatchUpRunsTotal.Inc()
	c.log.Info("Catch-up sweep finished", "reason", reason)
}
