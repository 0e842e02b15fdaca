package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pool_chat/internal/domain"
	"pool_chat/internal/repository"
	"pool_chat/internal/store"
	"pool_chat/pkg/logger"
	"pool_chat/pkg/metrics"
)

// ActiveRoomProvider reports the room most recently in front of a user.
// Used only as the degraded fallback for delete events that arrive without
// a room id.
type ActiveRoomProvider interface {
	ActiveRoom() (uuid.UUID, bool)
}

// RealtimeBridge consumes the realtime subscription and feeds every event
// into the store through the same merge entry point the fetch paths use.
// It also remembers the last delivery time per room, the liveness signal
// behind the realtime-gap heuristic.
type RealtimeBridge struct {
	store    *store.Store
	realtime repository.RealtimeRepository
	log      logger.Logger

	mu           sync.Mutex
	active       ActiveRoomProvider
	lastDelivery map[uuid.UUID]time.Time
	sub          repository.Subscription
}

func NewRealtimeBridge(st *store.Store, realtime repository.RealtimeRepository, log logger.Logger) *RealtimeBridge {
	return &RealtimeBridge{
		store:        st,
		realtime:     realtime,
		log:          log,
		lastDelivery: make(map[uuid.UUID]time.Time),
	}
}

// SetActiveRoomProvider wires the fallback source for room-less delete
// events. Optional; without it such events are dropped (and logged).
func (b *RealtimeBridge) SetActiveRoomProvider(p ActiveRoomProvider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = p
}

func (b *RealtimeBridge) Start(ctx context.Context) error {
	sub, err := b.realtime.Subscribe(ctx, b.handleInsert, b.handleDelete)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()
	b.log.Info("Realtime bridge subscribed")
	return nil
}

func (b *RealtimeBridge) Close() {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()
	if sub != nil {
		_ = sub.Close()
	}
}

func (b *RealtimeBridge) handleInsert(msg *domain.Message) {
	metrics.RealtimeEventsTotal.WithLabelValues("insert").Inc()
	b.store.Merge(msg.RoomID, []*domain.Message{msg}, store.SourceRealtime, store.OpMerge)
	b.noteDelivery(msg.RoomID)
}

func (b *RealtimeBridge) handleDelete(ev repository.DeleteEvent) {
	metrics.RealtimeEventsTotal.WithLabelValues("delete").Inc()

	var roomID uuid.UUID
	switch {
	case ev.RoomID != nil:
		roomID = *ev.RoomID
	default:
		// Degraded mode: the transport did not include the room. Guess the
		// room currently in view; wrong guesses only delay the delete until
		// the next catch-up of the true room.
		b.mu.Lock()
		active := b.active
		b.mu.Unlock()
		if active == nil {
			b.log.Error("Dropping delete event without room id", "server_id", ev.ServerID)
			return
		}
		guessed, ok := active.ActiveRoom()
		if !ok {
			b.log.Error("Dropping delete event without room id, no active room", "server_id", ev.ServerID)
			return
		}
		b.log.Warn("Delete event missing room id, falling back to active room",
			"server_id", ev.ServerID, "room_id", guessed)
		roomID = guessed
	}

	b.store.Delete(roomID, ev.ServerID)
	b.noteDelivery(roomID)
}

func (b *RealtimeBridge) noteDelivery(roomID uuid.UUID) {
	b.mu.Lock()
	b.lastDelivery[roomID] = time.Now()
	b.mu.Unlock()
}

// HasGap reports whether the room has gone longer than threshold without a
// realtime delivery. A room that never saw one counts as gapped: the caller
// cannot tell a quiet room from a dead subscription, so it should catch up.
func (b *RealtimeBridge) HasGap(roomID uuid.UUID, threshold time.Duration) bool {
	b.mu.Lock()
	last, ok := b.lastDelivery[roomID]
	b.mu.Unlock()
	if !ok {
		return true
	}
	return time.Since(last) > threshold
}
