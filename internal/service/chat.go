package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pool_chat/internal/domain"
	"pool_chat/internal/repository"
	"pool_chat/internal/store"
	apperrors "pool_chat/pkg/errors"
	"pool_chat/pkg/logger"
)

// ChatService is the send pipeline and the read surface over the message
// store. Sends are fire-and-forget: the optimistic entry appears immediately
// and the backend round-trip settles it to sent or failed in the background;
// failures are surfaced through the message status, never as a send error.
type ChatService interface {
	History(ctx context.Context, roomID uuid.UUID) (store.Timeline, error)
	Timeline(roomID uuid.UUID) store.Timeline
	Send(ctx context.Context, roomID uuid.UUID, senderID, content string, attachments []string) (*domain.Message, error)
	Retry(ctx context.Context, roomID uuid.UUID, clientID string) error
	AddReaction(ctx context.Context, roomID uuid.UUID, serverID, senderID, emoji string) error
	DeleteMessage(ctx context.Context, roomID uuid.UUID, id, actorID string) error
	ClearRoom(ctx context.Context, roomID uuid.UUID, actorID string) error
	LastCursor(roomID uuid.UUID) (domain.Cursor, bool)
	HasRealtimeGap(roomID uuid.UUID) bool
	Close()
}

type chatService struct {
	store           *store.Store
	messages        repository.MessageRepository
	rooms           repository.RoomRepository
	audit           repository.AuditRepository
	realtime        repository.RealtimeRepository
	bridge          *RealtimeBridge
	historyPageSize int
	gapAfter        time.Duration
	deliverTimeout  time.Duration
	wg              sync.WaitGroup
	log             logger.Logger
}

func NewChatService(
	st *store.Store,
	repos *repository.Repositories,
	bridge *RealtimeBridge,
	historyPageSize int,
	gapAfter time.Duration,
	log logger.Logger,
) ChatService {
	return &chatService{
		store:           st,
		messages:        repos.Message,
		rooms:           repos.Room,
		audit:           repos.Audit,
		realtime:        repos.Realtime,
		bridge:          bridge,
		historyPageSize: historyPageSize,
		gapAfter:        gapAfter,
		deliverTimeout:  30 * time.Second,
		log:             log,
	}
}

// History loads the newest page from the backend on first access and returns
// the room's current timeline. Repeat calls serve from the store; catch-up
// and realtime keep it fresh from there.
func (s *chatService) History(ctx context.Context, roomID uuid.UUID) (store.Timeline, error) {
	snapshot := s.store.Snapshot(roomID)
	if snapshot.Version > 0 {
		return snapshot, nil
	}

	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return store.Timeline{}, err
	}

	rows, err := s.messages.Query(ctx, roomID, nil, false, s.historyPageSize)
	if err != nil {
		return store.Timeline{}, err
	}

	// Newest-first page; merge order does not matter, the store sorts.
	s.store.Merge(roomID, rows, store.SourceServer, store.OpMerge)
	return s.store.Snapshot(roomID), nil
}

func (s *chatService) Timeline(roomID uuid.UUID) store.Timeline {
	return s.store.Snapshot(roomID)
}

func (s *chatService) Send(ctx context.Context, roomID uuid.UUID, senderID, content string, attachments []string) (*domain.Message, error) {
	if content == "" && len(attachments) == 0 {
		return nil, apperrors.ErrBadRequest
	}
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ClientID:        uuid.New().String(),
		RoomID:          roomID,
		SenderID:        senderID,
		Content:         content,
		AttachmentURLs:  attachments,
		ClientTimestamp: time.Now().UTC(),
		Status:          domain.StatusSending,
	}

	s.store.Merge(roomID, []*domain.Message{msg}, store.SourceServer, store.OpAdd)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.deliverTimeout)
		defer cancel()
		s.deliver(ctx, msg)
	}()

	return msg, nil
}

// deliver performs the backend round-trip for one optimistic message and
// settles its lifecycle status.
func (s *chatService) deliver(ctx context.Context, msg *domain.Message) {
	confirmed, err := s.messages.Insert(ctx, msg)
	if err != nil {
		s.log.Error("Failed to deliver message", "error", err,
			"room_id", msg.RoomID, "client_id", msg.ClientID)
		failed := msg.Clone()
		failed.Status = domain.StatusFailed
		s.store.Merge(msg.RoomID, []*domain.Message{failed}, store.SourceServer, store.OpUpdate)
		return
	}

	if confirmed.ServerTimestamp == nil {
		// The backend did not hand back a timestamp; synthesize one so the
		// entry sorts, but flag it so it can never become a catch-up cursor.
		now := time.Now().UTC()
		confirmed.ServerTimestamp = &now
		confirmed.IsTimestampFallback = true
	}

	s.store.Merge(msg.RoomID, []*domain.Message{confirmed}, store.SourceServer, store.OpUpdate)

	if err := s.realtime.PublishInsert(ctx, confirmed); err != nil {
		// Other clients converge through catch-up; nothing to do here.
		s.log.Warn("Failed to publish insert event", "error", err, "server_id", confirmed.ServerID)
	}
}

func (s *chatService) Retry(ctx context.Context, roomID uuid.UUID, clientID string) error {
	entry := s.findByAnyID(roomID, clientID)
	if entry == nil {
		return apperrors.ErrMessageNotFound
	}
	if entry.Status != domain.StatusFailed {
		return apperrors.ErrBadRequest
	}

	retrying := entry.Clone()
	retrying.Status = domain.StatusRetrying
	s.store.Merge(roomID, []*domain.Message{retrying}, store.SourceServer, store.OpUpdate)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.deliverTimeout)
		defer cancel()
		s.deliver(ctx, retrying)
	}()

	return nil
}

func (s *chatService) AddReaction(ctx context.Context, roomID uuid.UUID, serverID, senderID, emoji string) error {
	if emoji == "" {
		return apperrors.ErrBadRequest
	}
	entry := s.findByAnyID(roomID, serverID)
	if entry == nil {
		return apperrors.ErrMessageNotFound
	}
	if entry.ServerID == "" {
		return apperrors.ErrMessageNotSent
	}

	reactions := make(map[string][]string, len(entry.Reactions)+1)
	for e, senders := range entry.Reactions {
		reactions[e] = append([]string(nil), senders...)
	}
	for _, existing := range reactions[emoji] {
		if existing == senderID {
			// Already reacted; idempotent success.
			return nil
		}
	}
	reactions[emoji] = append(reactions[emoji], senderID)

	updated, err := s.messages.UpdateReactions(ctx, entry.ServerID, reactions)
	if err != nil {
		return err
	}

	s.store.Merge(roomID, []*domain.Message{updated}, store.SourceServer, store.OpUpdate)

	if err := s.realtime.PublishInsert(ctx, updated); err != nil {
		s.log.Warn("Failed to publish reaction update", "error", err, "server_id", entry.ServerID)
	}
	return nil
}

func (s *chatService) DeleteMessage(ctx context.Context, roomID uuid.UUID, id, actorID string) error {
	entry := s.findByAnyID(roomID, id)
	if entry == nil {
		if s.store.IsDeleted(id) {
			// Re-delete of a tombstoned message is success.
			return nil
		}
		return apperrors.ErrMessageNotFound
	}
	if entry.SenderID != actorID {
		return apperrors.ErrNotMessageSender
	}

	serverID := entry.ServerID
	s.store.Delete(roomID, id)

	if serverID == "" {
		// Never persisted; nothing to delete remotely.
		return nil
	}

	if err := s.messages.Delete(ctx, serverID); err != nil {
		// Local tombstone already keeps it dead here; the row will be
		// retried by the user or cleaned up by moderation.
		return err
	}
	if err := s.realtime.PublishDelete(ctx, roomID, serverID); err != nil {
		s.log.Warn("Failed to publish delete event", "error", err, "server_id", serverID)
	}

	s.writeAudit(ctx, roomID, actorID, domain.EventTypeMessageDeleted, map[string]interface{}{
		"server_id": serverID,
	})
	return nil
}

func (s *chatService) ClearRoom(ctx context.Context, roomID uuid.UUID, actorID string) error {
	s.store.Clear(roomID)
	s.writeAudit(ctx, roomID, actorID, domain.EventTypeRoomCleared, nil)
	return nil
}

func (s *chatService) LastCursor(roomID uuid.UUID) (domain.Cursor, bool) {
	return s.store.Cursor(roomID)
}

func (s *chatService) HasRealtimeGap(roomID uuid.UUID) bool {
	return s.bridge.HasGap(roomID, s.gapAfter)
}

// Close waits for in-flight deliveries to settle.
func (s *chatService) Close() {
	s.wg.Wait()
}

func (s *chatService) findByAnyID(roomID uuid.UUID, id string) *domain.Message {
	if id == "" {
		return nil
	}
	for _, m := range s.store.Snapshot(roomID).Messages {
		if (m.ServerID != "" && m.ServerID == id) || m.ClientID == id {
			return m
		}
	}
	return nil
}

func (s *chatService) writeAudit(ctx context.Context, roomID uuid.UUID, actorID, eventType string, payload map[string]interface{}) {
	entry := &domain.AuditLog{
		EventTime: time.Now().UTC(),
		ActorID:   actorID,
		RoomID:    &roomID,
		EventType: eventType,
		Payload:   payload,
	}
	if err := s.audit.CreateLog(ctx, entry); err != nil {
		s.log.Warn("Failed to write audit log", "error", err, "event_type", eventType)
	}
}
