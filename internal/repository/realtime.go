package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pool_chat/internal/domain"
	"pool_chat/pkg/logger"
)

const realtimeChannel = "chat:events"

const (
	eventTypeInsert = "insert"
	eventTypeDelete = "delete"
)

// DeleteEvent is a realtime delete notification. RoomID is optional: a
// transport is not guaranteed to include the full row in delete payloads.
type DeleteEvent struct {
	ServerID string     `json:"server_id"`
	RoomID   *uuid.UUID `json:"room_id,omitempty"`
}

type realtimeEnvelope struct {
	Type     string          `json:"type"`
	Message  *domain.Message `json:"message,omitempty"`
	ServerID string          `json:"server_id,omitempty"`
	RoomID   *uuid.UUID      `json:"room_id,omitempty"`
}

type Subscription interface {
	Close() error
}

// RealtimeRepository fans chat events out to every connected service
// instance over a Redis pub/sub channel: inserts carry the full row, deletes
// carry the id (and room id when known).
type RealtimeRepository interface {
	PublishInsert(ctx context.Context, msg *domain.Message) error
	PublishDelete(ctx context.Context, roomID uuid.UUID, serverID string) error
	Subscribe(ctx context.Context, onInsert func(*domain.Message), onDelete func(DeleteEvent)) (Subscription, error)
}

type realtimeRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewRealtimeRepository(rdb *redis.Client, log logger.Logger) RealtimeRepository {
	return &realtimeRepository{rdb: rdb, log: log}
}

func (r *realtimeRepository) PublishInsert(ctx context.Context, msg *domain.Message) error {
	return r.publish(ctx, realtimeEnvelope{Type: eventTypeInsert, Message: msg})
}

func (r *realtimeRepository) PublishDelete(ctx context.Context, roomID uuid.UUID, serverID string) error {
	return r.publish(ctx, realtimeEnvelope{Type: eventTypeDelete, ServerID: serverID, RoomID: &roomID})
}

func (r *realtimeRepository) publish(ctx context.Context, env realtimeEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime event: %w", err)
	}
	if err := r.rdb.Publish(ctx, realtimeChannel, payload).Err(); err != nil {
		r.log.Error("Failed to publish realtime event", "error", err, "type", env.Type)
		return err
	}
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

func (r *realtimeRepository) Subscribe(ctx context.Context, onInsert func(*domain.Message), onDelete func(DeleteEvent)) (Subscription, error) {
	pubsub := r.rdb.Subscribe(ctx, realtimeChannel)

	// Force the subscription to be established before returning, so no
	// event published after Subscribe can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", realtimeChannel, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var env realtimeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("Dropping malformed realtime event", "error", err)
				continue
			}
			switch env.Type {
			case eventTypeInsert:
				if env.Message != nil {
					onInsert(env.Message)
				}
			case eventTypeDelete:
				onDelete(DeleteEvent{ServerID: env.ServerID, RoomID: env.RoomID})
			default:
				r.log.Warn("Unknown realtime event type", "type", env.Type)
			}
		}
	}()

	return &redisSubscription{pubsub: pubsub}, nil
}
