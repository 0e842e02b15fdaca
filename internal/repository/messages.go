package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pool_chat/internal/domain"
	"pool_chat/pkg/logger"
)

// MessageRepository is the persistence side of the chat transport: row
// insert, reaction update, delete and cursor-based query over chat_messages.
type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	UpdateReactions(ctx context.Context, serverID string, reactions map[string][]string) (*domain.Message, error)
	Delete(ctx context.Context, serverID string) error
	// Query returns messages for a room. A non-nil cursor restricts to rows
	// strictly after (timestamp, id); ascending selects chronological order.
	Query(ctx context.Context, roomID uuid.UUID, after *domain.Cursor, ascending bool, limit int) ([]*domain.Message, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

func (r *messageRepository) Insert(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	query := `
		INSERT INTO chat_messages (client_id, room_id, sender_id, content, attachments, reactions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_id) DO UPDATE SET client_id = EXCLUDED.client_id
		RETURNING id, created_at
	`

	attachments, err := json.Marshal(msg.AttachmentURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attachments: %w", err)
	}
	reactions, err := json.Marshal(msg.Reactions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reactions: %w", err)
	}

	confirmed := msg.Clone()
	var createdAt time.Time
	err = r.db.QueryRow(ctx, query,
		msg.ClientID, msg.RoomID, msg.SenderID, msg.Content, attachments, reactions,
	).Scan(&confirmed.ServerID, &createdAt)
	if err != nil {
		r.log.Error("Failed to insert message", "error", err, "room_id", msg.RoomID)
		return nil, err
	}

	confirmed.ServerTimestamp = &createdAt
	confirmed.Status = domain.StatusSent
	confirmed.IsTimestampFallback = false
	return confirmed, nil
}

func (r *messageRepository) UpdateReactions(ctx context.Context, serverID string, reactions map[string][]string) (*domain.Message, error) {
	query := `
		UPDATE chat_messages
		SET reactions = $2
		WHERE id = $1
		RETURNING id, client_id, room_id, sender_id, content, attachments, reactions, created_at
	`

	reactionsJSON, err := json.Marshal(reactions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reactions: %w", err)
	}

	row := r.db.QueryRow(ctx, query, serverID, reactionsJSON)
	msg, err := scanMessage(row)
	if err != nil {
		r.log.Error("Failed to update reactions", "error", err, "server_id", serverID)
		return nil, err
	}
	return msg, nil
}

func (r *messageRepository) Delete(ctx context.Context, serverID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_messages WHERE id = $1`, serverID)
	if err != nil {
		r.log.Error("Failed to delete message", "error", err, "server_id", serverID)
		return err
	}
	return nil
}

func (r *messageRepository) Query(ctx context.Context, roomID uuid.UUID, after *domain.Cursor, ascending bool, limit int) ([]*domain.Message, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}

	query := `
		SELECT id, client_id, room_id, sender_id, content, attachments, reactions, created_at
		FROM chat_messages
		WHERE room_id = $1
	`
	args := []interface{}{roomID}

	if after != nil {
		// Strictly-after predicate matching the canonical order's persisted
		// branch: timestamp first, id as the tiebreak.
		query += ` AND (created_at > $2 OR (created_at = $2 AND id > $3))`
		args = append(args, after.Timestamp, after.ServerID)
	}

	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT %d", direction, direction, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query messages", "error", err, "room_id", roomID)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*domain.Message, error) {
	msg := &domain.Message{Status: domain.StatusSent}
	var attachments, reactions []byte
	var createdAt time.Time

	err := row.Scan(
		&msg.ServerID, &msg.ClientID, &msg.RoomID, &msg.SenderID,
		&msg.Content, &attachments, &reactions, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	msg.ServerTimestamp = &createdAt

	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &msg.AttachmentURLs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
		}
	}
	if len(reactions) > 0 {
		if err := json.Unmarshal(reactions, &msg.Reactions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reactions: %w", err)
		}
	}
	if msg.ServerTimestamp != nil {
		msg.ClientTimestamp = *msg.ServerTimestamp
	}

	return msg, nil
}
