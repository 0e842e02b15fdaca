package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"pool_chat/internal/domain"
	"pool_chat/pkg/logger"
)

type AuditRepository interface {
	CreateLog(ctx context.Context, auditLog *domain.AuditLog) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateLog(ctx context.Context, auditLog *domain.AuditLog) error {
	query := `
		INSERT INTO audit_log (event_time, actor_id, room_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	payload, err := json.Marshal(auditLog.Payload)
	if err != nil {
		r.log.Error("Failed to marshal audit payload", "error", err)
		return err
	}

	err = r.db.QueryRow(ctx, query,
		auditLog.EventTime, auditLog.ActorID, auditLog.RoomID,
		auditLog.EventType, payload,
	).Scan(&auditLog.ID)
	if err != nil {
		r.log.Error("Failed to create audit log", "error", err)
		return err
	}

	return nil
}
