package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"pool_chat/pkg/logger"
)

type Repositories struct {
	Message   MessageRepository
	Room      RoomRepository
	Audit     AuditRepository
	RateLimit RateLimitRepository
	Realtime  RealtimeRepository
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		Message:   NewMessageRepository(db, log),
		Room:      NewRoomRepository(db, log),
		Audit:     NewAuditRepository(db, log),
		RateLimit: NewRateLimitRepository(rdb, log),
		Realtime:  NewRealtimeRepository(rdb, log),
	}
}
