package domain

import (
	"time"

	"github.com/google/uuid"
)

// Room is a chat room attached to a trading pool.
type Room struct {
	ID          uuid.UUID `json:"id"`
	PoolID      string    `json:"pool_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	RoomStatusActive   = "active"
	RoomStatusArchived = "archived"
)
