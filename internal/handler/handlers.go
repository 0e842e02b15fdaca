package handler

import (
	"pool_chat/internal/config"
	"pool_chat/internal/service"
	"pool_chat/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Room      *RoomHandler
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, log logger.Logger) *Handlers {
	ws := NewWebSocketHandler(services.Chat, services.CatchUp, log)

	// The hub knows which rooms have live sockets and which room is in
	// front of a user; the scheduler and the bridge both feed off that.
	services.CatchUp.SetLocks(ws)
	services.Bridge.SetActiveRoomProvider(ws)

	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Room:      NewRoomHandler(services.Room, log),
		Chat:      NewChatHandler(services.Chat, services.CatchUp, log),
		WebSocket: ws,
	}
}
