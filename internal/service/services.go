package service

import (
	"pool_chat/internal/config"
	"pool_chat/internal/repository"
	"pool_chat/internal/store"
	"pool_chat/pkg/logger"
)

type Services struct {
	Chat      ChatService
	Room      RoomService
	RateLimit RateLimitService
	Bridge    *RealtimeBridge
	CatchUp   *CatchUpScheduler
}

func NewServices(st *store.Store, repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	bridge := NewRealtimeBridge(st, repos.Realtime, log)

	return &Services{
		Chat:      NewChatService(st, repos, bridge, cfg.Chat.HistoryPageSize, cfg.Chat.RealtimeGapAfter, log),
		Room:      NewRoomService(repos.Room, log),
		RateLimit: NewRateLimitService(repos.RateLimit, cfg.Chat.SendRateLimit, cfg.Chat.SendRateWindow, log),
		Bridge:    bridge,
		CatchUp:   NewCatchUpScheduler(st, repos.Message, cfg.Chat.CatchUpDebounce, cfg.Chat.CatchUpLimit, log),
	}
}
