package service

import (
	"context"

	"github.com/google/uuid"

	"pool_chat/internal/domain"
	"pool_chat/internal/repository"
	"pool_chat/pkg/logger"
)

type RoomService interface {
	GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error)
	ListRooms(ctx context.Context, limit, offset int) ([]*domain.Room, error)
	CreateRoom(ctx context.Context, poolID, title, description string) (*domain.Room, error)
}

type roomService struct {
	rooms repository.RoomRepository
	log   logger.Logger
}

func NewRoomService(rooms repository.RoomRepository, log logger.Logger) RoomService {
	return &roomService{rooms: rooms, log: log}
}

func (s *roomService) GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	return s.rooms.GetByID(ctx, roomID)
}

func (s *roomService) ListRooms(ctx context.Context, limit, offset int) ([]*domain.Room, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.rooms.List(ctx, limit, offset)
}

func (s *roomService) CreateRoom(ctx context.Context, poolID, title, description string) (*domain.Room, error) {
	room := &domain.Room{
		ID:     uuid.New(),
		PoolID: poolID,
		Title:  title,
		Status: domain.RoomStatusActive,
	}
	if description != "" {
		room.Description = &description
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	s.log.Info("Room created", "room_id", room.ID, "pool_id", poolID)
	return room, nil
}
