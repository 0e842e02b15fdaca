package service

import (
	"context"
	"fmt"
	"time"

	"pool_chat/internal/repository"
	"pool_chat/pkg/logger"
)

type RateLimitService interface {
	// AllowSend reports whether the sender may post another message right
	// now, along with how many sends remain in the current window.
	AllowSend(ctx context.Context, senderID string) (bool, int64, error)
}

type rateLimitService struct {
	repo   repository.RateLimitRepository
	limit  int
	window time.Duration
	log    logger.Logger
}

func NewRateLimitService(repo repository.RateLimitRepository, limit int, window time.Duration, log logger.Logger) RateLimitService {
	return &rateLimitService{repo: repo, limit: limit, window: window, log: log}
}

func (s *rateLimitService) AllowSend(ctx context.Context, senderID string) (bool, int64, error) {
	key := fmt.Sprintf("send:%s", senderID)
	allowed, remaining, err := s.repo.Allow(ctx, key, s.limit, s.window)
	if err != nil {
		// Counting failure should not take chat down; fail open.
		s.log.Warn("Rate limit check failed, allowing send", "error", err, "sender_id", senderID)
		return true, 0, nil
	}
	return allowed, remaining, nil
}
