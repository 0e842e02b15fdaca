package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pool_chat/internal/domain"
	"pool_chat/internal/service"
	apperrors "pool_chat/pkg/errors"
	"pool_chat/pkg/logger"
)

type ChatHandler struct {
	chatService service.ChatService
	scheduler   *service.CatchUpScheduler
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, scheduler *service.CatchUpScheduler, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		scheduler:   scheduler,
		log:         log,
	}
}

// TimelineResponse is the room timeline as the clients consume it: the
// merged, ordered message list plus the version clients use to detect
// change and the cursor they may resume from.
type TimelineResponse struct {
	Messages       []*domain.Message `json:"messages"`
	Version        uint64            `json:"version"`
	Cursor         *domain.Cursor    `json:"cursor,omitempty"`
	HasRealtimeGap bool              `json:"has_realtime_gap"`
}

func (h *ChatHandler) timelineResponse(roomID uuid.UUID) TimelineResponse {
	snap := h.chatService.Timeline(roomID)
	resp := TimelineResponse{
		Messages:       snap.Messages,
		Version:        snap.Version,
		HasRealtimeGap: h.chatService.HasRealtimeGap(roomID),
	}
	if resp.Messages == nil {
		resp.Messages = []*domain.Message{}
	}
	if cur, ok := h.chatService.LastCursor(roomID); ok {
		resp.Cursor = &cur
	}
	return resp
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	if _, err := h.chatService.History(c.Request.Context(), roomID); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.timelineResponse(roomID))
}

type SendMessageRequest struct {
	Content        string   `json:"content"`
	AttachmentURLs []string `json:"attachment_urls"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	sender, ok := senderID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sender not identified"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.chatService.Send(c.Request.Context(), roomID, sender, req.Content, req.AttachmentURLs)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	// 202: the message is accepted optimistically; delivery settles async
	// and is observable through the message status.
	c.JSON(http.StatusAccepted, message)
}

func (h *ChatHandler) RetryMessage(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	if err := h.chatService.Retry(c.Request.Context(), roomID, c.Param("messageId")); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "retry scheduled"})
}

type AddReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *ChatHandler) AddReaction(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	sender, ok := senderID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sender not identified"})
		return
	}

	var req AddReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.chatService.AddReaction(c.Request.Context(), roomID, c.Param("messageId"), sender, req.Emoji)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reaction added"})
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	sender, ok := senderID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sender not identified"})
		return
	}

	if err := h.chatService.DeleteMessage(c.Request.Context(), roomID, c.Param("messageId"), sender); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "message deleted"})
}

func (h *ChatHandler) ClearRoom(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	sender, ok := senderID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sender not identified"})
		return
	}

	if err := h.chatService.ClearRoom(c.Request.Context(), roomID, sender); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "room cleared"})
}

func (h *ChatHandler) GetCursor(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	cur, ok := h.chatService.LastCursor(roomID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cursor for room"})
		return
	}

	c.JSON(http.StatusOK, cur)
}

// GetGap exposes the realtime-liveness heuristic: whether the room has gone
// too long without a push delivery and the client should ask for a catch-up.
func (h *ChatHandler) GetGap(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"has_realtime_gap": h.chatService.HasRealtimeGap(roomID)})
}

type CatchUpRequest struct {
	Reason string `json:"reason"`
}

// CatchUp lets a client ask for a sweep explicitly, typically right after
// reconnecting. The scheduler still debounces, so hammering this endpoint
// costs one sweep per window.
func (h *ChatHandler) CatchUp(c *gin.Context) {
	var req CatchUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	ran := h.scheduler.Trigger(c.Request.Context(), req.Reason)
	c.JSON(http.StatusOK, gin.H{"ran": ran})
}

func senderID(c *gin.Context) (string, bool) {
	v, exists := c.Get("sender_id")
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}
