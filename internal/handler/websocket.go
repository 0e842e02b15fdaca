package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pool_chat/internal/service"
	"pool_chat/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second

	// How often a connection checks the store for a new timeline version.
	pushInterval = 200 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the frontend origins before launch
	},
}

// clientFrame is what the frontend sends over the socket: lifecycle
// signals that should close any realtime gap for the room in view.
type clientFrame struct {
	Type string `json:"type"`
}

// WebSocketHandler pushes timeline snapshots to connected clients whenever
// the room's version moves. It also tracks which rooms have live sockets
// (those rooms skip catch-up sweeps, realtime is already feeding them) and
// which room was focused last.
type WebSocketHandler struct {
	chatService service.ChatService
	scheduler   *service.CatchUpScheduler
	log         logger.Logger

	mu       sync.Mutex
	rooms    map[uuid.UUID]int
	focused  uuid.UUID
	hasFocus bool
}

func NewWebSocketHandler(chatService service.ChatService, scheduler *service.CatchUpScheduler, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chatService: chatService,
		scheduler:   scheduler,
		log:         log,
		rooms:       make(map[uuid.UUID]int),
	}
}

// IsLocked reports whether the room has at least one live socket.
func (h *WebSocketHandler) IsLocked(roomID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[roomID] > 0
}

// ActiveRoom returns the most recently focused room.
func (h *WebSocketHandler) ActiveRoom() (uuid.UUID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused, h.hasFocus
}

func (h *WebSocketHandler) register(roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms[roomID]++
	h.focused = roomID
	h.hasFocus = true
}

func (h *WebSocketHandler) unregister(roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] > 1 {
		h.rooms[roomID]--
		return
	}
	delete(h.rooms, roomID)
}

func (h *WebSocketHandler) setFocused(roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.focused = roomID
	h.hasFocus = true
}

func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	if _, err := h.chatService.History(c.Request.Context(), roomID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err, "room_id", roomID)
		return
	}
	defer conn.Close()

	h.register(roomID)
	defer h.unregister(roomID)

	h.scheduler.Trigger(c.Request.Context(), "mount")

	done := make(chan struct{})
	go h.readPump(c.Request.Context(), conn, roomID, done)
	h.writePump(conn, roomID, done)
}

func (h *WebSocketHandler) readPump(ctx context.Context, conn *websocket.Conn, roomID uuid.UUID, done chan struct{}) {
	defer close(done)

	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Chat socket closed unexpectedly", "error", err, "room_id", roomID)
			}
			return
		}

		switch frame.Type {
		case "focus":
			h.setFocused(roomID)
			h.scheduler.Trigger(ctx, "focus")
		case "visible":
			h.scheduler.Trigger(ctx, "visibility")
		case "mount":
			h.scheduler.Trigger(ctx, "mount")
		default:
			// Unknown frames are ignored; old clients may send extras.
		}
	}
}

// writePump pushes a fresh snapshot whenever the room's timeline version
// moves. Version-compare makes the push idempotent: merges that change
// nothing never wake the client.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, roomID uuid.UUID, done chan struct{}) {
	pushTicker := time.NewTicker(pushInterval)
	defer pushTicker.Stop()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	var lastVersion uint64
	push := func() bool {
		snap := h.chatService.Timeline(roomID)
		if snap.Version == lastVersion {
			return true
		}
		lastVersion = snap.Version
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(gin.H{
			"type":     "timeline",
			"room_id":  roomID,
			"version":  snap.Version,
			"messages": snap.Messages,
		}); err != nil {
			return false
		}
		return true
	}

	// Initial snapshot so the client renders without waiting for a tick.
	lastVersion = ^uint64(0)
	if !push() {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-pushTicker.C:
			if !push() {
				return
			}
		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
