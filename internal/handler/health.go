package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pool_chat/internal/config"
)

type HealthHandler struct {
	environment string
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{environment: cfg.Environment}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "pool-chat",
	})
}

func (h *HealthHandler) ServerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "pool-chat",
		"environment": h.environment,
		"api_base":    "/api/v1",
		"ws_base":     "/ws",
	})
}
