package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"pool_chat/internal/config"
	"pool_chat/pkg/logger"
)

// AuthMiddleware resolves the sender identity for a request. Two schemes
// are accepted: a platform JWT (Authorization: Bearer) mapping to
// "user:<subject>", or a wallet address header mapping to
// "wallet:<address>". The rest of the service never cares which one it was.
type AuthMiddleware struct {
	cfg config.JWTConfig
	log logger.Logger
}

func NewAuthMiddleware(cfg config.JWTConfig, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg, log: log}
}

func (m *AuthMiddleware) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sender, ok := m.bearerSender(c); ok {
			c.Set("sender_id", sender)
			c.Next()
			return
		}
		if sender, ok := walletSender(c); ok {
			c.Set("sender_id", sender)
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		c.Abort()
	}
}

func (m *AuthMiddleware) bearerSender(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.cfg.Secret), nil
	}, jwt.WithIssuer(m.cfg.Issuer))
	if err != nil || !token.Valid || claims.Subject == "" {
		m.log.Debug("Rejected bearer token", "error", err)
		return "", false
	}

	return "user:" + claims.Subject, true
}
