package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// walletSender maps the X-Wallet-Address header to a sender identity.
// Addresses are normalized to lower case so the same wallet never shows up
// as two senders.
func walletSender(c *gin.Context) (string, bool) {
	addr := strings.TrimSpace(c.GetHeader("X-Wallet-Address"))
	if !validWalletAddress(addr) {
		return "", false
	}
	return "wallet:" + strings.ToLower(addr), true
}

func validWalletAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	for _, r := range addr[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
