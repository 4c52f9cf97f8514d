package handlers

import (
	"crypto/subtle"
	"net/http"

	"pillsreminder/internal/telegram"

	"github.com/gin-gonic/gin"
)

// SecretHeader carries the secret registered with setWebhook
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook accepts Telegram update deliveries. The update is handled before the
// response so Telegram redelivers it if the process dies midway.
func (h *Handlers) Webhook(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad secret token"})
			return
		}

		var u telegram.Update
		if err := c.ShouldBindJSON(&u); err != nil {
			h.log.Warn().Err(err).Msg("malformed webhook update")
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
			return
		}
		h.updates.HandleUpdate(c.Request.Context(), u)
		c.Status(http.StatusOK)
	}
}
