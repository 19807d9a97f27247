package ingest

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/giftgate/giftbot/internal/telegram"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// SecretHeader carries the webhook secret set with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// WebhookHandler accepts pushed updates. Requests with a wrong secret get 401; every
// other request is answered 200 so Telegram never redelivers, including bodies that
// cannot be decoded.
func WebhookHandler(sink Enqueuer, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" {
			got := c.GetHeader(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
		}

		body, errRead := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBytes))
		if errRead != nil {
			log.WithError(errRead).Warn("ingest: read webhook body")
			c.Status(http.StatusOK)
			return
		}
		var update telegram.Update
		if errDecode := json.Unmarshal(body, &update); errDecode != nil {
			log.WithError(errDecode).Warn("ingest: decode webhook update")
			c.Status(http.StatusOK)
			return
		}
		if ev, ok := FromUpdate(update); ok {
			sink.Enqueue(ev)
		}
		c.Status(http.StatusOK)
	}
}
