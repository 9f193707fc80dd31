package chat

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"gymcrm-calls/internal/metrics"
	"gymcrm-calls/pkg/logger"
)

const maxBodyBytes = 4 << 20

type Ingester interface {
	Ingest(ctx context.Context, msgs []Message) (Result, error)
}

// WebhookHandler accepts gateway deliveries. Once the body is a JSON object
// the gateway always gets 200, even when individual messages were skipped.
type WebhookHandler struct {
	Chat Ingester
}

func (h WebhookHandler) HandleMessages(c *gin.Context) {
	log := logger.FromGin(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	var in WebhookBody
	if err := json.Unmarshal(body, &in); err != nil {
		log.Warn("chat webhook body rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	msgs, dropped, err := DecodeMessages(in.Messages)
	if err != nil {
		log.Warn("chat webhook messages ignored", "err", err)
	}
	if dropped > 0 {
		log.Warn("chat messages with wrong field types skipped", "count", dropped)
		metrics.ChatMessages.WithLabelValues("skipped").Add(float64(dropped))
	}

	if len(msgs) > 0 {
		if _, err := h.Chat.Ingest(c.Request.Context(), msgs); err != nil {
			log.Error("chat ingest failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
