// Package handlers — webhook ingress.
//
// The webhook handler is the hot path of the relay: Telegram POSTs an update,
// the handler authenticates it, wraps it into an envelope, and enqueues it.
// Delivery work happens later on the worker pool, so the platform's retry
// timer only ever measures enqueue cost, never delivery latency.
//
// Responses:
//   - 200 {"status":"queued","enqueue_latency_ms":...} after a successful push
//   - 401 when the shared-secret header does not match the bot's secret
//   - 404 when the bot id is unknown
//   - 400 when the body is not a JSON object
//   - 503 when the bounded queue is full (fail fast, never block)
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/rmacedo/go-bot-relay/internal/domain"
	"github.com/rmacedo/go-bot-relay/internal/http/middleware"
	"github.com/rmacedo/go-bot-relay/internal/queue"
	"github.com/rmacedo/go-bot-relay/internal/telegram"
)

// updatesEnqueued counts accepted webhook deliveries.
var updatesEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "relay_updates_enqueued_total",
	Help: "Total number of webhook updates accepted onto the queue.",
})

func init() {
	prometheus.MustRegister(updatesEnqueued)
}

// BotLookup resolves a bot id to its stored row. Implemented by a thin shim
// over the repo package in the router.
type BotLookup interface {
	GetBot(ctx context.Context, botID string) (*domain.Bot, error)
}

// QueuedResponse is the acknowledgment body returned to the platform.
type QueuedResponse struct {
	Status           string  `json:"status"`
	EnqueueLatencyMs float64 `json:"enqueue_latency_ms"`
}

// WebhookHandler handles POST /webhook/:botID.
type WebhookHandler struct {
	Bots  BotLookup
	Queue *queue.UpdateQueue
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(bots BotLookup, q *queue.UpdateQueue) *WebhookHandler {
	return &WebhookHandler{Bots: bots, Queue: q}
}

// Receive authenticates and enqueues one update, then acknowledges
// immediately. No delivery call is made on this path.
func (h *WebhookHandler) Receive(c *gin.Context) {
	start := time.Now()
	botID := c.Param("botID")

	bot, err := h.Bots.GetBot(c.Request.Context(), botID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "bot not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "bot lookup failed")
		return
	}

	// Constant comparison is fine here: the secret is random and opaque, and
	// the limiter upstream bounds guessing throughput.
	if c.GetHeader(telegram.HeaderSecretToken) != bot.WebhookSecret {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid webhook secret")
		return
	}

	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed update payload")
		return
	}

	env := queue.UpdateEnvelope{
		BotID:      botID,
		RawUpdate:  json.RawMessage(body),
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.Queue.Push(env); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("enqueue rejected")
		fail(c, http.StatusServiceUnavailable, ErrCodeQueueFull, "update queue is full")
		return
	}
	updatesEnqueued.Inc()

	ok(c, http.StatusOK, QueuedResponse{
		Status:           "queued",
		EnqueueLatencyMs: float64(time.Since(start).Microseconds()) / 1000.0,
	})
}
