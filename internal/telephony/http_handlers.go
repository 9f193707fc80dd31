package telephony

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gymcrm-calls/internal/calls"
	"gymcrm-calls/internal/metrics"
	"gymcrm-calls/pkg/logger"
)

// CallIngestor applies decoded PBX events to the call store.
type CallIngestor interface {
	HandleState(ctx context.Context, ev calls.StateEvent) (calls.Outcome, error)
	HandleSummary(ctx context.Context, ev calls.SummaryEvent) (calls.Outcome, error)
}

// WebhookHandler converts PBX webhooks to call events and hands them to the
// ingestor. No business rules here.
//
// Status codes: 400 malformed, 401 verification failed, 500 store failure
// (the PBX retries), 200 otherwise, including ignored events.
type WebhookHandler struct {
	Calls    CallIngestor
	Verifier Verifier
}

const (
	kindState   = "state"
	kindSummary = "summary"
)

func (h WebhookHandler) HandleCallEvent(c *gin.Context) {
	env, ok := h.accept(c, kindState)
	if !ok {
		return
	}
	log := logger.FromGin(c)

	ev, err := DecodeState(env.Payload)
	if err != nil {
		log.Warn("call event rejected", "err", err)
		metrics.CallEvents.WithLabelValues(kindState, "malformed").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call event"})
		return
	}
	log.Info("call event received", "external_id", ev.ExternalID, "seq", ev.Seq, "call_state", ev.State)

	start := time.Now()
	out, err := h.Calls.HandleState(c.Request.Context(), ev)
	h.finish(c, kindState, out, err, start)
}

func (h WebhookHandler) HandleCallSummary(c *gin.Context) {
	env, ok := h.accept(c, kindSummary)
	if !ok {
		return
	}
	log := logger.FromGin(c)

	ev, err := DecodeSummary(env.Payload)
	if err != nil {
		log.Warn("call summary rejected", "err", err)
		metrics.CallEvents.WithLabelValues(kindSummary, "malformed").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call summary"})
		return
	}
	log.Info("call summary received", "external_id", ev.ExternalID, "answered", ev.Answered)

	start := time.Now()
	out, err := h.Calls.HandleSummary(c.Request.Context(), ev)
	h.finish(c, kindSummary, out, err, start)
}

// accept reads the envelope and runs the verifier. It writes the error
// response itself and reports false when the request must stop.
func (h WebhookHandler) accept(c *gin.Context, kind string) (Envelope, bool) {
	log := logger.FromGin(c)

	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call ingestor not configured"})
		return Envelope{}, false
	}

	env, err := ReadEnvelope(c.Request)
	if err != nil {
		log.Warn("webhook body rejected", "kind", kind, "err", err)
		metrics.CallEvents.WithLabelValues(kind, "malformed").Inc()
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return Envelope{}, false
	}

	v := h.Verifier
	if v == nil {
		v = NopVerifier{}
	}
	if err := v.Verify(c.Request, env); err != nil {
		log.Warn("webhook verification failed", "kind", kind, "client_ip", c.ClientIP())
		metrics.CallEvents.WithLabelValues(kind, "unauthorized").Inc()
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return Envelope{}, false
	}
	return env, true
}

func (h WebhookHandler) finish(c *gin.Context, kind string, out calls.Outcome, err error, start time.Time) {
	if err != nil {
		if errors.Is(err, calls.ErrInvalidEvent) {
			metrics.CallEvents.WithLabelValues(kind, "malformed").Inc()
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.FromGin(c).Error("call event failed", "kind", kind, "err", err)
		metrics.ObserveCallEvent(kind, "error", start)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
		return
	}
	metrics.ObserveCallEvent(kind, string(out), start)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": out})
}
