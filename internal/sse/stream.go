package sse

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/observability"
	"messaging-service/internal/push"
	"messaging-service/internal/telemetry"
)

const transport = "sse"

// Handler serves the SSE live delivery channel: one long-lived stream per
// recipient, fed by the push registry.
type Handler struct {
	registry    *push.Registry
	emitter     *telemetry.Emitter
	logger      *zap.Logger
	heartbeat   time.Duration
	idleTimeout time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(registry *push.Registry, emitter *telemetry.Emitter, logger *zap.Logger, heartbeat, idleTimeout time.Duration) *Handler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	return &Handler{
		registry:    registry,
		emitter:     emitter,
		logger:      logger,
		heartbeat:   heartbeat,
		idleTimeout: idleTimeout,
	}
}

// Stream registers a live channel for the recipient and holds the response
// open, emitting each pushed message as an SSE data frame. The registration
// is removed when the client disconnects, the idle timeout fires, or a newer
// registration replaces this one.
func (h *Handler) Stream(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing user id"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "streaming unsupported"})
		return
	}

	ctx, span := otel.Tracer("messaging-service/live").Start(c.Request.Context(), "live.handshake")
	connID := uuid.NewString()
	requestID := observability.RequestIDFromRequest(c.Request)

	ch := h.registry.Register(userID)
	connectedAt := time.Now()

	observability.IncLiveActive(transport)
	observability.IncLiveEvent(transport, "connect")
	h.emitter.Emit(ctx, telemetry.KeyLiveConnect, requestID, telemetry.LivePayload{
		UserID:    userID,
		Transport: transport,
		ConnID:    connID,
	})
	span.End()

	closeReason := "client disconnect"
	defer func() {
		h.registry.Unregister(userID, ch)
		observability.DecLiveActive(transport)
		observability.IncLiveEvent(transport, "disconnect")
		h.emitter.Emit(ctx, telemetry.KeyLiveClose, requestID, telemetry.LivePayload{
			UserID:     userID,
			Transport:  transport,
			ConnID:     connID,
			DurationMS: time.Since(connectedAt).Milliseconds(),
			Reason:     closeReason,
		})
	}()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	if _, err := c.Writer.Write([]byte(": connected\n\n")); err != nil {
		closeReason = err.Error()
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	idle := time.NewTimer(h.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case msg := <-ch.Events():
			payload, err := json.Marshal(msg)
			if err != nil {
				h.logger.Error("encode live message", zap.Int64("message_id", msg.ID), zap.Error(err))
				continue
			}
			if _, err := c.Writer.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
				closeReason = err.Error()
				return
			}
			flusher.Flush()
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(h.idleTimeout)
		case <-ticker.C:
			if _, err := c.Writer.Write([]byte(": ping\n\n")); err != nil {
				closeReason = err.Error()
				return
			}
			flusher.Flush()
		case <-ch.Done():
			closeReason = "replaced by newer registration"
			return
		case <-idle.C:
			closeReason = "idle timeout"
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
