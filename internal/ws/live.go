package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/push"
	"messaging-service/internal/telemetry"
)

const transport = "ws"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHandler serves the websocket variant of the live delivery channel.
type LiveHandler struct {
	registry  *push.Registry
	emitter   *telemetry.Emitter
	logger    *zap.Logger
	jwtSecret string
	heartbeat time.Duration
}

// NewLiveHandler constructs a LiveHandler.
func NewLiveHandler(registry *push.Registry, emitter *telemetry.Emitter, logger *zap.Logger, jwtSecret string, heartbeat time.Duration) *LiveHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &LiveHandler{
		registry:  registry,
		emitter:   emitter,
		logger:    logger,
		jwtSecret: jwtSecret,
		heartbeat: heartbeat,
	}
}

// Handle upgrades the connection and registers the client's live channel.
func (h *LiveHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/live").Start(c.Request.Context(), "live.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token != "" {
		const prefix = "Bearer "
		if len(token) > len(prefix) {
			token = token[len(prefix):]
		}
	} else {
		token = c.Query("token")
	}

	userID, err := middleware.UserIDFromToken(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

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

	// Read pump: detects client close and cancels the writer.
	readClosed := make(chan struct{})
	go func() {
		defer close(readClosed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
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
			conn.Close()
		}()

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case msg := <-ch.Events():
				event := models.MessageEvent{Type: "message", Message: &msg}
				if err := conn.WriteJSON(event); err != nil {
					closeReason = err.Error()
					h.logger.Warn("websocket write failed",
						zap.String("user_id", userID), zap.Error(err))
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					closeReason = err.Error()
					return
				}
			case <-ch.Done():
				closeReason = "replaced by newer registration"
				return
			case <-readClosed:
				return
			}
		}
	}()
}
