package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/cache"
	"messaging-service/internal/media"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/notify"
	"messaging-service/internal/observability"
	"messaging-service/internal/push"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// Transformations applied to message images on delivery.
var imageTransformations = []string{"q-auto", "f-webp", "w-1280"}

// MessageHandler manages direct-message endpoints.
type MessageHandler struct {
	messageRepo repositories.MessageRepository
	userRepo    repositories.UserRepository
	registry    *push.Registry
	uploader    media.Uploader
	unread      *cache.UnreadCounts
	notifier    *notify.Notifier
	emitter     *telemetry.Emitter
	logger      *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	registry *push.Registry,
	uploader media.Uploader,
	unread *cache.UnreadCounts,
	notifier *notify.Notifier,
	emitter *telemetry.Emitter,
	logger *zap.Logger,
) *MessageHandler {
	return &MessageHandler{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		registry:    registry,
		uploader:    uploader,
		unread:      unread,
		notifier:    notifier,
		emitter:     emitter,
		logger:      logger,
	}
}

// Send validates and persists an outgoing message, then pushes it to the
// recipient's live channel if one is open. The push is best-effort: once the
// message is stored the sender always gets a success response.
func (h *MessageHandler) Send(c *gin.Context) {
	senderID := middleware.UserID(c)

	toUserID := strings.TrimSpace(c.PostForm("to_user_id"))
	text := strings.TrimSpace(c.PostForm("text"))
	file, fileErr := c.FormFile("image")
	hasImage := fileErr == nil && file != nil

	if toUserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "to_user_id is required"})
		return
	}
	if text == "" && !hasImage {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "message requires text or an image"})
		return
	}

	exists, err := h.userRepo.Exists(c.Request.Context(), toUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to resolve recipient"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "recipient not found"})
		return
	}

	messageType := models.MessageTypeText
	mediaURL := ""
	if hasImage {
		url, err := h.uploadImage(c, file)
		if err != nil {
			// Nothing was persisted; the send aborts here.
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "media processing failed"})
			return
		}
		messageType = models.MessageTypeImage
		mediaURL = url
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), senderID, toUserID, text, messageType, mediaURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to store message"})
		return
	}

	h.deliver(c, msg)

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

func (h *MessageHandler) uploadImage(c *gin.Context, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}

	start := time.Now()
	filePath, err := h.uploader.Upload(c.Request.Context(), data, file.Filename)
	observability.ObserveMediaUpload(time.Since(start))
	if err != nil {
		h.logger.Warn("media upload failed", zap.String("filename", file.Filename), zap.Error(err))
		return "", err
	}
	return h.uploader.URL(filePath, imageTransformations...), nil
}

// deliver pushes the stored message to the recipient's live channel, falling
// back to the offline notification path. Push failure never fails the send.
func (h *MessageHandler) deliver(c *gin.Context, msg models.Message) {
	ctx := c.Request.Context()
	requestID := requestIDFromContext(c)

	ch, ok := h.registry.Lookup(msg.ToUserID)
	if !ok {
		observability.IncPushOutcome("no_channel")
		h.notifyOffline(c, msg)
		h.emitter.Emit(ctx, telemetry.KeyMessageStored, requestID, telemetry.MessagePayload{
			MessageID:  msg.ID,
			FromUserID: msg.FromUserID,
			ToUserID:   msg.ToUserID,
			Type:       msg.MessageType,
		})
		return
	}

	if err := ch.Send(msg); err != nil {
		outcome := "closed"
		if errors.Is(err, push.ErrChannelFull) {
			outcome = "full"
		}
		observability.IncPushOutcome(outcome)
		h.logger.Warn("live push failed",
			zap.Int64("message_id", msg.ID),
			zap.String("to_user_id", msg.ToUserID),
			zap.Error(err))
		h.emitter.Emit(ctx, telemetry.KeyPushFailed, requestID, telemetry.MessagePayload{
			MessageID:  msg.ID,
			FromUserID: msg.FromUserID,
			ToUserID:   msg.ToUserID,
			Type:       msg.MessageType,
			Reason:     err.Error(),
		})
		return
	}

	observability.IncPushOutcome("delivered")
	h.emitter.Emit(ctx, telemetry.KeyPushDelivered, requestID, telemetry.MessagePayload{
		MessageID:  msg.ID,
		FromUserID: msg.FromUserID,
		ToUserID:   msg.ToUserID,
		Type:       msg.MessageType,
	})
}

func (h *MessageHandler) notifyOffline(c *gin.Context, msg models.Message) {
	h.unread.Incr(c.Request.Context(), msg.ToUserID, msg.FromUserID)

	senderName := msg.FromUserID
	if sender, err := h.userRepo.GetUser(c.Request.Context(), msg.FromUserID); err == nil {
		senderName = sender.FullName
	}
	h.notifier.NotifyNewMessage(c.Request.Context(), msg.ToUserID, senderName, msg.Text)
}

// Get returns the conversation between the authenticated user and the
// requested counterpart. Display ordering is left to the client.
func (h *MessageHandler) Get(c *gin.Context) {
	userID := middleware.UserID(c)

	var req struct {
		ToUserID string `json:"to_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	msgs, err := h.messageRepo.ListBetween(c.Request.Context(), userID, req.ToUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// Recent returns the latest inbound message per counterpart with unread
// counts, for the recent-conversations view.
func (h *MessageHandler) Recent(c *gin.Context) {
	userID := middleware.UserID(c)

	msgs, err := h.messageRepo.RecentForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load recent messages"})
		return
	}

	for i := range msgs {
		if n, ok := h.unread.Get(c.Request.Context(), userID, msgs[i].FromUserID); ok {
			msgs[i].UnreadCount = n
		}
	}
	if msgs == nil {
		msgs = []models.RecentMessage{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// Seen marks all messages from a counterpart to the authenticated user as
// seen and resets the unread counter.
func (h *MessageHandler) Seen(c *gin.Context) {
	userID := middleware.UserID(c)

	var req struct {
		FromUserID string `json:"from_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.messageRepo.MarkSeen(c.Request.Context(), req.FromUserID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to mark seen"})
		return
	}
	h.unread.Reset(c.Request.Context(), userID, req.FromUserID)

	c.JSON(http.StatusOK, gin.H{"success": true})
}
