package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/notify"
)

// NotificationHandler manages Web Push subscriptions.
type NotificationHandler struct {
	notifier *notify.Notifier
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifier *notify.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: notifier}
}

// Subscribe stores a browser push subscription for the authenticated user.
func (h *NotificationHandler) Subscribe(c *gin.Context) {
	if h.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "push notifications not configured"})
		return
	}

	userID := middleware.UserID(c)

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := h.notifier.Subscribe(c.Request.Context(), userID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to store subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "vapid_public_key": h.notifier.VAPIDPublicKey()})
}
