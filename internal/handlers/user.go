package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// UserHandler mirrors identity-service users into the local store.
type UserHandler struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewUserHandler builds a UserHandler.
func NewUserHandler(userRepo repositories.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, logger: logger}
}

// Sync upserts a user record pushed by the identity service webhook relay.
func (h *UserHandler) Sync(c *gin.Context) {
	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if user.ID == "" || user.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "id and username are required"})
		return
	}

	if err := h.userRepo.Upsert(c.Request.Context(), user); err != nil {
		h.logger.Error("user upsert failed", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to sync user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
