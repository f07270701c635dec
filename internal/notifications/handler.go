package notifications

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/middleware"
	"github.com/movemobility/dispatch/pkg/models"
)

// Handler handles HTTP requests for driver notifications
type Handler struct {
	repo *Repository
}

// NewHandler creates a new notifications handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListNotifications returns the authenticated driver's notification log.
func (h *Handler) ListNotifications(c *gin.Context) {
	driverID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.repo.ListForDriver(c.Request.Context(), driverID, limit)
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	unread, err := h.repo.UnreadCount(c.Request.Context(), driverID)
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// MarkRead marks notifications as read.
func (h *Handler) MarkRead(c *gin.Context) {
	driverID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var err error
	if req.MarkAll {
		err = h.repo.MarkAllRead(c.Request.Context(), driverID)
	} else {
		err = h.repo.MarkRead(c.Request.Context(), driverID, req.NotificationIDs)
	}
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"message": "notifications marked read"})
}

// RegisterDevice registers a push target for the authenticated user.
func (h *Handler) RegisterDevice(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform" binding:"required,oneof=ios android web"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.RegisterDeviceToken(c.Request.Context(), userID, req.Token, req.Platform); err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.CreatedResponse(c, gin.H{"message": "device registered"})
}

// RemoveDevice unregisters a push target.
func (h *Handler) RemoveDevice(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.RemoveDeviceToken(c.Request.Context(), userID, req.Token); err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"message": "device removed"})
}
