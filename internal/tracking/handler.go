package tracking

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/middleware"
)

// Handler handles HTTP requests for ride tracking
type Handler struct {
	service *Service
}

// NewHandler creates a new tracking handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetSnapshot returns the live tracking view of a booking.
func (h *Handler) GetSnapshot(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid booking ID")
		return
	}

	snap, err := h.service.Snapshot(c.Request.Context(), bookingID, userID)
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, snap)
}
