package offers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/middleware"
	"github.com/movemobility/dispatch/pkg/models"
)

// Handler handles HTTP requests for offers
type Handler struct {
	lifecycle *Lifecycle
}

// NewHandler creates a new offers handler
func NewHandler(lifecycle *Lifecycle) *Handler {
	return &Handler{lifecycle: lifecycle}
}

// PendingOffer returns the authenticated driver's current live offer. The
// driver app polls this between pushes.
func (h *Handler) PendingOffer(c *gin.Context) {
	driverID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	offer, err := h.lifecycle.PendingOffer(c.Request.Context(), driverID)
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, offer)
}

func bindResponseRequest(c *gin.Context) (*models.OfferResponseRequest, bool) {
	var req models.OfferResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if req.OfferID == nil && req.BookingID == nil {
		common.ErrorResponse(c, http.StatusBadRequest, "offer_id or booking_id is required")
		return nil, false
	}
	return &req, true
}

// AcceptOffer handles a driver accepting an offer.
func (h *Handler) AcceptOffer(c *gin.Context) {
	driverID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, ok := bindResponseRequest(c)
	if !ok {
		return
	}

	result, err := h.lifecycle.Accept(c.Request.Context(), driverID, req)
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{
		"offer":   result.Offer,
		"booking": result.Booking,
	})
}

// DeclineOffer handles a driver declining an offer.
func (h *Handler) DeclineOffer(c *gin.Context) {
	driverID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	req, ok := bindResponseRequest(c)
	if !ok {
		return
	}

	result, err := h.lifecycle.Decline(c.Request.Context(), driverID, req)
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{
		"offer":                result.Offer,
		"next_driver_notified": result.NextOffer != nil,
	})
}
