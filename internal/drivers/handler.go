package drivers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/movemobility/dispatch/pkg/common"
	"github.com/movemobility/dispatch/pkg/geo"
	"github.com/movemobility/dispatch/pkg/middleware"
	"github.com/movemobility/dispatch/pkg/models"
)

// Handler handles HTTP requests for the driver index
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new drivers handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// UpdateLocation handles a driver location ping.
func (h *Handler) UpdateLocation(c *gin.Context) {
	driverID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.LocationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.UpdateLocation(c.Request.Context(), driverID, req.Latitude, req.Longitude); err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{
		"message": "location updated",
		"h3_cell": geo.MatchingCell(req.Latitude, req.Longitude),
	})
}

// SetOnline toggles the authenticated driver's availability.
func (h *Handler) SetOnline(c *gin.Context) {
	driverID, ok := middleware.UserID(c)
	if !ok {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req models.OnlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SetOnline(c.Request.Context(), driverID, *req.Online); err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, gin.H{"online": *req.Online})
}

// NearbyDrivers returns online drivers around a point, nearest first, with
// the H3 zone supply count for the same area.
func (h *Handler) NearbyDrivers(c *gin.Context) {
	latitude, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil || latitude < -90 || latitude > 90 {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid latitude")
		return
	}
	longitude, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil || longitude < -180 || longitude > 180 {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid longitude")
		return
	}

	radiusKm, err := strconv.ParseFloat(c.DefaultQuery("radius_km", "10"), 64)
	if err != nil || radiusKm <= 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid radius_km")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid limit")
		return
	}

	nearby, err := h.service.NearbyDrivers(c.Request.Context(), latitude, longitude, radiusKm, limit)
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	supply, err := h.service.ZoneSupply(c.Request.Context(), latitude, longitude)
	if err != nil {
		supply = len(nearby)
	}

	common.SuccessResponse(c, gin.H{
		"drivers":     nearby,
		"count":       len(nearby),
		"zone_supply": supply,
	})
}

// GetDriver returns a driver's public profile and last known position.
func (h *Handler) GetDriver(c *gin.Context) {
	driverID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid driver ID")
		return
	}

	driver, err := h.service.GetDriver(c.Request.Context(), driverID)
	if err != nil {
		common.DomainErrorResponse(c, err)
		return
	}

	common.SuccessResponse(c, driver)
}
