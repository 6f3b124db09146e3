package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/carlog-backend/internal/services"
)

// RecommendationResponse is the body of the recommendations endpoint.
type RecommendationResponse struct {
	VehicleID        string `json:"vehicle_id"`
	Recommendations  string `json:"recommendations"`
	Cached           bool   `json:"cached"`
	Mileage          int    `json:"mileage"`
	MaintenanceCount int    `json:"maintenance_count"`
}

// GetRecommendations godoc
// @ID          getRecommendations
// @Summary     Maintenance recommendations for a vehicle
// @Description Served from the cache while mileage and maintenance history are unchanged.
// @Tags        Vehicles
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Vehicle ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.RecommendationResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Vehicle not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider failed"
// @Failure     503  {object}  handlers.ErrorResponse  "Provider not configured"
// @Router      /vehicles/{id}/recommendations [get]
func (h *Handlers) GetRecommendations(c *gin.Context) {
	vehicleID := c.Param("id")
	if _, err := uuid.Parse(vehicleID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "vehicle id must be a UUID")
		return
	}
	if h.recs == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeProviderDisabled, "recommendations not available")
		return
	}

	rec, err := h.recs.ForVehicle(c.Request.Context(), userID(c), vehicleID)
	switch {
	case errors.Is(err, services.ErrVehicleNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "vehicle not found")
		return
	case errors.Is(err, services.ErrNoRecommendationProvider):
		fail(c, http.StatusServiceUnavailable, ErrCodeProviderDisabled, "recommendations not available")
		return
	case errors.Is(err, services.ErrComputeFailed):
		fail(c, http.StatusBadGateway, ErrCodeRecommendation, "could not generate recommendations")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	ok(c, http.StatusOK, RecommendationResponse{
		VehicleID:        vehicleID,
		Recommendations:  rec.Text,
		Cached:           rec.Cached,
		Mileage:          rec.Fingerprint.Mileage,
		MaintenanceCount: rec.Fingerprint.MaintenanceCount,
	})
}
