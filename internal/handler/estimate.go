package handler

import (
	"net/http"

	"core/internal/model"
	"core/internal/service"

	"github.com/gin-gonic/gin"
)

// EstimateHandler handles price-estimation HTTP requests
type EstimateHandler struct {
	estimator *service.Estimator
}

// NewEstimateHandler creates a new estimate handler
func NewEstimateHandler(estimator *service.Estimator) *EstimateHandler {
	return &EstimateHandler{estimator: estimator}
}

// Estimate handles POST /api/v1/estimate
func (h *EstimateHandler) Estimate(c *gin.Context) {
	var req model.PriceEstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if req.PropertyType != nil && !model.ValidPropertyType(*req.PropertyType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown property type: " + *req.PropertyType})
		return
	}

	estimate, err := h.estimator.Estimate(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Estimation failed"})
		return
	}

	c.JSON(http.StatusOK, estimate)
}
