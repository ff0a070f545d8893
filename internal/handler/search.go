package handler

import (
	"errors"
	"net/http"
	"strconv"

	"core/internal/model"
	"core/internal/service"

	"github.com/gin-gonic/gin"
)

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	search *service.SearchEngine
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(search *service.SearchEngine) *SearchHandler {
	return &SearchHandler{search: search}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	filters := model.SearchFilters{}
	if req.Filters != nil {
		filters = *req.Filters
	}

	result := h.search.Search(c.Request.Context(), req.Query, filters, req.Limit)
	c.JSON(http.StatusOK, result)
}

// Similar handles GET /api/v1/properties/:id/similar
func (h *SearchHandler) Similar(c *gin.Context) {
	propertyID := c.Param("id")

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	result, err := h.search.FindSimilar(c.Request.Context(), propertyID, limit)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Similar lookup failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
