package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"core/internal/model"
	"core/internal/service"

	"github.com/gin-gonic/gin"
)

// EmbeddingHandler handles embedding-related HTTP requests
type EmbeddingHandler struct {
	store      service.PropertyStore
	vectorizer *service.Vectorizer
	dimensions int
	modelName  string
}

// NewEmbeddingHandler creates a new embedding handler
func NewEmbeddingHandler(store service.PropertyStore, vectorizer *service.Vectorizer, dimensions int, modelName string) *EmbeddingHandler {
	return &EmbeddingHandler{
		store:      store,
		vectorizer: vectorizer,
		dimensions: dimensions,
		modelName:  modelName,
	}
}

// BatchUpdate handles POST /api/v1/embeddings/batch
func (h *EmbeddingHandler) BatchUpdate(c *gin.Context) {
	var req model.EmbeddingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if len(req.Embeddings) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No embeddings provided"})
		return
	}

	for i, item := range req.Embeddings {
		if len(item.Embedding) != h.dimensions {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid embedding dimension at index %d, expected %d", i, h.dimensions),
			})
			return
		}
	}

	success, errs := h.store.BatchUpdateEmbeddings(c.Request.Context(), req.Embeddings, h.modelName)

	response := model.EmbeddingBatchResponse{
		Success: success,
		Failed:  len(req.Embeddings) - success,
		Errors:  errs,
	}

	if len(errs) > 0 {
		c.JSON(http.StatusPartialContent, response)
	} else {
		c.JSON(http.StatusOK, response)
	}
}

// Generate handles POST /api/v1/embeddings/generate
func (h *EmbeddingHandler) Generate(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	report, err := h.vectorizer.Run(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Embedding generation failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}
