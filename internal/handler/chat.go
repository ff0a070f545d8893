package handler

import (
	"errors"
	"net/http"

	"core/internal/model"
	"core/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles conversational HTTP requests
type ChatHandler struct {
	orchestrator *service.ChatOrchestrator
}

// NewChatHandler creates a new chat handler
func NewChatHandler(orchestrator *service.ChatOrchestrator) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.orchestrator.Chat(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat failed"})
		return
	}

	c.JSON(http.StatusOK, response)
}

// CloseConversation handles POST /api/v1/chat/:id/close
func (h *ChatHandler) CloseConversation(c *gin.Context) {
	conversationID := c.Param("id")

	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.orchestrator.Close(c.Request.Context(), req.UserID, conversationID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}
