package handlers

import (
	"net/http"

	"questforge/services"

	"github.com/gin-gonic/gin"
)

type SuggestionHandler struct {
	suggestionService *services.SuggestionService
}

func NewSuggestionHandler(suggestionService *services.SuggestionService) *SuggestionHandler {
	return &SuggestionHandler{
		suggestionService: suggestionService,
	}
}

func (h *SuggestionHandler) SubmitSuggestion(c *gin.Context) {
	var req services.SuggestUniverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	suggestion, err := h.suggestionService.SubmitSuggestion(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Suggestion received",
		"suggestion": suggestion,
	})
}
