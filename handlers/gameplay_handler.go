package handlers

import (
	"net/http"
	"strconv"

	"questforge/services"

	"github.com/gin-gonic/gin"
)

type GameplayHandler struct {
	gameplayService *services.GameplayService
}

func NewGameplayHandler(gameplayService *services.GameplayService) *GameplayHandler {
	return &GameplayHandler{
		gameplayService: gameplayService,
	}
}

type startQuestRequest struct {
	OptionCount int `json:"option_count" binding:"omitempty,min=2,max=5"`
}

type answerRequest struct {
	OptionID uint `json:"option_id" binding:"required"`
}

// StartQuest begins a playthrough of the quest named by slug. The first call
// ever made for a quest generates its opening question.
func (h *GameplayHandler) StartQuest(c *gin.Context) {
	var req startQuestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.gameplayService.StartQuest(c.Request.Context(), c.Param("slug"), req.OptionCount)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": playerMessageForError(err)})
		return
	}

	c.JSON(http.StatusOK, result)
}

// AnswerQuestion resolves the branch behind the chosen option: the next
// question, or completion once the quest's question budget is spent.
func (h *GameplayHandler) AnswerQuestion(c *gin.Context) {
	questionID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid question ID"})
		return
	}

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.gameplayService.AnswerQuestion(c.Request.Context(), uint(questionID), req.OptionID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": playerMessageForError(err)})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameplayHandler) GetScoreCategories(c *gin.Context) {
	categories, err := h.gameplayService.GetScoreCategories(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": playerMessageForError(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"score_categories": categories})
}

func (h *GameplayHandler) ListUniverses(c *gin.Context) {
	universes, err := h.gameplayService.ListUniverses(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": playerMessageForError(err)})
		return
	}

	c.JSON(http.StatusOK, universes)
}

func (h *GameplayHandler) GetUniverse(c *gin.Context) {
	universe, err := h.gameplayService.GetUniverse(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": playerMessageForError(err)})
		return
	}

	c.JSON(http.StatusOK, universe)
}

func (h *GameplayHandler) GetQuest(c *gin.Context) {
	quest, err := h.gameplayService.GetQuest(c.Request.Context(), c.Param("slug"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": playerMessageForError(err)})
		return
	}

	c.JSON(http.StatusOK, quest)
}
