package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"questforge/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GeneratorHandler exposes the admin generation endpoints. Long-running jobs
// stream their progress as server-sent events; the async variant returns a
// job id whose progress is broadcast over the websocket hub instead.
type GeneratorHandler struct {
	generatorService *services.GeneratorService
	pipelineService  *services.PipelineService
	hub              *services.Hub
	logger           *zap.Logger
}

func NewGeneratorHandler(generatorService *services.GeneratorService, pipelineService *services.PipelineService, hub *services.Hub, logger *zap.Logger) *GeneratorHandler {
	return &GeneratorHandler{
		generatorService: generatorService,
		pipelineService:  pipelineService,
		hub:              hub,
		logger:           logger,
	}
}

type createUniverseRequest struct {
	Description string `json:"description" binding:"required,max=2000"`
}

type createQuestRequest struct {
	Theme        string `json:"theme" binding:"max=500"`
	MaxQuestions int    `json:"max_questions" binding:"omitempty,min=1,max=50"`
}

// CreateUniverse generates a universe from a description, streaming progress
// as SSE. The final event carries the created universe.
func (h *GeneratorHandler) CreateUniverse(c *gin.Context) {
	var req createUniverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emit := sseEmitter(c)
	universe, err := h.generatorService.GenerateUniverse(c.Request.Context(), req.Description, emit)
	if err != nil {
		emit(services.ProgressEvent{Status: "error", Message: err.Error()})
		return
	}

	writeSSE(c, gin.H{"status": "completed", "universe": universe})
}

// CreateQuest generates a quest inside a universe, streaming progress as SSE.
// The final event carries the created quest.
func (h *GeneratorHandler) CreateQuest(c *gin.Context) {
	universeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid universe ID"})
		return
	}

	var req createQuestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	emit := sseEmitter(c)
	quest, err := h.generatorService.GenerateQuest(c.Request.Context(), uint(universeID), req.Theme, req.MaxQuestions, emit)
	if err != nil {
		emit(services.ProgressEvent{Status: "error", Message: err.Error()})
		return
	}

	writeSSE(c, gin.H{"status": "completed", "quest": quest})
}

// GenerateUniverseAssets runs the universe asset pipeline, streaming progress
// as SSE.
func (h *GeneratorHandler) GenerateUniverseAssets(c *gin.Context) {
	universeID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid universe ID"})
		return
	}

	emit := sseEmitter(c)
	if err := h.pipelineService.GenerateUniverseAssets(c.Request.Context(), uint(universeID), emit); err != nil {
		emit(services.ProgressEvent{Status: "error", Message: err.Error()})
	}
}

// GenerateQuestAssets runs the quest asset pipeline, streaming progress as
// SSE. Closing the stream cancels the request context, which stops the
// pipeline before its next step.
func (h *GeneratorHandler) GenerateQuestAssets(c *gin.Context) {
	questID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quest ID"})
		return
	}

	emit := sseEmitter(c)
	if err := h.pipelineService.GenerateQuestAssets(c.Request.Context(), uint(questID), emit); err != nil {
		emit(services.ProgressEvent{Status: "error", Message: err.Error()})
	}
}

// GenerateQuestAssetsAsync starts the quest asset pipeline in the background
// and returns a job id. Progress is broadcast to websocket subscribers of
// that job.
func (h *GeneratorHandler) GenerateQuestAssetsAsync(c *gin.Context) {
	questID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quest ID"})
		return
	}

	jobID := uuid.NewString()
	go func() {
		emit := func(ev services.ProgressEvent) {
			h.hub.BroadcastToJob(jobID, ev)
		}
		if err := h.pipelineService.GenerateQuestAssets(context.Background(), uint(questID), emit); err != nil {
			h.logger.Error("async quest asset job failed",
				zap.String("job_id", jobID),
				zap.Uint64("quest_id", questID),
				zap.Error(err))
			h.hub.BroadcastToJob(jobID, services.ProgressEvent{Status: "error", Message: err.Error()})
			return
		}
		h.logger.Info("async quest asset job finished",
			zap.String("job_id", jobID),
			zap.Uint64("quest_id", questID),
			zap.Int("subscribers", h.hub.SubscriberCount(jobID)))
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// AssignRewards re-runs reward assignment for options created after the last
// pipeline run.
func (h *GeneratorHandler) AssignRewards(c *gin.Context) {
	questID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quest ID"})
		return
	}

	if err := h.pipelineService.AssignRewards(c.Request.Context(), uint(questID)); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rewards assigned"})
}

func sseEmitter(c *gin.Context) services.ProgressFunc {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	return func(ev services.ProgressEvent) {
		writeSSE(c, ev)
	}
}

func writeSSE(c *gin.Context, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
	c.Writer.Flush()
}
