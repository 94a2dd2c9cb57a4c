package routes

import (
	"net/http"

	"questforge/handlers"
	"questforge/middleware"
	"questforge/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

func SetupRoutes(
	router *gin.Engine,
	authHandler *handlers.AuthHandler,
	gameplayHandler *handlers.GameplayHandler,
	generatorHandler *handlers.GeneratorHandler,
	suggestionHandler *handlers.SuggestionHandler,
	hub *services.Hub,
	jwtSecret string,
	logger *zap.Logger,
) {
	// API routes
	api := router.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Protected generation routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/auth/profile", authHandler.GetProfile)

			generator := protected.Group("/generator")
			{
				generator.POST("/universes", generatorHandler.CreateUniverse)
				generator.POST("/universes/:id/quests", generatorHandler.CreateQuest)
				generator.POST("/universes/:id/assets", generatorHandler.GenerateUniverseAssets)
				generator.POST("/quests/:id/assets", generatorHandler.GenerateQuestAssets)
				generator.POST("/quests/:id/assets/async", generatorHandler.GenerateQuestAssetsAsync)
				generator.POST("/quests/:id/rewards/assign", generatorHandler.AssignRewards)
			}
		}

		// Public content routes
		api.GET("/universes", gameplayHandler.ListUniverses)
		api.GET("/universes/:slug", gameplayHandler.GetUniverse)
		api.GET("/quests/:slug", gameplayHandler.GetQuest)

		// Public play routes
		play := api.Group("/play")
		{
			play.POST("/quests/:slug/start", gameplayHandler.StartQuest)
			play.GET("/quests/:slug/categories", gameplayHandler.GetScoreCategories)
			play.POST("/questions/:id/answer", gameplayHandler.AnswerQuestion)
		}

		// Public suggestion route
		api.POST("/suggestions/universe", suggestionHandler.SubmitSuggestion)
	}

	// WebSocket endpoint for generation job progress
	router.GET("/ws/jobs/:jobID", func(c *gin.Context) {
		jobID := c.Param("jobID")
		if jobID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", zap.String("job_id", jobID), zap.Error(err))
			return
		}

		hub.RegisterClient(conn, jobID)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
