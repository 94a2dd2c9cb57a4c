package main

import (
	"context"
	"log"

	"questforge/config"
	"questforge/handlers"
	"questforge/middleware"
	"questforge/models"
	"questforge/routes"
	"questforge/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// Auto-migrate database models
	err = db.AutoMigrate(
		&models.User{},
		&models.Universe{},
		&models.Character{},
		&models.Quest{},
		&models.ScoreCategory{},
		&models.Question{},
		&models.Option{},
		&models.Collectible{},
		&models.QuestReward{},
		&models.QuestGameplayImage{},
		&models.UniverseSuggestion{},
	)
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize Redis
	redisClient := config.InitRedis(cfg)

	ctx := context.Background()

	// Initialize content providers and asset storage
	contentGenerator, err := services.NewProviderGenerator(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize content generator", zap.Error(err))
	}
	assetStore, err := services.NewS3AssetStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize asset store", zap.Error(err))
	}

	// Initialize services
	authService := services.NewAuthService(db, cfg.JWTSecret)
	generatorService := services.NewGeneratorService(db, contentGenerator, logger)
	traversalService := services.NewTraversalService(db, generatorService, logger)
	pipelineService := services.NewPipelineService(db, contentGenerator, assetStore, logger)
	gameplayService := services.NewGameplayService(db, redisClient, traversalService, logger)
	suggestionService := services.NewSuggestionService(db, cfg.SlackWebhookURL, logger)

	// Initialize WebSocket hub
	hub := services.NewHub(logger)
	go hub.Run()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	gameplayHandler := handlers.NewGameplayHandler(gameplayService)
	generatorHandler := handlers.NewGeneratorHandler(generatorService, pipelineService, hub, logger)
	suggestionHandler := handlers.NewSuggestionHandler(suggestionService)

	// Schedule the nightly asset backfill
	scheduler := cron.New()
	_, err = scheduler.AddFunc("@daily", func() {
		if err := pipelineService.BackfillAssets(context.Background()); err != nil {
			logger.Error("asset backfill failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Failed to schedule asset backfill", zap.Error(err))
	}
	scheduler.Start()

	// Setup Gin router
	router := gin.Default()

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(router, authHandler, gameplayHandler, generatorHandler, suggestionHandler, hub, cfg.JWTSecret, logger)

	// Start server
	logger.Info("Server starting", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
