package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	kvredis "github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/clients/redis"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/db"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/handlers"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/logger"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/middleware"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/repos"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/server"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/services"
	"github.com/Aram9574/KOLINK-VERSION-FINAL-sub006/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	port := utils.GetEnv("PORT", "8080", log)
	defaultsPath := utils.GetEnv("GENERATION_DEFAULTS_PATH", "", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis KV cache
	kvCache, err := kvredis.NewKVCache(log)
	if err != nil {
		log.Error("Could not init Redis KV cache", "error", err)
		os.Exit(1)
	}
	defer kvCache.Close()

	// Repos
	log.Info("Setting up Repos from main...")
	userProfileRepo := repos.NewUserProfileRepo(thePG, log)
	postRepo := repos.NewPostRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	clock := services.NewRealClock()
	generationDefaults, err := services.LoadGenerationDefaults(defaultsPath)
	if err != nil {
		log.Warn("Could not load generation defaults, using built-ins", "error", err)
	}
	generationClient, err := services.NewGenerationClient(log)
	if err != nil {
		log.Error("Could not init GenerationClient", "error", err)
		os.Exit(1)
	}
	progressionCalc := services.NewProgressionCalculator()
	profileService := services.NewProfileService(thePG, log, userProfileRepo)
	workflowService := services.NewGenerationWorkflowService(log, generationClient, progressionCalc, postRepo, kvCache, clock)
	recoveryService := services.NewRecoveryService(log, kvCache, postRepo, clock)
	sessionManager := services.NewSessionManager(thePG, log, kvCache, postRepo, profileService, workflowService, recoveryService, clock, generationDefaults)
	defer sessionManager.Close()

	// Handlers
	log.Info("Setting up handlers from main...")
	sessionHandler := handlers.NewSessionHandler(sessionManager)
	postHandler := handlers.NewPostHandler(log, sessionManager, workflowService, profileService, postRepo)
	autopilotHandler := handlers.NewAutopilotHandler(sessionManager, profileService)
	profileHandler := handlers.NewProfileHandler(sessionManager)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:   authMiddleware,
		SessionHandler:   sessionHandler,
		PostHandler:      postHandler,
		AutopilotHandler: autopilotHandler,
		ProfileHandler:   profileHandler,
	})

	log.Info("Starting server...", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
