package main

import (
	"encoding/gob"
	"log"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/controllers"
	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/routes"
	"github.com/gamersarena/GamersArena/utils"
)

func main() {
	// Initialize logger
	if err := utils.InitLogger(); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	// Register types for session serialization
	gob.Register(controllers.RegistrationData{})

	// Load environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("Error loading config: %v", err)
		log.Fatal("Error loading config:", err)
	}

	// Initialize database
	config.InitDB()

	// Create sample admin
	if err := controllers.CreateSampleAdmin(); err != nil {
		utils.LogError("Failed to create sample admin: %v", err)
		log.Fatal("Failed to create sample admin:", err)
	}

	// Seed the token bundle catalog on first boot
	if err := controllers.CreateDefaultBundles(); err != nil {
		utils.LogError("Failed to seed token bundles: %v", err)
		log.Fatal("Failed to seed token bundles:", err)
	}

	// Initialize Google OAuth
	config.InitGoogleOAuth()

	// Wire the ledger and payment providers
	controllers.InitServices(cfg, ledger.NewGormStore(config.DB))

	// Set up router
	router := routes.SetupRouter()

	// Add middleware
	router.Use(utils.LoggerMiddleware())
	router.Use(utils.CORSMiddleware())
	router.Use(utils.RecoveryMiddleware())
	router.Use(utils.RequestIDMiddleware())
	router.Use(utils.SecurityHeadersMiddleware())

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	utils.LogInfo("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		utils.LogError("Error starting server: %v", err)
		log.Fatal("Error starting server:", err)
	}
}
