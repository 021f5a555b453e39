package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/faultline/faultline/internal/config"
	"github.com/faultline/faultline/internal/database"
	"github.com/faultline/faultline/internal/events"
	"github.com/faultline/faultline/internal/handlers"
	"github.com/faultline/faultline/internal/jobs"
	"github.com/faultline/faultline/internal/middleware"
	"github.com/faultline/faultline/internal/notify"
	"github.com/faultline/faultline/internal/plugins"
	"github.com/faultline/faultline/internal/tsdb"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting Faultline...")

	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}

	// Hash the admin password
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		Enabled:        true,
		JWTSecret:      cfg.JWTSecret,
		JWTExpiryHours: cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
		},
		// Group and share reads are served anonymously with a reduced
		// projection; event ingestion is open to SDKs.
		AnonymousPaths: []string{
			"/api/*",
		},
	})
	log.Printf("JWT authentication enabled for user: %s", cfg.AdminUsername)

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Printf("Database connection established")

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize default database records
	if err := database.InitializeDefaults(cfg.AdminUsername, passwordHash); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}

	// Time-series store for per-group event counts
	var series *tsdb.Store
	if cfg.RedisURL != "" {
		series, err = tsdb.New(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := series.Ping(ctx); err != nil {
			log.Printf("Warning: Redis unreachable, stats will be empty: %v", err)
		}
		cancel()
		log.Printf("Time-series store initialized")
	} else {
		log.Printf("No Redis configured, stats disabled")
	}

	// Annotation plugin registry, populated from the plugins file
	registry := plugins.NewRegistry()
	if err := plugins.RegisterFromFile(registry, cfg.PluginsFile); err != nil {
		log.Printf("Warning: Failed to load plugins file: %v", err)
	}

	// Event ingestion with optional Slack new-issue notifications
	ingest := events.NewService(database.GetDB(), series)
	if notifier := notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel); notifier != nil {
		ingest.OnNewGroup = notifier.NotifyNewGroup
		log.Printf("Slack new-issue notifications enabled (channel %s)", cfg.SlackChannel)
	}

	// Initialize handlers
	httpHandler := handlers.NewHTTPHandler()
	groupHandler := handlers.NewGroupHandler(database.GetDB(), registry, series, cfg.BaseURL)
	storeHandler := handlers.NewStoreHandler(database.GetDB(), ingest)
	authHandler := handlers.NewAuthHandler(jwtAuthMiddleware)

	// Set up HTTP server routes
	mux := http.NewServeMux()
	httpHandler.SetupRoutes(mux)
	groupHandler.SetupRoutes(mux)
	storeHandler.SetupRoutes(mux)
	authHandler.SetupRoutes(mux)

	// Wrap all routes: request ID, CORS, then JWT authentication
	corsMiddleware := middleware.NewCORSMiddleware() // Allow all origins
	handler := middleware.RequestIDMiddleware(
		corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Background snooze sweeping
	stopJobs := make(chan struct{})
	sweeper := jobs.NewSnoozeSweeper(database.GetDB())
	go sweeper.Start(time.Minute, stopJobs)

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("Faultline is running! Press Ctrl+C to exit.")
	log.Printf("Event store endpoint: http://localhost:%d/api/{projectID}/store", cfg.HTTPPort)
	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)

	<-sigChan
	log.Println("\nReceived shutdown signal, cleaning up...")

	close(stopJobs)

	log.Println("Shutting down HTTP server...")
	if err := httpServer.Close(); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}
	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}
