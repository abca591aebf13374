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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/skillstream/learn-engine/docs"
	"github.com/skillstream/learn-engine/internal/config"
	"github.com/skillstream/learn-engine/internal/handlers"
	"github.com/skillstream/learn-engine/internal/logger"
	"github.com/skillstream/learn-engine/internal/middleware"
	"github.com/skillstream/learn-engine/internal/repositories"
	"github.com/skillstream/learn-engine/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// @title SkillStream Learn Engine API
// @version 1.0
// @description Playback sessions and watch-progress tracking for the learning surface

// @contact.name API Support

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting SkillStream Learn Engine")

	// Initialize the remote course API client and repositories
	client := repositories.NewClient(cfg.CourseAPI.BaseURL, cfg.CourseAPI.Token)
	courseRepo := repositories.NewCourseRepository(client)
	progressRepo := repositories.NewProgressRepository(client)
	mediaRepo := repositories.NewMediaRepository(client)

	// Initialize services
	curriculumService := services.NewCurriculumService()
	progressService := services.NewProgressService(courseRepo, progressRepo, curriculumService, logger.Logger)
	playbackService := services.NewPlaybackService(
		progressService,
		mediaRepo,
		curriculumService,
		logger.Logger,
		cfg.Playback.HeartbeatInterval,
		cfg.Playback.AutoAdvanceDelay,
	)

	// Initialize handlers
	playerHandler := handlers.NewPlayerHandler(playbackService, logger.Logger)
	progressHandler := handlers.NewProgressHandler(progressService, logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger.Logger))
	r.Use(middleware.Recovery(logger.Logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(600, time.Minute))
	r.Use(middleware.RequestSizeLimit)

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	// Scope router to /api/v1
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		// Register playback session routes
		playerHandler.RegisterRoutes(r)
		// Register progress view routes
		progressHandler.RegisterRoutes(r)
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Stop playback sessions before closing the listener so heartbeat loops
	// and auto-advance timers do not fire into a dead server.
	playbackService.Shutdown()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}
