// Package config provides configuration for the learn engine
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	CORS      CORSConfig
	CourseAPI CourseAPIConfig
	Playback  PlaybackConfig
}

// ServerConfig holds control API server settings
type ServerConfig struct {
	Port int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins []string
}

// CourseAPIConfig holds settings for the remote course API
type CourseAPIConfig struct {
	BaseURL string
	Token   string
}

// PlaybackConfig holds playback engine timing settings
type PlaybackConfig struct {
	HeartbeatInterval time.Duration
	AutoAdvanceDelay  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (return error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}

	// Server configuration
	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080" // default port
	}
	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	cfg.Server.Port = serverPort

	// Logging configuration
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info" // default level
	}
	cfg.Logging.Level = logLevel

	// CORS configuration
	corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if corsOrigins == "" {
		// Default to allow all origins if not specified (for development)
		cfg.CORS.AllowedOrigins = []string{"*"}
	} else {
		// Parse comma-separated origins
		origins := strings.Split(corsOrigins, ",")
		cfg.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, origin)
			}
		}
	}

	// Remote course API configuration
	apiBaseURL := os.Getenv("COURSE_API_BASE_URL")
	if apiBaseURL == "" {
		return nil, fmt.Errorf("COURSE_API_BASE_URL is required")
	}
	cfg.CourseAPI.BaseURL = strings.TrimRight(apiBaseURL, "/")
	cfg.CourseAPI.Token = os.Getenv("COURSE_API_TOKEN")

	// Playback timing configuration
	heartbeatSeconds, err := intEnv("HEARTBEAT_INTERVAL_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	if heartbeatSeconds < 1 {
		return nil, fmt.Errorf("HEARTBEAT_INTERVAL_SECONDS must be at least 1")
	}
	cfg.Playback.HeartbeatInterval = time.Duration(heartbeatSeconds) * time.Second

	autoAdvanceSeconds, err := intEnv("AUTO_ADVANCE_DELAY_SECONDS", 2)
	if err != nil {
		return nil, err
	}
	if autoAdvanceSeconds < 0 {
		return nil, fmt.Errorf("AUTO_ADVANCE_DELAY_SECONDS must not be negative")
	}
	cfg.Playback.AutoAdvanceDelay = time.Duration(autoAdvanceSeconds) * time.Second

	return cfg, nil
}

// intEnv reads an integer environment variable with a default value
func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return value, nil
}
