// Package config provides configuration for the Agent-HR server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	APIPort int // REST + WebSocket API port

	// Storage
	DatabasePath string

	// Auth settings
	APIKey string // Static API key for X-API-Key validation; empty disables auth

	// Container settings
	ContainerHost string // Where container ports are published
	RuntimeImage  string // Base image agent containers build on

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		APIPort:        getEnvInt("API_PORT", 8080),
		DatabasePath:   getEnv("DATABASE_PATH", "agenthr.db"),
		APIKey:         getEnv("API_KEY", ""),
		ContainerHost:  getEnv("CONTAINER_HOST", "127.0.0.1"),
		RuntimeImage:   getEnv("RUNTIME_IMAGE", "agenthr/runtime:latest"),
		PingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
