package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Table Settings
	FrameRate              int
	BroadcastRate          int
	TurnSeconds            int
	SnapshotTTLMinutes     int
	QuitPenaltySeconds     int
	IdleTableSeconds       int
	IdleWorkerPollInterval int
	MaxTables              int

	// Security
	JWTSecret          string
	SeatTokenTTLMinutes int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/breakshot?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Table Settings
		FrameRate:              getEnvInt("FRAME_RATE", 60),
		BroadcastRate:          getEnvInt("BROADCAST_RATE", 30),
		TurnSeconds:            getEnvInt("TURN_SECONDS", 30),
		SnapshotTTLMinutes:     getEnvInt("SNAPSHOT_TTL_MINUTES", 60),
		QuitPenaltySeconds:     getEnvInt("QUIT_PENALTY_SECONDS", 60),
		IdleTableSeconds:       getEnvInt("IDLE_TABLE_SECONDS", 600),
		IdleWorkerPollInterval: getEnvInt("IDLE_WORKER_POLL_INTERVAL", 5),
		MaxTables:              getEnvInt("MAX_TABLES", 500),

		// Security
		JWTSecret:           getEnv("JWT_SECRET", "change-me-in-production"),
		SeatTokenTTLMinutes: getEnvInt("SEAT_TOKEN_TTL_MINUTES", 120),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
