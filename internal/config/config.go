package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"kartis/internal/cache"
	"kartis/internal/database"
	"kartis/internal/messaging"
	"kartis/internal/search"
	"kartis/internal/token"
)

// Config holds the full application configuration, assembled from
// environment variables with sane defaults for local development.
type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	// How long after event start a check-in still counts as on time.
	LateThreshold time.Duration

	// Interval between ban sweeps in the sweeper binary.
	SweepInterval time.Duration

	Database database.Config
	NATS     messaging.Config
	Search   search.Config
	Redis    cache.Config
	Token    token.Config
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		LateThreshold: time.Duration(getEnvInt("LATE_THRESHOLD_MIN", 30)) * time.Minute,
		SweepInterval: time.Duration(getEnvInt("SWEEP_INTERVAL_MIN", 60)) * time.Minute,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "kartis"),
			Password:           getEnv("DB_PASSWORD", "kartis"),
			DBName:             getEnv("DB_NAME", "kartis"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "kartis"),
			ClientID:  getEnv("NATS_CLIENT_ID", "kartis-api"),
		},

		Search: search.Config{
			URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:      getEnv("ELASTICSEARCH_INDEX", "registrations"),
			MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		},

		Redis: cache.Config{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			// Public registration endpoints: requests per phone per window.
			RateLimit:  getEnvInt("RATE_LIMIT_MAX", 10),
			RateWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
		},

		Token: token.Config{
			Secret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
			CancelTTL:   time.Duration(getEnvInt("CANCEL_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,
			AdminIssuer: getEnv("ADMIN_TOKEN_ISSUER", "kartis-auth"),
		},
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
