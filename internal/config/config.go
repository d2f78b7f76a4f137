package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	DatabaseURL    string
	AdminJWTSecret string

	RedisAddr        string
	RedisPassword    string
	CapacityCacheTTL time.Duration

	CORSAllowedOrigins []string

	// TimeOffPendingBlocks treats pending time-off requests as blocking for
	// availability, so a later approval can never expose a double booking.
	TimeOffPendingBlocks bool

	// RevenueFallbackExpected substitutes the appointment type's expected
	// revenue in productivity metrics when actual revenue was not recorded.
	RevenueFallbackExpected bool

	// AvgRevenuePerMinuteCents values unbooked capacity when ranking
	// underutilized staff.
	AvgRevenuePerMinuteCents int64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		CapacityCacheTTL: getEnvAsDuration("CAPACITY_CACHE_TTL", 5*time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		TimeOffPendingBlocks:     getEnvAsBool("TIMEOFF_PENDING_BLOCKS", true),
		RevenueFallbackExpected:  getEnvAsBool("REVENUE_FALLBACK_EXPECTED", true),
		AvgRevenuePerMinuteCents: int64(getEnvAsInt("AVG_REVENUE_PER_MINUTE_CENTS", 250)),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping
// empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
