package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port                string
	Env                 string
	DatabaseURL         string
	CORSAllowOrigin     []string
	WorkerPoolSize      int
	JobTimeout          time.Duration
	ValidationThreshold int
	ScoreAlertThreshold int
	CrawlRatePerHost    float64
	CrawlUserAgent      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 env,
		DatabaseURL:         dbURL,
		CORSAllowOrigin:     splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		WorkerPoolSize:      getEnvInt("WORKER_POOL_SIZE", 4),
		JobTimeout:          getEnvDuration("JOB_TIMEOUT", 2*time.Minute),
		ValidationThreshold: getEnvInt("VALIDATION_THRESHOLD", 90),
		ScoreAlertThreshold: getEnvInt("SCORE_ALERT_THRESHOLD", 60),
		CrawlRatePerHost:    getEnvFloat("CRAWL_RATE_PER_HOST", 1),
		CrawlUserAgent:      getEnv("CRAWL_USER_AGENT", "shoplens-bot/1.0"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("%s is not an integer, using default %d", key, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("%s is not a number, using default %g", key, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("%s is not a duration, using default %s", key, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}
