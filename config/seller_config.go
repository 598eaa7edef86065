package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// JWT
	JWTSecret string

	// eBay
	EbayEnvironment string // sandbox | production
	EbayTradingURL  string // override, empty = derive from environment
	EbayAuthURL     string // override, empty = derive from environment
	EbaySiteID      string
	EbayCompatLevel string

	// Ingestion
	FetchWindowDays  int
	FetchPageSize    int
	PollInterval     time.Duration
	PollEnabled      bool
	SyncDebounce     time.Duration
	StatsCacheTTL    time.Duration
	MaxResponseDelay time.Duration // cap on configured auto-response delay

	// OpenAI (reply drafts)
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// Worker
	WorkerID        string
	WorkerCount     int
	WorkerQueueSize int
	JobTimeout      time.Duration

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "sellerdesk"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// eBay
		EbayEnvironment: getEnv("EBAY_ENVIRONMENT", "sandbox"),
		EbayTradingURL:  getEnv("EBAY_TRADING_URL", ""),
		EbayAuthURL:     getEnv("EBAY_AUTH_URL", ""),
		EbaySiteID:      getEnv("EBAY_SITE_ID", "0"),
		EbayCompatLevel: getEnv("EBAY_COMPAT_LEVEL", "1285"),

		// Ingestion
		FetchWindowDays:  getEnvInt("FETCH_WINDOW_DAYS", 30),
		FetchPageSize:    getEnvInt("FETCH_PAGE_SIZE", 100),
		PollInterval:     time.Duration(getEnvInt("POLL_INTERVAL_SEC", 300)) * time.Second,
		PollEnabled:      getEnvBool("POLL_ENABLED", true),
		SyncDebounce:     time.Duration(getEnvInt("SYNC_DEBOUNCE_SEC", 30)) * time.Second,
		StatsCacheTTL:    time.Duration(getEnvInt("STATS_CACHE_TTL_SEC", 60)) * time.Second,
		MaxResponseDelay: time.Duration(getEnvInt("MAX_RESPONSE_DELAY_SEC", 3600)) * time.Second,

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 512),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.7),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 30),

		// Worker
		WorkerID:        getEnv("WORKER_ID", generateWorkerID()),
		WorkerCount:     getEnvInt("WORKER_COUNT", 4),
		WorkerQueueSize: getEnvInt("WORKER_QUEUE_SIZE", 1000),
		JobTimeout:      time.Duration(getEnvInt("JOB_TIMEOUT_SEC", 120)) * time.Second,

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
	}

	if cfg.EbayEnvironment != "sandbox" && cfg.EbayEnvironment != "production" {
		return nil, fmt.Errorf("invalid EBAY_ENVIRONMENT %q (want sandbox or production)", cfg.EbayEnvironment)
	}

	return cfg, nil
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
