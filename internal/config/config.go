package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	// Server
	Env      string
	Port     string
	LogLevel string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Pipeline (X-API-Key protected refresh endpoints)
	PipelineAPIKey  string
	PipelineAPIURL  string // base URL cmd/refresher calls
	PipelineTimeout time.Duration

	// Redis, optional; empty disables the provider rate limiter
	RedisURL string

	// Shares and balances
	DefaultTotalShares int64
	StartingBalance    int64 // cents

	// Engagement stats
	StatsMaxAge           time.Duration
	StatsRateLimit        int
	StatsBackfillBaseline bool
	ApifyToken            string
	ApifyBaseURL          string
	ApifyPollAttempts     int
	ApifyPollInterval     time.Duration
	ApifyRequestTimeout   time.Duration

	// Refresh scheduling
	RefreshInterval    time.Duration
	RefreshAllVideos   bool
	RefreshConcurrency int
	TaskPollInterval   time.Duration
	TaskMaxAttempts    int
	TaskBatchSize      int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "vidvest"),
		DBPassword: getEnv("DB_PASSWORD", "vidvest"),
		DBName:     getEnv("DB_NAME", "vidvest"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),
		PipelineAPIURL: strings.TrimRight(getEnv("PIPELINE_API_URL", "http://localhost:8080"), "/"),
		RedisURL:       getEnv("REDIS_URL", ""),

		ApifyToken:   getEnv("APIFY_API_TOKEN", ""),
		ApifyBaseURL: strings.TrimRight(getEnv("APIFY_BASE_URL", "https://api.apify.com"), "/"),
	}

	// Parse JWT expiration duration
	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	if config.DefaultTotalShares, err = parseInt64("DEFAULT_TOTAL_SHARES", 1000); err != nil {
		return nil, err
	}
	if config.StartingBalance, err = parseMoney("STARTING_BALANCE", 100000); err != nil {
		return nil, err
	}
	if config.StatsMaxAge, err = parseDuration("STATS_MAX_AGE", 3*time.Hour); err != nil {
		return nil, err
	}
	if config.StatsRateLimit, err = parseInt("STATS_RATE_LIMIT", 60); err != nil {
		return nil, err
	}
	if config.StatsBackfillBaseline, err = parseBool("STATS_BACKFILL_BASELINE", false); err != nil {
		return nil, err
	}
	if config.ApifyPollAttempts, err = parseInt("APIFY_POLL_ATTEMPTS", 15); err != nil {
		return nil, err
	}
	if config.ApifyPollInterval, err = parseDuration("APIFY_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if config.ApifyRequestTimeout, err = parseDuration("APIFY_REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if config.PipelineTimeout, err = parseDuration("PIPELINE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.RefreshInterval, err = parseDurationAllowZero("REFRESH_INTERVAL", 0); err != nil {
		return nil, err
	}
	if config.RefreshAllVideos, err = parseBool("REFRESH_ALL_VIDEOS", false); err != nil {
		return nil, err
	}
	if config.RefreshConcurrency, err = parseInt("REFRESH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if config.TaskPollInterval, err = parseDuration("TASK_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if config.TaskMaxAttempts, err = parseInt("TASK_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if config.TaskBatchSize, err = parseInt("TASK_BATCH_SIZE", 20); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func parseInt64(key string, defaultVal int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

// parseMoney reads a decimal amount such as "1000" or "1000.50" and returns cents.
func parseMoney(key string, defaultCents int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultCents, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, s)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func parseDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := parseDurationAllowZero(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parseDurationAllowZero(key string, defaultVal time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", key, d)
	}
	return d, nil
}

func parseBool(key string, defaultVal bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal, nil
	}
	switch strings.ToLower(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s: must be true, false, 1, or 0, got %q", key, s)
	}
}
