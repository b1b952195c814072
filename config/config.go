package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Classifier providers
const (
	ProviderCohere    = "cohere"
	ProviderAnthropic = "anthropic"
)

// Config represents the application configuration
type Config struct {
	// Classification service
	ClassifierProvider  string
	ClassifierModel     string
	ClassifierMaxTokens int
	CohereAPIKey        string
	CohereBaseURL       string
	AnthropicAPIKey     string
	ClassifierTimeout   time.Duration

	// Page fetch
	FetchTimeout   time.Duration
	RateLimitBlock time.Duration

	// Browser crawl
	Headless        bool
	ChromePath      string
	ContentTimeout  time.Duration
	ClickTimeout    time.Duration
	PollInterval    time.Duration
	SettleDelay     time.Duration
	PopupDelay      time.Duration
	MaxPages        int
	RatingAttribute string

	// Memcache configuration, empty keeps the role cache in process
	MemcacheAddr string
	RoleCacheTTL time.Duration

	// Redis configuration, empty disables the stream publisher
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int64

	// Number of URLs crawled at once
	Concurrency int

	// Output
	OutputFile  string
	MetricsAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	provider := strings.ToLower(getEnv("CLASSIFIER_PROVIDER", ProviderCohere))

	return &Config{
		ClassifierProvider:   provider,
		ClassifierModel:      getEnv("CLASSIFIER_MODEL", defaultModel(provider)),
		ClassifierMaxTokens:  getEnvAsInt("CLASSIFIER_MAX_TOKENS", 300),
		CohereAPIKey:         getEnv("COHERE_API_KEY", ""),
		CohereBaseURL:        getEnv("COHERE_BASE_URL", "https://api.cohere.ai"),
		AnthropicAPIKey:      getEnv("ANTHROPIC_API_KEY", ""),
		ClassifierTimeout:    time.Duration(getEnvAsInt("CLASSIFIER_TIMEOUT_SECONDS", 60)) * time.Second,
		FetchTimeout:         time.Duration(getEnvAsInt("FETCH_TIMEOUT_SECONDS", 10)) * time.Second,
		RateLimitBlock:       time.Duration(getEnvAsInt("RATE_LIMIT_BLOCK_SECONDS", 300)) * time.Second,
		Headless:             getEnvAsBool("HEADLESS", true),
		ChromePath:           getEnv("CHROME_PATH", ""),
		ContentTimeout:       time.Duration(getEnvAsInt("CONTENT_TIMEOUT_SECONDS", 10)) * time.Second,
		ClickTimeout:         time.Duration(getEnvAsInt("CLICK_TIMEOUT_SECONDS", 10)) * time.Second,
		PollInterval:         time.Duration(getEnvAsInt("POLL_INTERVAL_MS", 500)) * time.Millisecond,
		SettleDelay:          time.Duration(getEnvAsInt("SETTLE_DELAY_MS", 2000)) * time.Millisecond,
		PopupDelay:           time.Duration(getEnvAsInt("POPUP_DELAY_MS", 1000)) * time.Millisecond,
		MaxPages:             getEnvAsInt("MAX_PAGES", 0),
		RatingAttribute:      getEnv("RATING_ATTRIBUTE", "data-score"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RoleCacheTTL:         time.Duration(getEnvAsInt("ROLE_CACHE_TTL_SECONDS", 86400)) * time.Second,
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvAsInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "reviews"),
		RedisStreamMaxLength: int64(getEnvAsInt("REDIS_STREAM_MAX_LENGTH", 1000)),
		Concurrency:          getEnvAsInt("CRAWL_CONCURRENCY", 1),
		OutputFile:           getEnv("OUTPUT_FILE", "reviews.json"),
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		Environment:          getEnv("REVIEW_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration can drive a run
func (c *Config) Validate() error {
	switch c.ClassifierProvider {
	case ProviderCohere:
		if c.CohereAPIKey == "" {
			return fmt.Errorf("COHERE_API_KEY is required for the %s classifier", c.ClassifierProvider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the %s classifier", c.ClassifierProvider)
		}
	default:
		return fmt.Errorf("unknown classifier provider %q", c.ClassifierProvider)
	}

	if c.ClassifierMaxTokens <= 0 {
		return fmt.Errorf("CLASSIFIER_MAX_TOKENS must be positive, got %d", c.ClassifierMaxTokens)
	}
	if c.ContentTimeout <= 0 || c.ClickTimeout <= 0 {
		return fmt.Errorf("browser wait timeouts must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("MAX_PAGES must not be negative, got %d", c.MaxPages)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("CRAWL_CONCURRENCY must be positive, got %d", c.Concurrency)
	}
	if c.RatingAttribute == "" {
		return fmt.Errorf("RATING_ATTRIBUTE must not be empty")
	}
	return nil
}

func defaultModel(provider string) string {
	if provider == ProviderAnthropic {
		return "claude-3-5-haiku-latest"
	}
	return "command-r-plus"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
