package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Offline cache configuration
	Cache CacheConfig

	// Prediction engine configuration
	Prediction PredictionConfig

	// External service configurations
	Alpaca       AlpacaConfig
	AlphaVantage AlphaVantageConfig
	NewsAPI      NewsAPIConfig
	OpenAI       OpenAIConfig
	Bedrock      BedrockConfig

	// Dashboard configuration
	Dashboard DashboardConfig

	// HTTP configuration
	HTTP HTTPConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// CacheConfig holds offline cache configuration
type CacheConfig struct {
	Dir                  string
	Enabled              bool
	CompressionEnabled   bool
	CompressionThreshold int64 // bytes; entries at/above this size are compressed
	StorageQuota         int64 // bytes
	Expiration           time.Duration
	SyncOnReconnect      bool
}

// PredictionConfig holds prediction engine configuration
type PredictionConfig struct {
	MinHistoryPoints int
	DefaultDays      int
	MaxDays          int
	// PolynomialClampPct bounds how far the degree-2 fit may drift from the
	// last observed price over the forecast horizon, as a fraction of it.
	PolynomialClampPct float64
	SMAWindow          int
	EMAWindow          int
}

// AlpacaConfig holds Alpaca market data API configuration
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey string
}

// NewsAPIConfig holds NewsAPI configuration
type NewsAPIConfig struct {
	APIKey string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// BedrockConfig holds AWS Bedrock configuration
type BedrockConfig struct {
	Region  string
	ModelID string
}

// DashboardConfig holds dashboard and preset configuration
type DashboardConfig struct {
	MaxWidgetsPerLayout int
	MaxPresetsPerUser   int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port               string
	CORSAllowedOrigins string
	RequestTimeoutSec  int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Cache: CacheConfig{
			Dir:                  getEnvString("CACHE_DIR", ".stockboard/cache"),
			Enabled:              getEnvBool("CACHE_ENABLED", true),
			CompressionEnabled:   getEnvBool("CACHE_COMPRESSION_ENABLED", true),
			CompressionThreshold: getEnvInt64("CACHE_COMPRESSION_THRESHOLD_BYTES", 4096),
			StorageQuota:         getEnvInt64("CACHE_STORAGE_QUOTA_BYTES", 50*1024*1024),
			Expiration:           time.Duration(getEnvInt("CACHE_EXPIRATION_MINUTES", 24*60)) * time.Minute,
			SyncOnReconnect:      getEnvBool("CACHE_SYNC_ON_RECONNECT", true),
		},
		Prediction: PredictionConfig{
			MinHistoryPoints:   getEnvInt("PREDICTION_MIN_HISTORY_POINTS", 30),
			DefaultDays:        getEnvInt("PREDICTION_DEFAULT_DAYS", 30),
			MaxDays:            getEnvInt("PREDICTION_MAX_DAYS", 365),
			PolynomialClampPct: getEnvFloatRange("PREDICTION_POLY_CLAMP_PCT", 0.5, 0.05, 2.0),
			SMAWindow:          getEnvInt("PREDICTION_SMA_WINDOW", 20),
			EMAWindow:          getEnvInt("PREDICTION_EMA_WINDOW", 20),
		},
		Alpaca: AlpacaConfig{
			APIKey:    os.Getenv("ALPACA_API_KEY"),
			APISecret: os.Getenv("ALPACA_API_SECRET"),
			BaseURL:   getEnvString("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		},
		NewsAPI: NewsAPIConfig{
			APIKey: os.Getenv("NEWS_API_KEY"),
		},
		OpenAI: OpenAIConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     getEnvString("OPENAI_MODEL", "gpt-4o"),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 1024),
		},
		Bedrock: BedrockConfig{
			Region:  os.Getenv("AWS_REGION"),
			ModelID: os.Getenv("BEDROCK_MODEL_ID"),
		},
		Dashboard: DashboardConfig{
			MaxWidgetsPerLayout: getEnvInt("DASHBOARD_MAX_WIDGETS", 24),
			MaxPresetsPerUser:   getEnvInt("DASHBOARD_MAX_PRESETS", 50),
		},
		HTTP: HTTPConfig{
			Port:               getEnvString("HTTP_PORT", "8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
			RequestTimeoutSec:  getEnvInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Cache.CompressionThreshold <= 0 {
		return fmt.Errorf("CACHE_COMPRESSION_THRESHOLD_BYTES must be positive, got %d", c.Cache.CompressionThreshold)
	}
	if c.Cache.StorageQuota <= 0 {
		return fmt.Errorf("CACHE_STORAGE_QUOTA_BYTES must be positive, got %d", c.Cache.StorageQuota)
	}
	if c.Cache.CompressionThreshold >= c.Cache.StorageQuota {
		return fmt.Errorf("compression threshold (%d) must be below the storage quota (%d)",
			c.Cache.CompressionThreshold, c.Cache.StorageQuota)
	}
	if c.Cache.Expiration <= 0 {
		return fmt.Errorf("CACHE_EXPIRATION_MINUTES must be positive")
	}

	if c.Prediction.MinHistoryPoints < 2 {
		return fmt.Errorf("PREDICTION_MIN_HISTORY_POINTS must be at least 2, got %d", c.Prediction.MinHistoryPoints)
	}
	if c.Prediction.DefaultDays <= 0 {
		return fmt.Errorf("PREDICTION_DEFAULT_DAYS must be positive, got %d", c.Prediction.DefaultDays)
	}
	if c.Prediction.MaxDays < c.Prediction.DefaultDays {
		return fmt.Errorf("PREDICTION_MAX_DAYS (%d) must not be below PREDICTION_DEFAULT_DAYS (%d)",
			c.Prediction.MaxDays, c.Prediction.DefaultDays)
	}
	if c.Prediction.SMAWindow <= 1 || c.Prediction.EMAWindow <= 1 {
		return fmt.Errorf("moving average windows must be greater than 1")
	}

	if c.Dashboard.MaxWidgetsPerLayout <= 0 {
		return fmt.Errorf("DASHBOARD_MAX_WIDGETS must be positive, got %d", c.Dashboard.MaxWidgetsPerLayout)
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT_SECONDS must be positive, got %d", c.HTTP.RequestTimeoutSec)
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasNewsAPI returns true if NewsAPI configuration is available
func (c *Config) HasNewsAPI() bool {
	return c.NewsAPI.APIKey != ""
}

// HasOpenAI returns true if OpenAI configuration is available
func (c *Config) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}

// HasBedrock returns true if AWS Bedrock configuration is available
func (c *Config) HasBedrock() bool {
	return c.Bedrock.Region != "" && c.Bedrock.ModelID != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatRange(key string, defaultValue, minVal, maxVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{URL: ""},
		Cache: CacheConfig{
			Dir:                  "",
			Enabled:              true,
			CompressionEnabled:   true,
			CompressionThreshold: 1024,
			StorageQuota:         1024 * 1024,
			Expiration:           time.Hour,
			SyncOnReconnect:      true,
		},
		Prediction: PredictionConfig{
			MinHistoryPoints:   30,
			DefaultDays:        30,
			MaxDays:            365,
			PolynomialClampPct: 0.5,
			SMAWindow:          20,
			EMAWindow:          20,
		},
		Alpaca:       AlpacaConfig{BaseURL: "https://paper-api.alpaca.markets"},
		AlphaVantage: AlphaVantageConfig{},
		NewsAPI:      NewsAPIConfig{},
		OpenAI:       OpenAIConfig{Model: "gpt-4o", MaxTokens: 1024},
		Bedrock:      BedrockConfig{},
		Dashboard: DashboardConfig{
			MaxWidgetsPerLayout: 24,
			MaxPresetsPerUser:   50,
		},
		HTTP: HTTPConfig{
			Port:               "8080",
			CORSAllowedOrigins: "*",
			RequestTimeoutSec:  30,
		},
	}
}
